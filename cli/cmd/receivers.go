package cmd

import (
	"fmt"
	"sort"

	"github.com/pithecene-io/adbshell/shell"
	"github.com/pithecene-io/adbshell/shell/codec"
	"github.com/pithecene-io/adbshell/shell/device"
)

// receiverSet pairs the primary receiver with an optional archival copy.
type receiverSet struct {
	name    string
	primary shell.Receiver
	// shadow reconstructs the byte stream for archiving when the primary
	// receiver is not a ByteReceiver.
	shadow *shell.ByteReceiver
}

// archiveCopy never affects error sensing; the primary receiver decides.
type archiveCopy struct{ *shell.ByteReceiver }

func (archiveCopy) ParsesErrors() bool { return true }

func newReceiverSet(ch *frameChoice, c *codec.Codec, archiving bool) *receiverSet {
	rs := &receiverSet{name: ch.receiver}
	switch ch.receiver {
	case receiverBytes:
		opts := []shell.ByteOption{shell.WithByteCodec(c)}
		if ch.sentinels != nil {
			opts = append(opts, shell.WithSentinels(*ch.sentinels...))
		}
		rs.primary = shell.NewByteReceiver(opts...)
	case receiverGetProp:
		rs.primary = device.NewGetPropReceiver()
	case receiverEnv:
		rs.primary = device.NewEnvReceiver()
	case receiverPackages:
		rs.primary = device.NewPackageReceiver()
	case receiverInstall:
		rs.primary = device.NewInstallReceiver()
	case receiverProcesses:
		rs.primary = device.NewProcessReceiver()
	case receiverVersion:
		rs.primary = device.NewVersionInfoReceiver()
	default:
		rs.primary = shell.NewLineCollector()
	}

	if _, isBytes := rs.primary.(*shell.ByteReceiver); archiving && !isBytes {
		rs.shadow = shell.NewByteReceiver(shell.WithByteCodec(c), shell.WithSentinels())
	}
	return rs
}

// receiver returns what the framer feeds.
func (rs *receiverSet) receiver() shell.Receiver {
	if rs.shadow == nil {
		return rs.primary
	}
	return shell.Tee(rs.primary, archiveCopy{rs.shadow})
}

// archiveBytes returns the reconstructed output for the archive sink.
func (rs *receiverSet) archiveBytes() ([]byte, error) {
	if br, ok := rs.primary.(*shell.ByteReceiver); ok {
		return br.Bytes()
	}
	if rs.shadow == nil {
		return nil, fmt.Errorf("no archive copy for receiver %s", rs.name)
	}
	return rs.shadow.Bytes()
}

// parsedFailure returns the failure detected by a receiver that parses its
// own errors.
func (rs *receiverSet) parsedFailure() error {
	if ir, ok := rs.primary.(*device.InstallReceiver); ok {
		return ir.Err()
	}
	return nil
}

// packageRow is one line of "pm list packages -f" output.
type packageRow struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// processRow is a Process with a printable state.
type processRow struct {
	PID      int    `json:"pid"`
	PPID     int    `json:"ppid"`
	State    string `json:"state"`
	Threads  int64  `json:"threads"`
	RSSPages int64  `json:"rss_pages"`
	Name     string `json:"name"`
}

// payload returns the receiver's parsed output for rendering. The bytes
// receiver is not rendered; its output is written raw.
func (rs *receiverSet) payload() (any, error) {
	switch r := rs.primary.(type) {
	case *shell.LineCollector:
		return r.Lines(), nil
	case *device.GetPropReceiver:
		return r.Properties(), nil
	case *device.EnvReceiver:
		return r.Variables(), nil
	case *device.PackageReceiver:
		pkgs := r.Packages()
		rows := make([]packageRow, 0, len(pkgs))
		for name, path := range pkgs {
			rows = append(rows, packageRow{Name: name, Path: path})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
		return rows, nil
	case *device.InstallReceiver:
		return r.Result(), nil
	case *device.ProcessReceiver:
		procs := r.Processes()
		rows := make([]processRow, 0, len(procs))
		for _, p := range procs {
			rows = append(rows, processRow{
				PID:      p.PID,
				PPID:     p.PPID,
				State:    string(rune(p.State)),
				Threads:  p.Threads,
				RSSPages: p.RSSPages,
				Name:     p.Name,
			})
		}
		return rows, nil
	case *device.VersionInfoReceiver:
		info, _ := r.VersionInfo()
		return info, nil
	default:
		return nil, fmt.Errorf("receiver %s has no renderable payload", rs.name)
	}
}
