package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pithecene-io/adbshell/shell"
)

// ListProcessesCommand prints "<cmdline> <stat>" for every process.
const ListProcessesCommand = `for p in /proc/[0-9]*; do cat $p/cmdline 2>/dev/null; echo -n " "; cat $p/stat 2>/dev/null; echo; done`

// minStatFields is the number of fields after the comm field that Parse reads.
const minStatFields = 22

// Process is one entry of /proc/<pid>/stat.
type Process struct {
	PID       int    `json:"pid"`
	Name      string `json:"name"`
	State     byte   `json:"-"`
	PPID      int    `json:"ppid"`
	PGroup    int    `json:"pgroup"`
	Session   int    `json:"session"`
	Threads   int64  `json:"threads"`
	VSize     uint64 `json:"vsize"`
	RSSPages  int64  `json:"rss_pages"`
	StartTime uint64 `json:"start_time"`
}

// ParseProcess parses a /proc/<pid>/stat line, optionally prefixed by the
// NUL-separated command line. When a prefix is present its first element is
// used as the process name.
func ParseProcess(line string) (Process, error) {
	open := strings.IndexByte(line, '(')
	closing := strings.LastIndexByte(line, ')')
	if open < 0 || closing < open {
		return Process{}, fmt.Errorf("parse process: missing comm in %q", line)
	}

	var p Process
	head := line[:open]
	if parts := strings.Split(strings.TrimSpace(head), "\x00"); len(parts) > 1 {
		fields := strings.Fields(parts[len(parts)-1])
		if len(fields) == 0 {
			return Process{}, fmt.Errorf("parse process: missing pid in %q", line)
		}
		pid, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil {
			return Process{}, fmt.Errorf("parse process pid: %w", err)
		}
		p.PID = pid
		p.Name = parts[0]
	} else {
		fields := strings.Fields(head)
		if len(fields) == 0 {
			return Process{}, fmt.Errorf("parse process: missing pid in %q", line)
		}
		pid, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil {
			return Process{}, fmt.Errorf("parse process pid: %w", err)
		}
		p.PID = pid
		p.Name = line[open+1 : closing]
	}

	f := strings.Fields(line[closing+1:])
	if len(f) < minStatFields {
		return Process{}, fmt.Errorf("parse process %d: %d stat fields, want at least %d", p.PID, len(f), minStatFields)
	}
	if len(f[0]) != 1 {
		return Process{}, fmt.Errorf("parse process %d: bad state %q", p.PID, f[0])
	}
	p.State = f[0][0]

	var err error
	ints := []struct {
		dst *int
		src string
	}{{&p.PPID, f[1]}, {&p.PGroup, f[2]}, {&p.Session, f[3]}}
	for _, v := range ints {
		if *v.dst, err = strconv.Atoi(v.src); err != nil {
			return Process{}, fmt.Errorf("parse process %d: %w", p.PID, err)
		}
	}
	if p.Threads, err = strconv.ParseInt(f[17], 10, 64); err != nil {
		return Process{}, fmt.Errorf("parse process %d threads: %w", p.PID, err)
	}
	if p.StartTime, err = strconv.ParseUint(f[19], 10, 64); err != nil {
		return Process{}, fmt.Errorf("parse process %d start time: %w", p.PID, err)
	}
	if p.VSize, err = strconv.ParseUint(f[20], 10, 64); err != nil {
		return Process{}, fmt.Errorf("parse process %d vsize: %w", p.PID, err)
	}
	if p.RSSPages, err = strconv.ParseInt(f[21], 10, 64); err != nil {
		return Process{}, fmt.Errorf("parse process %d rss: %w", p.PID, err)
	}
	return p, nil
}

// ProcessReceiver parses process listings on Flush. Processes that exited
// during the listing and lines that fail to parse are skipped.
type ProcessReceiver struct {
	lines     *shell.LineCollector
	processes []Process
	skipped   int
}

// NewProcessReceiver returns an empty ProcessReceiver.
func NewProcessReceiver() *ProcessReceiver {
	return &ProcessReceiver{lines: shell.NewLineCollector()}
}

// AddLine buffers line until Flush.
func (r *ProcessReceiver) AddLine(line string) error {
	return r.lines.AddLine(line)
}

// Flush parses the buffered lines.
func (r *ProcessReceiver) Flush() error {
	r.processes = r.processes[:0]
	r.skipped = 0
	for _, line := range r.lines.Lines() {
		if strings.TrimSpace(line) == "" || strings.Contains(line, "No such file or directory") {
			continue
		}
		p, err := ParseProcess(line)
		if err != nil {
			r.skipped++
			continue
		}
		r.processes = append(r.processes, p)
	}
	return nil
}

// Processes returns the parsed processes in listing order.
func (r *ProcessReceiver) Processes() []Process {
	return append([]Process(nil), r.processes...)
}

// Skipped returns the number of lines that could not be parsed.
func (r *ProcessReceiver) Skipped() int {
	return r.skipped
}
