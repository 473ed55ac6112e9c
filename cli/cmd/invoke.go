package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/adbshell/adapter"
	"github.com/pithecene-io/adbshell/archive"
	"github.com/pithecene-io/adbshell/capture"
	"github.com/pithecene-io/adbshell/cli/render"
	"github.com/pithecene-io/adbshell/log"
	"github.com/pithecene-io/adbshell/metrics"
	"github.com/pithecene-io/adbshell/session"
	"github.com/pithecene-io/adbshell/shell/codec"
	"github.com/pithecene-io/adbshell/types"
)

// Exit codes not derived from an outcome.
const (
	exitCommandFailed = 1
	exitInvalidInput  = 3
)

// archiveTimeout bounds the archive upload after the stream has ended.
const archiveTimeout = 30 * time.Second

// invocation is one framed stream, from a live source or a capture.
type invocation struct {
	choice    *frameChoice
	meta      *types.InvocationMeta
	codec     *codec.Codec
	src       io.Reader
	chunkSize int
	recorder  *capture.Writer
}

// run frames the stream, writes the receiver output, archives it, publishes
// the completion event, and maps the outcome to an exit code.
func (inv *invocation) run(c *cli.Context) error {
	ch := inv.choice
	stderr := errWriter(c)

	logger, err := log.NewLoggerAtLevel(inv.meta, stderr, ch.logLevel)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid log level: %v", err), exitInvalidInput)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := buildArchive(ctx, ch.archive)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid archive config: %v", err), exitInvalidInput)
	}
	pub, err := buildAdapter(ch.adapter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid adapter config: %v", err), exitInvalidInput)
	}
	if pub != nil {
		defer func() { _ = pub.Close() }()
	}

	rs := newReceiverSet(ch, inv.codec, sink != nil)
	res, runErr := session.Run(ctx, inv.src, rs.receiver(), session.Options{
		ChunkSize: inv.chunkSize,
		Codec:     inv.codec,
		Sensor:    ch.sensor,
		Meta:      inv.meta,
		Logger:    logger,
		Collector: metrics.NewCollector(inv.codec.Name(), rs.name, inv.meta.InvocationID),
		Recorder:  inv.recorder,
	})
	if res == nil {
		return cli.Exit(fmt.Sprintf("invocation failed: %v", runErr), exitInvalidInput)
	}

	var outErr error
	if !ch.quiet && outputFlushed(res.Outcome) {
		outErr = writeOutput(c, rs)
	}

	// The stream is over; later steps must not be cut short by its signal.
	after := context.WithoutCancel(ctx)

	var location string
	if sink != nil && outputFlushed(res.Outcome) {
		location = storeArchive(after, sink, rs, inv.meta, logger)
	}

	if pub != nil {
		event := buildEvent(res, inv.codec.Name(), location)
		if err := pub.Publish(after, event); err != nil {
			logger.Error("adapter publish failed", map[string]any{
				"adapter": ch.adapter.kind,
				"error":   err.Error(),
			})
		}
	}

	if !ch.quiet {
		fmt.Fprintf(stderr, "invocation_id=%s, outcome=%s, lines=%d, bytes=%d, duration=%s\n",
			inv.meta.InvocationID,
			res.Outcome,
			res.Metrics.LinesEmitted,
			res.Metrics.BytesFed,
			res.Duration.Round(time.Millisecond),
		)
	}

	var parsedErr error
	if outputFlushed(res.Outcome) {
		parsedErr = rs.parsedFailure()
	}
	return exitFor(res, runErr, parsedErr, outErr)
}

// outputFlushed reports whether the receiver was flushed for the outcome.
// Decode and receiver errors stop the framer before the flush.
func outputFlushed(o types.Outcome) bool {
	return o != types.OutcomeDecodeError && o != types.OutcomeReceiverError
}

func storeArchive(ctx context.Context, sink archive.Sink, rs *receiverSet, meta *types.InvocationMeta, logger *log.Logger) string {
	data, err := rs.archiveBytes()
	if err != nil {
		logger.Error("archive skipped", map[string]any{"error": err.Error()})
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	location, err := archive.Store(ctx, sink, meta, data)
	if err != nil {
		logger.Error("archive failed", map[string]any{"error": err.Error()})
		return ""
	}
	logger.Info("archived", map[string]any{"location": location, "bytes": len(data)})
	return location
}

func writeOutput(c *cli.Context, rs *receiverSet) error {
	if rs.name == receiverBytes {
		data, err := rs.archiveBytes()
		if err != nil {
			return err
		}
		_, err = c.App.Writer.Write(data)
		return err
	}

	payload, err := rs.payload()
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(payload)
}

func buildEvent(res *session.Result, encoding, archivePath string) *adapter.InvocationCompletedEvent {
	event := &adapter.InvocationCompletedEvent{
		Version:      types.Version,
		EventType:    adapter.EventType,
		InvocationID: res.Meta.InvocationID,
		Serial:       res.Meta.Serial,
		Command:      res.Meta.Command,
		Encoding:     encoding,
		Outcome:      string(res.Outcome),
		Lines:        res.Metrics.LinesEmitted,
		Bytes:        res.Metrics.BytesFed,
		ArchivePath:  archivePath,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		DurationMs:   res.Duration.Milliseconds(),
	}
	if res.Failure != nil {
		event.FailureKind = res.Failure.Kind.String()
		event.FailureLine = res.Failure.Line
	}
	return event
}

// exitFor maps the invocation to a cli exit error. A receiver that parses
// its own errors (install) reports failure through parsedErr.
func exitFor(res *session.Result, runErr, parsedErr, outErr error) error {
	code := res.Outcome.ExitCode()
	switch {
	case code != 0 && runErr != nil:
		return cli.Exit(runErr.Error(), code)
	case code != 0 && res.Failure != nil:
		return cli.Exit(res.Failure.Error(), code)
	case code != 0:
		return cli.Exit("", code)
	case parsedErr != nil:
		return cli.Exit(parsedErr.Error(), exitCommandFailed)
	}

	if outErr != nil {
		return fmt.Errorf("write output: %w", outErr)
	}
	return nil
}

func errWriter(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}
