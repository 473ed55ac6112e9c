// Package session drives a shell.Framer from an io.Reader.
//
// Run reads the shell channel chunk by chunk, feeds the framer, and always
// finishes it: on end-of-stream, on a read error, and on cancellation. Output
// decoded before the stream stopped is therefore flushed to the receiver in
// every case. Run then classifies the invocation into a types.Outcome.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pithecene-io/adbshell/capture"
	"github.com/pithecene-io/adbshell/iox"
	"github.com/pithecene-io/adbshell/log"
	"github.com/pithecene-io/adbshell/metrics"
	"github.com/pithecene-io/adbshell/shell"
	"github.com/pithecene-io/adbshell/shell/codec"
	"github.com/pithecene-io/adbshell/types"
)

// DefaultChunkSize is the read size used when Options.ChunkSize is zero.
const DefaultChunkSize = 4096

// Options configures Run. The zero value reads 4 KiB chunks as UTF-8 with
// error sensing disabled.
type Options struct {
	// ChunkSize is the maximum number of bytes per Read.
	ChunkSize int
	// Codec decodes the stream. Nil selects codec.Default.
	Codec *codec.Codec
	// Sensor enables error sensing when non-nil.
	Sensor *shell.Sensor
	// Meta identifies the invocation in logs and in the capture header.
	// A fresh identity is generated when nil.
	Meta *types.InvocationMeta
	// Logger receives lifecycle and framing logs. Nil disables logging.
	Logger *log.Logger
	// Collector receives counters. A private collector is used when nil.
	Collector *metrics.Collector
	// Recorder, when set, records every chunk read.
	Recorder *capture.Writer
}

// Result describes a finished invocation.
type Result struct {
	Meta    *types.InvocationMeta
	Outcome types.Outcome
	// Failure is the first failure-signature match, if any.
	Failure  *shell.CommandError
	Metrics  metrics.Snapshot
	Duration time.Duration
}

// Err returns the failure as an error, or nil.
func (r *Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Run frames src into recv until end-of-stream, a read error, a framing
// error, or ctx is done.
//
// If src is an io.Closer it is closed on cancellation so that a blocked Read
// returns. Run never closes src otherwise.
//
// The returned Result is non-nil whenever the framer was created. The error
// is a *Error for every outcome except success and a flagged command.
func Run(ctx context.Context, src io.Reader, recv shell.Receiver, opts Options) (*Result, error) {
	if src == nil || recv == nil {
		return nil, errors.New("session: nil reader or receiver")
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	meta := opts.Meta
	if meta == nil {
		meta = types.NewInvocationMeta("", "")
	}
	c := codec.OrDefault(opts.Codec)
	collector := opts.Collector
	if collector == nil {
		collector = metrics.NewCollector(c.Name(), fmt.Sprintf("%T", recv), meta.InvocationID)
	}
	logger := opts.Logger

	framerOpts := []shell.Option{
		shell.WithCodec(c),
		shell.WithLogger(logger),
		shell.WithCollector(collector),
	}
	if opts.Sensor != nil {
		framerOpts = append(framerOpts, shell.WithErrorSensing(opts.Sensor))
	}
	f := shell.NewFramer(recv, framerOpts...)

	rec := opts.Recorder
	if rec != nil {
		if err := rec.WriteHeader(meta, c.Name()); err != nil {
			return nil, &Error{Kind: ErrorStream, Msg: "write capture header", Err: err}
		}
	}

	start := time.Now()
	logger.Info("session started", map[string]any{
		"encoding": c.Name(),
		"sensing":  f.Sensing(),
	})

	stop := iox.CloseOnDone(ctx, src)
	buf := make([]byte, chunkSize)
	var readErr, frameErr error
	canceled, sawEOF := false, false
	for frameErr == nil {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		n, err := src.Read(buf)
		if n > 0 {
			if rec != nil {
				if werr := rec.WriteChunk(buf[:n]); werr != nil {
					logger.Warn("capture disabled", map[string]any{"error": werr.Error()})
					rec = nil
				}
			}
			frameErr = f.Feed(buf[:n])
		}
		if err == io.EOF {
			sawEOF = true
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				canceled = true
			} else {
				readErr = err
			}
			break
		}
	}
	// A source that reached EOF before the watcher closed it is complete.
	if stop() && !sawEOF {
		canceled = true
	}

	// Finish on every path. After a framing error it returns that error. A
	// stream cut short may end inside a character; those bytes are dropped
	// so the decoded text is still flushed.
	finish := f.Finish
	if !sawEOF && (canceled || readErr != nil) {
		finish = f.FinishTruncated
	}
	if err := finish(); err != nil && frameErr == nil {
		frameErr = err
	}

	res := &Result{
		Meta:     meta,
		Failure:  f.Failure(),
		Metrics:  collector.Snapshot(),
		Duration: time.Since(start),
	}

	var runErr *Error
	endReason, endMsg := capture.EndEOF, ""
	switch {
	case frameErr != nil:
		runErr = &Error{Kind: ErrorFraming, Msg: "framing", Err: frameErr}
		res.Outcome = types.OutcomeReceiverError
		if shell.IsDecodeError(frameErr) {
			res.Outcome = types.OutcomeDecodeError
		}
		endReason, endMsg = capture.EndError, frameErr.Error()
	case canceled:
		runErr = &Error{Kind: ErrorCanceled, Msg: "canceled", Err: context.Cause(ctx)}
		res.Outcome = types.OutcomeCanceled
		endReason = capture.EndCanceled
	case readErr != nil:
		runErr = &Error{Kind: ErrorStream, Msg: "read", Err: readErr}
		res.Outcome = types.OutcomeStreamError
		endReason, endMsg = capture.EndError, readErr.Error()
	case res.Failure != nil:
		res.Outcome = types.OutcomeCommandFailed
	default:
		res.Outcome = types.OutcomeSuccess
	}

	if rec != nil {
		if err := rec.WriteEnd(endReason, endMsg); err != nil {
			logger.Warn("capture end not written", map[string]any{"error": err.Error()})
		}
	}

	fields := map[string]any{
		"outcome":     string(res.Outcome),
		"lines":       res.Metrics.LinesEmitted,
		"bytes":       res.Metrics.BytesFed,
		"duration_ms": res.Duration.Milliseconds(),
	}
	if runErr != nil {
		fields["error"] = runErr.Error()
		logger.Warn("session ended", fields)
		return res, runErr
	}
	logger.Info("session ended", fields)
	return res, nil
}
