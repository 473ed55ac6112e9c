package shell

import (
	"bytes"
	"errors"
	"strings"
	"sync/atomic"

	"golang.org/x/text/transform"

	"github.com/pithecene-io/adbshell/log"
	"github.com/pithecene-io/adbshell/metrics"
	"github.com/pithecene-io/adbshell/shell/codec"
)

const scratchSize = 4096

// Option configures a Framer.
type Option func(*Framer)

// WithCodec sets the text encoding. Nil selects codec.Default at
// construction time.
func WithCodec(c *codec.Codec) Option {
	return func(f *Framer) { f.codec = c }
}

// WithErrorSensing enables failure-signature scanning with s. A nil sensor
// leaves sensing disabled.
func WithErrorSensing(s *Sensor) Option {
	return func(f *Framer) { f.sensor = s }
}

// WithLogger sets the logger. Nil disables logging.
func WithLogger(l *log.Logger) Option {
	return func(f *Framer) { f.logger = l }
}

// WithCollector sets the metrics collector. Nil disables collection.
func WithCollector(c *metrics.Collector) Option {
	return func(f *Framer) { f.metrics = c }
}

// Framer splits a chunked byte stream into lines for a Receiver.
type Framer struct {
	recv    Receiver
	codec   *codec.Codec
	dec     transform.Transformer
	sensor  *Sensor
	logger  *log.Logger
	metrics *metrics.Collector

	busy atomic.Bool

	// pending holds the undecoded tail of the last chunk: an incomplete
	// multi-byte sequence.
	pending []byte
	// partial holds decoded text after the last terminator.
	partial strings.Builder
	// skipLF is set when the last decoded byte was '\r'.
	skipLF  bool
	offset  int64
	scratch []byte

	finished bool
	err      error
	failure  *CommandError
}

// NewFramer returns a Framer delivering to r.
func NewFramer(r Receiver, opts ...Option) *Framer {
	f := &Framer{recv: r}
	for _, opt := range opts {
		opt(f)
	}
	f.codec = codec.OrDefault(f.codec)
	f.dec = f.codec.NewDecoder()
	if f.sensor != nil && parsesErrors(r) {
		f.sensor = nil
	}
	return f
}

// Codec returns the codec in use.
func (f *Framer) Codec() *codec.Codec {
	return f.codec
}

// Sensing reports whether lines are scanned for failure signatures.
func (f *Framer) Sensing() bool {
	return f.sensor != nil
}

// Feed decodes chunk and delivers every line it completes. The chunk is not
// retained. An empty chunk is a no-op.
//
// After a decode or receiver error every later call returns that error.
func (f *Framer) Feed(chunk []byte) error {
	if !f.busy.CompareAndSwap(false, true) {
		return misuse(ErrConcurrentFeed, "feed")
	}
	defer f.busy.Store(false)

	if f.err != nil {
		return f.err
	}
	if f.finished {
		return misuse(ErrFinished, "feed")
	}
	if len(chunk) == 0 {
		return nil
	}

	f.metrics.AddChunk(len(chunk))
	src := chunk
	if len(f.pending) > 0 {
		src = append(f.pending, chunk...)
		f.pending = nil
	}
	return f.decode(src, false)
}

// Finish ends the stream. It decodes any held bytes, delivers the trailing
// unterminated line if it is non-empty, and flushes the receiver.
// It must be called exactly once. The receiver is not flushed after a decode
// or receiver error.
func (f *Framer) Finish() error {
	return f.finish(false)
}

// FinishTruncated ends a stream that stopped before end-of-stream, on
// cancellation or a read error. An incomplete multi-byte sequence held from
// the last chunk is dropped instead of failing the decode; everything else
// behaves like Finish. Only one of Finish and FinishTruncated may be called.
func (f *Framer) FinishTruncated() error {
	return f.finish(true)
}

func (f *Framer) finish(truncated bool) error {
	if !f.busy.CompareAndSwap(false, true) {
		return misuse(ErrConcurrentFeed, "finish")
	}
	defer f.busy.Store(false)

	if f.err != nil {
		return f.err
	}
	if f.finished {
		return misuse(ErrFinished, "finish")
	}
	f.finished = true

	src := f.pending
	f.pending = nil
	if err := f.decode(src, !truncated); err != nil {
		return err
	}
	if n := len(f.pending); n > 0 {
		f.metrics.AddTruncated(n)
		f.logger.Warn("dropped incomplete sequence", map[string]any{
			"encoding": f.codec.Name(),
			"offset":   f.offset,
			"bytes":    n,
		})
		f.pending = nil
	}

	if f.partial.Len() > 0 {
		line := f.partial.String()
		f.partial.Reset()
		if err := f.emit(line); err != nil {
			return err
		}
	}

	if err := f.recv.Flush(); err != nil {
		f.metrics.IncReceiverErrors()
		f.err = &FramingError{Kind: FramingErrorReceiver, Msg: "flush", Err: err}
		return f.err
	}
	f.metrics.IncFlush()
	f.logger.Debug("stream finished", map[string]any{
		"bytes":  f.offset,
		"failed": f.failure != nil,
	})
	return nil
}

// Pending returns decoded text not yet delivered because no terminator
// followed it.
func (f *Framer) Pending() string {
	return f.partial.String()
}

// Failure returns the first failure-signature match, or nil.
func (f *Framer) Failure() *CommandError {
	return f.failure
}

// Finished reports whether Finish has been called.
func (f *Framer) Finished() bool {
	return f.finished
}

// Offset returns the number of stream bytes decoded so far.
func (f *Framer) Offset() int64 {
	return f.offset
}

func (f *Framer) decode(src []byte, atEOF bool) error {
	if f.scratch == nil {
		f.scratch = make([]byte, scratchSize)
	}
	for {
		nDst, nSrc, err := f.dec.Transform(f.scratch, src, atEOF)
		if nDst > 0 {
			if serr := f.split(f.scratch[:nDst]); serr != nil {
				return serr
			}
		}
		src = src[nSrc:]
		f.offset += int64(nSrc)

		switch {
		case err == nil:
			if len(src) == 0 || (nSrc == 0 && nDst == 0) {
				if len(src) > 0 {
					f.pending = append([]byte(nil), src...)
				}
				return nil
			}
		case errors.Is(err, transform.ErrShortDst):
			if nSrc == 0 && nDst == 0 {
				f.scratch = make([]byte, 2*len(f.scratch))
			}
		case errors.Is(err, transform.ErrShortSrc) && !atEOF:
			f.pending = append([]byte(nil), src...)
			return nil
		default:
			return f.decodeFailed(err)
		}
	}
}

func (f *Framer) decodeFailed(err error) error {
	f.metrics.IncDecodeErrors()
	f.err = &FramingError{
		Kind:   FramingErrorDecode,
		Offset: f.offset,
		Msg:    "decode " + f.codec.Name(),
		Err:    err,
	}
	f.logger.Warn("decode failed", map[string]any{
		"encoding": f.codec.Name(),
		"offset":   f.offset,
	})
	return f.err
}

// split appends decoded text to the partial line and emits each line it
// completes.
func (f *Framer) split(text []byte) error {
	for len(text) > 0 {
		if f.skipLF {
			f.skipLF = false
			if text[0] == '\n' {
				text = text[1:]
				continue
			}
		}

		i := bytes.IndexAny(text, "\r\n")
		if i < 0 {
			f.partial.Write(text)
			return nil
		}
		f.partial.Write(text[:i])
		f.skipLF = text[i] == '\r'
		text = text[i+1:]

		line := f.partial.String()
		f.partial.Reset()
		if err := f.emit(line); err != nil {
			return err
		}
	}
	return nil
}

func (f *Framer) emit(line string) error {
	if err := f.recv.AddLine(line); err != nil {
		f.metrics.IncReceiverErrors()
		f.err = &FramingError{Kind: FramingErrorReceiver, Msg: "add line", Err: err}
		return f.err
	}
	f.metrics.IncLines(1)

	if f.sensor == nil {
		return nil
	}
	kind, ok := f.sensor.Match(line)
	if !ok {
		return nil
	}
	f.metrics.IncFailureSignature(kind.String())
	if f.failure != nil {
		f.logger.Debug("additional failure signature", map[string]any{"kind": kind.String()})
		return nil
	}
	f.failure = &CommandError{Kind: kind, Line: line}
	f.logger.Warn("failure signature matched", map[string]any{
		"kind": kind.String(),
		"line": line,
	})
	return nil
}

func misuse(err error, op string) *FramingError {
	return &FramingError{Kind: FramingErrorMisuse, Msg: op, Err: err}
}
