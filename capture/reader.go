package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pithecene-io/adbshell/shell"
	"github.com/pithecene-io/adbshell/types"
)

// Reader reads and validates a capture frame by frame.
type Reader struct {
	dec    *FrameDecoder
	header *Header
	end    *End
	seq    int64
}

// NewReader returns a Reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: NewFrameDecoder(r)}
}

// Next returns the next frame as a *Header, *Chunk or *End. It returns
// io.EOF after the end frame, or at a clean end of input.
//
// The first frame must be a header. Chunk sequence numbers must increase by
// one. Nothing may follow the end frame.
func (r *Reader) Next() (any, error) {
	payload, err := r.dec.ReadFrame()
	if err != nil {
		return nil, err
	}
	if r.end != nil {
		return nil, orderError("frame after end")
	}

	v, err := DecodeFrame(payload)
	if err != nil {
		return nil, err
	}

	switch f := v.(type) {
	case *Header:
		if r.header != nil {
			return nil, orderError("duplicate header")
		}
		if major(f.Version) != major(types.CaptureVersion) {
			return nil, orderError(fmt.Sprintf("capture version %q not supported", f.Version))
		}
		r.header = f
	case *Chunk:
		if r.header == nil {
			return nil, orderError("chunk before header")
		}
		if f.Seq != r.seq+1 {
			return nil, orderError(fmt.Sprintf("chunk seq %d, want %d", f.Seq, r.seq+1))
		}
		r.seq = f.Seq
	case *End:
		if r.header == nil {
			return nil, orderError("end before header")
		}
		r.end = f
	}
	return v, nil
}

// Header returns the header once it has been read.
func (r *Reader) Header() *Header {
	return r.header
}

// End returns the end frame once it has been read. Nil for a capture
// without an end frame.
func (r *Reader) End() *End {
	return r.end
}

func orderError(msg string) *FrameError {
	return &FrameError{Kind: FrameErrorDecode, Msg: msg}
}

func major(v string) string {
	m, _, _ := strings.Cut(v, ".")
	return m
}

// ReadHeader reads the first frame and returns it as a header.
func (r *Reader) ReadHeader() (*Header, error) {
	v, err := r.Next()
	if err == io.EOF {
		return nil, orderError("empty capture")
	}
	if err != nil {
		return nil, err
	}
	h, ok := v.(*Header)
	if !ok {
		return nil, orderError("chunk before header")
	}
	return h, nil
}

// ErrStoppedEarly is returned by ChunkReader when the end frame records a
// cancellation or an error instead of end-of-stream.
var ErrStoppedEarly = errors.New("recorded stream stopped early")

// Replay feeds every remaining chunk to f in recorded order and finishes it.
// Header and end frames are skipped. f is finished on every path except a
// framing error, so output decoded before a truncated capture or a
// cancellation is still flushed. When the recording itself stopped early,
// an incomplete trailing character is dropped rather than reported.
func Replay(ctx context.Context, r *Reader, f *shell.Framer) error {
	for {
		if err := ctx.Err(); err != nil {
			return finishWith(f, err)
		}
		v, err := r.Next()
		if err == io.EOF {
			if end := r.End(); end != nil && end.Reason != EndEOF {
				return f.FinishTruncated()
			}
			return f.Finish()
		}
		if err != nil {
			return finishWith(f, err)
		}
		c, ok := v.(*Chunk)
		if !ok {
			continue
		}
		if err := f.Feed(c.Data); err != nil {
			return err
		}
	}
}

func finishWith(f *shell.Framer, cause error) error {
	if err := f.FinishTruncated(); err != nil {
		return fmt.Errorf("%w (finish: %v)", cause, err)
	}
	return cause
}

// Meta returns the invocation identity recorded in the header.
func (h *Header) Meta() *types.InvocationMeta {
	return &types.InvocationMeta{
		InvocationID: h.InvocationID,
		Serial:       h.Serial,
		Command:      h.Command,
		StartedAt:    h.StartedAt,
	}
}

// ChunkReader presents the chunks of a capture as an io.Reader. Each Read
// returns bytes from at most one chunk, so a caller reading with a buffer of
// MaxChunkSize sees the recorded chunk boundaries.
type ChunkReader struct {
	r    *Reader
	rest []byte
}

// NewChunkReader returns a ChunkReader over the frames remaining in r.
// The header must already have been read.
func NewChunkReader(r *Reader) *ChunkReader {
	return &ChunkReader{r: r}
}

// Read implements io.Reader. A capture that ends without an end frame
// yields the truncation error rather than io.EOF, and one whose end frame
// records a cancellation or error yields ErrStoppedEarly.
func (c *ChunkReader) Read(p []byte) (int, error) {
	for len(c.rest) == 0 {
		v, err := c.r.Next()
		if err == io.EOF {
			if c.r.End() == nil && c.r.Header() != nil {
				return 0, &FrameError{Kind: FrameErrorPartial, Msg: "capture has no end frame", Err: io.ErrUnexpectedEOF}
			}
			if end := c.r.End(); end != nil && end.Reason != EndEOF {
				return 0, fmt.Errorf("%w: %s %s", ErrStoppedEarly, end.Reason, end.Message)
			}
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		if ch, ok := v.(*Chunk); ok {
			c.rest = ch.Data
		}
	}
	n := copy(p, c.rest)
	c.rest = c.rest[n:]
	return n, nil
}
