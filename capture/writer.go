package capture

import (
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/adbshell/types"
)

// Writer errors.
var (
	ErrHeaderWritten = errors.New("capture header already written")
	ErrNoHeader      = errors.New("capture header not written")
	ErrEnded         = errors.New("capture already ended")
)

// Writer records a chunk stream. Calls must be made from one goroutine:
// WriteHeader once, WriteChunk per chunk, WriteEnd once.
type Writer struct {
	w      io.Writer
	header bool
	ended  bool
	seq    int64
	bytes  int64
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the capture header for meta.
func (w *Writer) WriteHeader(meta *types.InvocationMeta, encoding string) error {
	if w.header {
		return ErrHeaderWritten
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("capture header: %w", err)
	}
	h := &Header{
		Type:         HeaderType,
		Version:      types.CaptureVersion,
		InvocationID: meta.InvocationID,
		Serial:       meta.Serial,
		Command:      meta.Command,
		Encoding:     encoding,
		StartedAt:    meta.StartedAt,
	}
	if err := encodeFrame(w.w, h); err != nil {
		return err
	}
	w.header = true
	return nil
}

// WriteChunk records one chunk. Empty chunks are not recorded.
func (w *Writer) WriteChunk(data []byte) error {
	switch {
	case !w.header:
		return ErrNoHeader
	case w.ended:
		return ErrEnded
	case len(data) == 0:
		return nil
	case len(data) > MaxChunkSize:
		return fmt.Errorf("chunk of %d bytes exceeds maximum %d", len(data), MaxChunkSize)
	}
	c := &Chunk{Type: ChunkType, Seq: w.seq + 1, Data: data}
	if err := encodeFrame(w.w, c); err != nil {
		return err
	}
	w.seq++
	w.bytes += int64(len(data))
	return nil
}

// WriteEnd closes the capture.
func (w *Writer) WriteEnd(reason EndReason, message string) error {
	if !w.header {
		return ErrNoHeader
	}
	if w.ended {
		return ErrEnded
	}
	e := &End{Type: EndType, Reason: reason, Message: message, Chunks: w.seq, Bytes: w.bytes}
	if err := encodeFrame(w.w, e); err != nil {
		return err
	}
	w.ended = true
	return nil
}

// Chunks returns the number of chunks recorded.
func (w *Writer) Chunks() int64 {
	return w.seq
}
