package shell

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pithecene-io/adbshell/shell/codec"
)

// DefaultSentinels are the line prefixes of shell prompt echoes.
var DefaultSentinels = []string{"#", "$"}

// ByteOption configures a ByteReceiver.
type ByteOption func(*ByteReceiver)

// WithByteCodec sets the encoding used to re-encode lines. It should match
// the framer's codec. Nil selects codec.Default.
func WithByteCodec(c *codec.Codec) ByteOption {
	return func(r *ByteReceiver) { r.codec = c }
}

// WithSentinels replaces the sentinel prefixes. No arguments disables
// sentinel filtering. Empty prefixes are ignored.
func WithSentinels(prefixes ...string) ByteOption {
	return func(r *ByteReceiver) {
		r.sentinels = r.sentinels[:0]
		for _, p := range prefixes {
			if p != "" {
				r.sentinels = append(r.sentinels, p)
			}
		}
	}
}

// ByteReceiver reconstructs the payload of a command as bytes.
//
// Empty lines and lines starting with a sentinel prefix are dropped. The
// remaining lines are re-encoded and joined with a single encoded "\n".
// The output is available after Flush.
type ByteReceiver struct {
	codec     *codec.Codec
	sentinels []string
	newline   []byte

	buf     bytes.Buffer
	lines   int
	dropped int
	flushed bool
}

// NewByteReceiver returns an empty ByteReceiver.
func NewByteReceiver(opts ...ByteOption) *ByteReceiver {
	r := &ByteReceiver{sentinels: append([]string(nil), DefaultSentinels...)}
	for _, opt := range opts {
		opt(r)
	}
	r.codec = codec.OrDefault(r.codec)
	return r
}

// AddLine appends line unless it is empty or a sentinel line.
func (r *ByteReceiver) AddLine(line string) error {
	if r.skip(line) {
		r.dropped++
		return nil
	}

	data, err := r.codec.Encode(line)
	if err != nil {
		return err
	}
	if r.lines > 0 {
		if r.newline == nil {
			if r.newline, err = r.codec.Encode("\n"); err != nil {
				return fmt.Errorf("encode line break: %w", err)
			}
		}
		r.buf.Write(r.newline)
	}
	r.buf.Write(data)
	r.lines++
	return nil
}

func (r *ByteReceiver) skip(line string) bool {
	if line == "" {
		return true
	}
	for _, p := range r.sentinels {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// Flush marks the output complete.
func (r *ByteReceiver) Flush() error {
	r.flushed = true
	return nil
}

// Bytes returns the reconstructed output. The slice aliases the receiver's
// buffer and must not be modified.
func (r *ByteReceiver) Bytes() ([]byte, error) {
	if !r.flushed {
		return nil, ErrNotFlushed
	}
	return r.buf.Bytes(), nil
}

// Text decodes the reconstructed output with the receiver's codec.
func (r *ByteReceiver) Text() (string, error) {
	if !r.flushed {
		return "", ErrNotFlushed
	}
	return r.codec.Decode(r.buf.Bytes())
}

// Accepted returns the number of lines written to the output.
func (r *ByteReceiver) Accepted() int {
	return r.lines
}

// Dropped returns the number of empty or sentinel lines skipped.
func (r *ByteReceiver) Dropped() int {
	return r.dropped
}
