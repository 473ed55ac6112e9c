// Package codec provides the text encoding shared by the line framer and the
// byte reconstruction receiver.
//
// A Codec wraps a golang.org/x/text encoding and exposes a strict decoder:
// malformed input is reported as an error instead of being replaced with
// U+FFFD, so a bad byte can never silently merge or split lines.
//
// The process-wide default is UTF-8. It can be replaced with SetDefault and
// overridden per framer or receiver by passing a Codec explicitly.
package codec

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnsupported is returned by Lookup for names that have no implementation.
var ErrUnsupported = errors.New("unsupported encoding")

// ErrInvalidInput is returned when bytes are malformed for the codec.
var ErrInvalidInput = errors.New("malformed input for encoding")

// Codec is a named text encoding.
type Codec struct {
	name string
	enc  encoding.Encoding
	utf8 bool
}

var utf8Codec = &Codec{name: "UTF-8", enc: unicode.UTF8, utf8: true}

var defaultCodec atomic.Pointer[Codec]

func init() {
	defaultCodec.Store(utf8Codec)
}

// UTF8 returns the UTF-8 codec.
func UTF8() *Codec {
	return utf8Codec
}

// Default returns the process-wide default codec.
func Default() *Codec {
	return defaultCodec.Load()
}

// SetDefault replaces the process-wide default codec and returns the previous
// one. A nil codec restores UTF-8.
func SetDefault(c *Codec) *Codec {
	if c == nil {
		c = utf8Codec
	}
	return defaultCodec.Swap(c)
}

// OrDefault returns c, or the process-wide default when c is nil.
func OrDefault(c *Codec) *Codec {
	if c == nil {
		return Default()
	}
	return c
}

// Lookup resolves an IANA encoding name or alias (case-insensitive), such as
// "utf-8", "latin1", "windows-1252" or "Shift_JIS".
func Lookup(name string) (*Codec, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnsupported)
	}

	enc, err := ianaindex.IANA.Encoding(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupported, trimmed, err)
	}
	// ianaindex knows some names it has no implementation for.
	if enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, trimmed)
	}

	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil || canonical == "" {
		canonical = trimmed
	}

	if enc == unicode.UTF8 || strings.EqualFold(canonical, "UTF-8") {
		return utf8Codec, nil
	}
	return &Codec{name: canonical, enc: enc}, nil
}

// MustLookup is like Lookup but panics on error. Intended for package-level
// variables and tests.
func MustLookup(name string) *Codec {
	c, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the canonical IANA name.
func (c *Codec) Name() string {
	return c.name
}

// String implements fmt.Stringer.
func (c *Codec) String() string {
	return c.name
}

// IsUTF8 reports whether the codec is UTF-8.
func (c *Codec) IsUTF8() bool {
	return c.utf8
}

// NewDecoder returns a fresh, strict, incremental decoder producing UTF-8.
//
// The returned transformer follows the transform.Transformer contract: it
// reports transform.ErrShortSrc when the input ends inside a multi-byte
// sequence and atEOF is false, and a non-nil error wrapping ErrInvalidInput
// for malformed input.
func (c *Codec) NewDecoder() transform.Transformer {
	if c.utf8 {
		return utf8Validator{}
	}
	return strictTransformer{inner: c.enc.NewDecoder(), checkOutput: true}
}

// Decode decodes a complete byte sequence.
func (c *Codec) Decode(b []byte) (string, error) {
	if c.utf8 {
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%w %s", ErrInvalidInput, c.name)
		}
		return string(b), nil
	}
	out, _, err := transform.Bytes(c.NewDecoder(), b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Encode encodes s. Runes the encoding cannot represent are an error.
func (c *Codec) Encode(s string) ([]byte, error) {
	if c.utf8 {
		return []byte(s), nil
	}
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.name, err)
	}
	return out, nil
}

// strictTransformer turns decoder substitutions into errors.
//
// x/text decoders for legacy encodings replace undecodable bytes with U+FFFD.
// When checkOutput is set, any U+FFFD in the decoded output is treated as
// malformed input. Such encodings cannot carry a literal U+FFFD.
type strictTransformer struct {
	inner       transform.Transformer
	checkOutput bool
}

func (t strictTransformer) Reset() {
	t.inner.Reset()
}

func (t strictTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	nDst, nSrc, err = t.inner.Transform(dst, src, atEOF)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) && !errors.Is(err, transform.ErrShortDst) {
		return nDst, nSrc, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if t.checkOutput && containsReplacement(dst[:nDst]) {
		return 0, 0, ErrInvalidInput
	}
	return nDst, nSrc, err
}

func containsReplacement(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 3 {
			return true
		}
		b = b[size:]
	}
	return false
}

// utf8Validator passes valid UTF-8 through unchanged and rejects the first
// invalid byte. The x/text UTF-8 decoder substitutes instead.
type utf8Validator struct{ transform.NopResetter }

func (utf8Validator) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if c < utf8.RuneSelf {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = c
			nDst++
			nSrc++
			continue
		}
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size <= 1 {
			if !atEOF && !utf8.FullRune(src[nSrc:]) {
				return nDst, nSrc, transform.ErrShortSrc
			}
			return nDst, nSrc, ErrInvalidInput
		}
		if nDst+size > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], src[nSrc:nSrc+size])
		nSrc += size
	}
	return nDst, nSrc, nil
}
