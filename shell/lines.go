package shell

import "strings"

// CollectorOption configures a LineCollector.
type CollectorOption func(*LineCollector)

// ParsesErrorsOption sets the value reported by ParsesErrors.
func ParsesErrorsOption(v bool) CollectorOption {
	return func(c *LineCollector) { c.parsesErrors = v }
}

// TrimLines stores lines with leading and trailing whitespace removed.
func TrimLines(v bool) CollectorOption {
	return func(c *LineCollector) { c.trim = v }
}

// LineCollector records lines in delivery order. It can be fed directly or
// through a Framer, and read at any time.
type LineCollector struct {
	lines        []string
	parsesErrors bool
	trim         bool
}

// NewLineCollector returns an empty LineCollector.
func NewLineCollector(opts ...CollectorOption) *LineCollector {
	c := &LineCollector{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddLine records line.
func (c *LineCollector) AddLine(line string) error {
	if c.trim {
		line = strings.TrimSpace(line)
	}
	c.lines = append(c.lines, line)
	return nil
}

// Flush does nothing.
func (c *LineCollector) Flush() error {
	return nil
}

// ParsesErrors implements ErrorParser.
func (c *LineCollector) ParsesErrors() bool {
	return c.parsesErrors
}

// Lines returns a copy of the recorded lines.
func (c *LineCollector) Lines() []string {
	return append([]string(nil), c.lines...)
}

// Len returns the number of recorded lines.
func (c *LineCollector) Len() int {
	return len(c.lines)
}

// String joins the recorded lines with "\n".
func (c *LineCollector) String() string {
	return strings.Join(c.lines, "\n")
}
