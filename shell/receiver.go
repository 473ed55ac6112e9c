package shell

import "errors"

// Receiver consumes framed shell output.
//
// AddLine is called once per line, in stream order, with the terminator
// stripped. Flush is called exactly once after the last line.
type Receiver interface {
	AddLine(line string) error
	Flush() error
}

// ErrorParser is implemented by receivers that detect command failures
// themselves. A receiver reporting true is exempt from error sensing.
type ErrorParser interface {
	ParsesErrors() bool
}

// parsesErrors reports whether r opts out of error sensing.
func parsesErrors(r Receiver) bool {
	p, ok := r.(ErrorParser)
	return ok && p.ParsesErrors()
}

// ReceiverFunc adapts a function to a Receiver with a no-op Flush.
type ReceiverFunc func(line string) error

// AddLine calls f(line).
func (f ReceiverFunc) AddLine(line string) error {
	return f(line)
}

// Flush does nothing.
func (ReceiverFunc) Flush() error {
	return nil
}

// Tee returns a Receiver that delivers every line to each receiver in order.
// AddLine stops at the first error. Flush flushes every receiver and joins
// their errors. The tee parses its own errors only if every receiver does.
func Tee(receivers ...Receiver) Receiver {
	rs := make([]Receiver, 0, len(receivers))
	for _, r := range receivers {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return tee(rs)
}

type tee []Receiver

func (t tee) AddLine(line string) error {
	for _, r := range t {
		if err := r.AddLine(line); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Flush() error {
	var errs []error
	for _, r := range t {
		if err := r.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) ParsesErrors() bool {
	if len(t) == 0 {
		return false
	}
	for _, r := range t {
		if !parsesErrors(r) {
			return false
		}
	}
	return true
}
