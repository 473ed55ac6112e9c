package shell

import (
	"fmt"
	"regexp"
)

// Signature is one failure pattern recognised by a Sensor.
type Signature struct {
	Kind    FailureKind
	Pattern *regexp.Regexp
}

// NewSignature compiles pattern into a Signature.
func NewSignature(kind FailureKind, pattern string) (Signature, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Signature{}, fmt.Errorf("compile %s signature: %w", kind, err)
	}
	return Signature{Kind: kind, Pattern: re}, nil
}

// DefaultSignatures returns the failure signatures printed by Android shells
// and toolbox/busybox applets.
func DefaultSignatures() []Signature {
	return []Signature{
		{FailureNotFound, regexp.MustCompile(`: not found$`)},
		{FailureNotFound, regexp.MustCompile(`No such file or directory$`)},
		{FailureUnknownOption, regexp.MustCompile(`Unknown option`)},
		{FailureAborting, regexp.MustCompile(`(?i)Aborting\.$`)},
		{FailureNotFound, regexp.MustCompile(`(?i)applet not found$`)},
		{FailurePermissionDenied, regexp.MustCompile(`(?i)(permission|access) denied$`)},
	}
}

// Sensor tests lines against an ordered set of failure signatures.
// A Sensor is immutable and safe to share between framers.
type Sensor struct {
	sigs []Signature
}

// NewSensor returns a Sensor for sigs. Signatures with a nil pattern are
// ignored.
func NewSensor(sigs ...Signature) *Sensor {
	s := &Sensor{}
	for _, sig := range sigs {
		if sig.Pattern != nil {
			s.sigs = append(s.sigs, sig)
		}
	}
	return s
}

// DefaultSensor returns a Sensor using DefaultSignatures.
func DefaultSensor() *Sensor {
	return NewSensor(DefaultSignatures()...)
}

// With returns a copy of s extended with sigs, checked after the existing
// ones.
func (s *Sensor) With(sigs ...Signature) *Sensor {
	all := make([]Signature, 0, len(s.sigs)+len(sigs))
	all = append(all, s.sigs...)
	all = append(all, sigs...)
	return NewSensor(all...)
}

// Signatures returns a copy of the signature set.
func (s *Sensor) Signatures() []Signature {
	return append([]Signature(nil), s.sigs...)
}

// Match returns the kind of the first signature matching line.
func (s *Sensor) Match(line string) (FailureKind, bool) {
	for _, sig := range s.sigs {
		if sig.Pattern.MatchString(line) {
			return sig.Kind, true
		}
	}
	return 0, false
}

// Check returns a *CommandError if line matches a signature, nil otherwise.
func (s *Sensor) Check(line string) error {
	if kind, ok := s.Match(line); ok {
		return &CommandError{Kind: kind, Line: line}
	}
	return nil
}
