package device

import "sort"

// PropertyParser extracts one property from a line. ok is false when the
// line does not carry the property.
type PropertyParser func(line string) (value any, ok bool)

// InfoReceiver runs a set of property parsers over every line and keeps the
// last value each one produced.
type InfoReceiver struct {
	parsers map[string]PropertyParser
	values  map[string]any
}

// NewInfoReceiver returns an InfoReceiver with no parsers.
func NewInfoReceiver() *InfoReceiver {
	return &InfoReceiver{
		parsers: make(map[string]PropertyParser),
		values:  make(map[string]any),
	}
}

// AddParser registers p under name, replacing any parser with that name.
func (r *InfoReceiver) AddParser(name string, p PropertyParser) {
	r.parsers[name] = p
}

// AddLine offers line to every parser, in name order.
func (r *InfoReceiver) AddLine(line string) error {
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if v, ok := r.parsers[name](line); ok {
			r.values[name] = v
		}
	}
	return nil
}

// Flush does nothing.
func (r *InfoReceiver) Flush() error { return nil }

// Value returns the last value parsed for name.
func (r *InfoReceiver) Value(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Values returns every parsed property.
func (r *InfoReceiver) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}
