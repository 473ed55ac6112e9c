package device

import (
	"regexp"
	"strings"
)

// GetPropCommand lists all system properties.
const GetPropCommand = "/system/bin/getprop"

var getPropPattern = regexp.MustCompile(`^\[([^\]]+)\]:\s*\[(.*)\]$`)

// GetPropReceiver parses "[key]: [value]" lines.
type GetPropReceiver struct {
	props map[string]string
}

// NewGetPropReceiver returns an empty GetPropReceiver.
func NewGetPropReceiver() *GetPropReceiver {
	return &GetPropReceiver{props: make(map[string]string)}
}

// AddLine records one property. Prompt echoes and unrecognised lines are
// ignored.
func (r *GetPropReceiver) AddLine(line string) error {
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "$") {
		return nil
	}
	m := getPropPattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	key := strings.TrimSpace(m[1])
	if key != "" {
		r.props[key] = strings.TrimSpace(m[2])
	}
	return nil
}

// Flush does nothing.
func (r *GetPropReceiver) Flush() error { return nil }

// Properties returns the parsed properties. Later lines override earlier
// ones with the same key.
func (r *GetPropReceiver) Properties() map[string]string {
	out := make(map[string]string, len(r.props))
	for k, v := range r.props {
		out[k] = v
	}
	return out
}
