package device

import (
	"regexp"
	"strings"
)

// PrintEnvCommand lists the shell environment.
const PrintEnvCommand = "/system/bin/printenv"

var envPattern = regexp.MustCompile(`^([^=\s]+)\s*=\s*(.*)$`)

// EnvReceiver parses "KEY=value" lines.
type EnvReceiver struct {
	vars map[string]string
}

// NewEnvReceiver returns an empty EnvReceiver.
func NewEnvReceiver() *EnvReceiver {
	return &EnvReceiver{vars: make(map[string]string)}
}

// AddLine records one variable.
func (r *EnvReceiver) AddLine(line string) error {
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	if m := envPattern.FindStringSubmatch(line); m != nil {
		r.vars[m[1]] = strings.TrimSpace(m[2])
	}
	return nil
}

// Flush does nothing.
func (r *EnvReceiver) Flush() error { return nil }

// Variables returns the parsed environment.
func (r *EnvReceiver) Variables() map[string]string {
	out := make(map[string]string, len(r.vars))
	for k, v := range r.vars {
		out[k] = v
	}
	return out
}
