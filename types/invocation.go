//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InvocationMeta identifies one shell command invocation whose output is
// being framed.
type InvocationMeta struct {
	// InvocationID is a globally unique identifier (UUID v4).
	InvocationID string `msgpack:"invocation_id" json:"invocation_id" yaml:"invocation_id"`
	// Serial is the device serial number. Empty when unknown.
	Serial string `msgpack:"serial,omitempty" json:"serial,omitempty" yaml:"serial,omitempty"`
	// Command is the shell command line that produced the output.
	Command string `msgpack:"command,omitempty" json:"command,omitempty" yaml:"command,omitempty"`
	// StartedAt is when the invocation began.
	StartedAt time.Time `msgpack:"started_at" json:"started_at" yaml:"started_at"`
}

// NewInvocationMeta returns metadata with a fresh invocation ID.
func NewInvocationMeta(serial, command string) *InvocationMeta {
	return &InvocationMeta{
		InvocationID: uuid.NewString(),
		Serial:       serial,
		Command:      command,
		StartedAt:    time.Now().UTC(),
	}
}

// Validate checks that the metadata is usable as a capture header or
// event identity.
func (m *InvocationMeta) Validate() error {
	if m == nil {
		return errors.New("invocation meta is nil")
	}
	if strings.TrimSpace(m.InvocationID) == "" {
		return errors.New("invocation_id must be non-empty")
	}
	if _, err := uuid.Parse(m.InvocationID); err != nil {
		return errors.New("invocation_id must be a UUID")
	}
	if strings.ContainsAny(m.Serial, "/\\") {
		return errors.New("serial must not contain path separators")
	}
	return nil
}
