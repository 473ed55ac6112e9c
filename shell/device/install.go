package device

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pithecene-io/adbshell/shell"
)

// UnknownInstallError is reported when the failure carries no reason.
const UnknownInstallError = "An unknown error occurred."

// ErrNoInstallResult is returned by Err when no result line was seen.
var ErrNoInstallResult = errors.New("install produced no result")

var (
	installSuccessPattern = regexp.MustCompile(`(?i)^Success:\s+(.*)`)
	installFailurePattern = regexp.MustCompile(`(?i)^Failure(?:\s+\[(.*)\])?`)
	installErrorPattern   = regexp.MustCompile(`(?i)^Error:\s+(.*)`)
)

// InstallResult is the outcome reported by "pm install".
type InstallResult struct {
	Success bool `json:"success"`
	// Message is the success detail or the failure reason.
	Message string `json:"message,omitempty"`
}

// InstallError is returned by InstallReceiver.Err for a failed install.
type InstallError struct {
	Reason string
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install failed: %s", e.Reason)
}

// InstallReceiver parses "pm install" output on Flush. The last result
// line wins. It detects failures itself and is exempt from error sensing.
type InstallReceiver struct {
	lines  *shell.LineCollector
	result InstallResult
	seen   bool
}

// NewInstallReceiver returns an empty InstallReceiver.
func NewInstallReceiver() *InstallReceiver {
	return &InstallReceiver{lines: shell.NewLineCollector(shell.ParsesErrorsOption(true))}
}

// AddLine buffers line until Flush.
func (r *InstallReceiver) AddLine(line string) error {
	return r.lines.AddLine(line)
}

// ParsesErrors implements shell.ErrorParser.
func (r *InstallReceiver) ParsesErrors() bool {
	return r.lines.ParsesErrors()
}

// Flush parses the buffered lines.
func (r *InstallReceiver) Flush() error {
	for _, line := range r.lines.Lines() {
		if line == "" {
			continue
		}
		r.seen = true
		switch {
		case strings.HasPrefix(line, "Success"):
			r.result = InstallResult{Success: true}
			if m := installSuccessPattern.FindStringSubmatch(line); m != nil {
				r.result.Message = m[1]
			}
		case strings.HasPrefix(line, "Failure"):
			r.result = InstallResult{Message: reason(installFailurePattern.FindStringSubmatch(line))}
		default:
			r.result = InstallResult{Message: reason(installErrorPattern.FindStringSubmatch(line))}
		}
	}
	return nil
}

func reason(m []string) string {
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return UnknownInstallError
	}
	return m[1]
}

// Result returns the parsed result.
func (r *InstallReceiver) Result() InstallResult {
	return r.result
}

// Err returns nil on success, an *InstallError on failure, or
// ErrNoInstallResult when the output was empty.
func (r *InstallReceiver) Err() error {
	if !r.seen {
		return ErrNoInstallResult
	}
	if r.result.Success {
		return nil
	}
	return &InstallError{Reason: r.result.Message}
}
