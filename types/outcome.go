//nolint:revive // types is a common Go package naming convention
package types

// Outcome is the terminal classification of a framed invocation.
type Outcome string

const (
	// OutcomeSuccess indicates the stream ended cleanly and no failure
	// signature was seen.
	OutcomeSuccess Outcome = "success"
	// OutcomeCommandFailed indicates the error-sensing policy flagged a line.
	OutcomeCommandFailed Outcome = "command_failed"
	// OutcomeDecodeError indicates the stream held malformed bytes.
	OutcomeDecodeError Outcome = "decode_error"
	// OutcomeReceiverError indicates a receiver rejected a line or its flush.
	OutcomeReceiverError Outcome = "receiver_error"
	// OutcomeStreamError indicates the source failed before end-of-stream.
	OutcomeStreamError Outcome = "stream_error"
	// OutcomeCanceled indicates the context was canceled mid-stream.
	OutcomeCanceled Outcome = "canceled"
)

// ExitCode maps an outcome to the CLI exit code.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSuccess:
		return 0
	case OutcomeCommandFailed:
		return 1
	case OutcomeDecodeError, OutcomeReceiverError, OutcomeStreamError:
		return 2
	case OutcomeCanceled:
		return 4
	default:
		return 3
	}
}

// IsTerminalFailure reports whether the outcome means the output is not
// trustworthy. A flagged command still produced complete output.
func (o Outcome) IsTerminalFailure() bool {
	switch o {
	case OutcomeSuccess, OutcomeCommandFailed:
		return false
	default:
		return true
	}
}
