package capture

import "time"

// Header opens a capture.
type Header struct {
	// Type is always "header".
	Type         string    `msgpack:"type"`
	Version      string    `msgpack:"version"`
	InvocationID string    `msgpack:"invocation_id"`
	Serial       string    `msgpack:"serial,omitempty"`
	Command      string    `msgpack:"command,omitempty"`
	Encoding     string    `msgpack:"encoding"`
	StartedAt    time.Time `msgpack:"started_at"`
}

// Chunk is one read from the shell channel, byte-exact.
type Chunk struct {
	// Type is always "chunk".
	Type string `msgpack:"type"`
	// Seq starts at 1 and increases by one per chunk.
	Seq  int64  `msgpack:"seq"`
	Data []byte `msgpack:"data"`
}

// EndReason records why the stream stopped.
type EndReason string

const (
	// EndEOF indicates the source reported end-of-stream.
	EndEOF EndReason = "eof"
	// EndCanceled indicates the recording was canceled.
	EndCanceled EndReason = "canceled"
	// EndError indicates the source failed.
	EndError EndReason = "error"
)

// End closes a capture.
type End struct {
	// Type is always "end".
	Type    string    `msgpack:"type"`
	Reason  EndReason `msgpack:"reason"`
	Message string    `msgpack:"message,omitempty"`
	Chunks  int64     `msgpack:"chunks"`
	Bytes   int64     `msgpack:"bytes"`
}
