// Package metrics provides per-invocation counters for the framing pipeline.
//
// The Collector accumulates counters while one shell output stream is framed.
// It is a leaf package with no internal dependencies. All increment methods are
// nil-receiver safe so the framer can record unconditionally.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Input
	ChunksFed int64 `json:"chunks_fed" yaml:"chunks_fed"`
	BytesFed  int64 `json:"bytes_fed" yaml:"bytes_fed"`

	// TruncatedBytes counts bytes of an incomplete trailing sequence dropped
	// when the stream stopped early.
	TruncatedBytes int64 `json:"truncated_bytes" yaml:"truncated_bytes"`

	// Output
	LinesEmitted   int64 `json:"lines_emitted" yaml:"lines_emitted"`
	FlushesEmitted int64 `json:"flushes" yaml:"flushes"`

	// Failures
	DecodeErrors      int64            `json:"decode_errors" yaml:"decode_errors"`
	ReceiverErrors    int64            `json:"receiver_errors" yaml:"receiver_errors"`
	FailureSignatures int64            `json:"failure_signatures" yaml:"failure_signatures"`
	FailuresByKind    map[string]int64 `json:"failures_by_kind,omitempty" yaml:"failures_by_kind,omitempty"`

	// Dimensions (informational, set at construction)
	Encoding     string `json:"encoding" yaml:"encoding"`
	Receiver     string `json:"receiver" yaml:"receiver"`
	InvocationID string `json:"invocation_id,omitempty" yaml:"invocation_id,omitempty"`
}

// Collector accumulates counters during a single invocation.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	chunksFed      int64
	bytesFed       int64
	truncatedBytes int64

	linesEmitted   int64
	flushesEmitted int64

	decodeErrors      int64
	receiverErrors    int64
	failureSignatures int64
	failuresByKind    map[string]int64

	encoding     string
	receiver     string
	invocationID string
}

// NewCollector creates a Collector with dimension labels.
// invocationID is optional.
func NewCollector(encoding, receiver, invocationID string) *Collector {
	return &Collector{
		failuresByKind: make(map[string]int64),
		encoding:       encoding,
		receiver:       receiver,
		invocationID:   invocationID,
	}
}

// --- Input ---

// AddChunk records one fed chunk of n bytes.
func (c *Collector) AddChunk(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksFed++
	c.bytesFed += int64(n)
	c.mu.Unlock()
}

// AddTruncated records n undecodable trailing bytes dropped at an early end.
func (c *Collector) AddTruncated(n int) {
	if c == nil || n == 0 {
		return
	}
	c.mu.Lock()
	c.truncatedBytes += int64(n)
	c.mu.Unlock()
}

// --- Output ---

// IncLines records lines delivered to the receiver.
func (c *Collector) IncLines(n int) {
	if c == nil || n == 0 {
		return
	}
	c.mu.Lock()
	c.linesEmitted += int64(n)
	c.mu.Unlock()
}

// IncFlush records a receiver flush.
func (c *Collector) IncFlush() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.flushesEmitted++
	c.mu.Unlock()
}

// --- Failures ---

// IncDecodeErrors records a decode failure.
func (c *Collector) IncDecodeErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeErrors++
	c.mu.Unlock()
}

// IncReceiverErrors records an error returned by a receiver.
func (c *Collector) IncReceiverErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.receiverErrors++
	c.mu.Unlock()
}

// IncFailureSignature records a line that matched a failure signature.
// Every match is counted, including those after the first.
func (c *Collector) IncFailureSignature(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.failureSignatures++
	c.failuresByKind[kind]++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.failuresByKind))
	for k, v := range c.failuresByKind {
		byKind[k] = v
	}

	return Snapshot{
		ChunksFed:      c.chunksFed,
		BytesFed:       c.bytesFed,
		TruncatedBytes: c.truncatedBytes,

		LinesEmitted:   c.linesEmitted,
		FlushesEmitted: c.flushesEmitted,

		DecodeErrors:      c.decodeErrors,
		ReceiverErrors:    c.receiverErrors,
		FailureSignatures: c.failureSignatures,
		FailuresByKind:    byKind,

		Encoding:     c.encoding,
		Receiver:     c.receiver,
		InvocationID: c.invocationID,
	}
}
