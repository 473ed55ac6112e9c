// Package shell turns the raw byte stream of a device shell channel into
// ordered text lines for pluggable receivers.
//
// The transport pushes chunks into a Framer as they arrive. The Framer decodes
// them with a strict codec, carries incomplete characters and unterminated
// text between calls, and hands every complete line to a Receiver. Exactly one
// Finish call ends the stream: it emits a trailing unterminated line, if any,
// and flushes the receiver.
//
// Chunk boundaries never affect output. "\n", "\r" and "\r\n" each end one
// line, including a "\r\n" split across two chunks.
//
// Error sensing is off by default. A Framer built WithErrorSensing scans each
// delivered line for known device-shell failure signatures and records the
// first match as its Failure. Sensing never stops delivery.
//
// A Framer is driven by a single goroutine. A concurrent Feed is detected and
// rejected, not serialized.
package shell
