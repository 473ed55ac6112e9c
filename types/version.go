// Package types defines core domain types shared by adbshell packages.
//
//nolint:revive // types is a common Go package naming convention
package types

// Version is the canonical project version.
// The CLI, the capture format and adapter events share this version.
const Version = "0.3.0"

// CaptureVersion is written into every capture header. Readers reject
// captures whose major version differs.
const CaptureVersion = Version
