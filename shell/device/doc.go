// Package device provides receivers that parse the output of common Android
// shell commands.
//
// Each receiver is create-per-invocation: feed it through a shell.Framer, call
// Finish, then read the parsed result.
package device
