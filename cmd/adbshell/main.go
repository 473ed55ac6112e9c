// Package main provides the adbshell CLI entrypoint.
//
// Usage:
//
//	adbshell <command> [options]
//
// Exit codes for frame and replay:
//   - 0: success
//   - 1: command failed (failure signature or install failure)
//   - 2: decode, receiver or stream error
//   - 3: invalid input or configuration
//   - 4: canceled
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/adbshell/cli/cmd"
	"github.com/pithecene-io/adbshell/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "adbshell",
		Usage:          "Frame and inspect adb shell output",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.FrameCommand(),
			cmd.ReplayCommand(),
			cmd.ViewCommand(),
			cmd.EncodingsCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// Reached only for errors the handler did not exit on.
		os.Exit(1)
	}
}

// exitErrHandler prints the error message, if any, and exits with the
// code carried by cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(reportExit(os.Stderr, err))
}

// reportExit writes the message for err to w and returns the exit code.
// cli.Exit("", N) carries no message and prints nothing.
func reportExit(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(w, msg)
		}
		return code
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
