package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/adbshell/capture"
	"github.com/pithecene-io/adbshell/shell/codec"
)

// ReplayCommand returns the replay command.
// It re-frames a capture with the recorded chunk boundaries.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Re-frame a recorded capture",
		ArgsUsage: "<capture-file>",
		Flags:     framingFlags(),
		Action:    replayAction,
	}
}

func replayAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("replay requires exactly one capture file", exitInvalidInput)
	}
	ch, err := resolveChoice(c)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	src, closeSrc, err := openInput(c, c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}
	defer closeSrc()

	r := capture.NewReader(src)
	h, err := r.ReadHeader()
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid capture: %v", err), exitInvalidInput)
	}

	// The recorded encoding applies unless overridden.
	cd, err := ch.codec()
	if ch.encoding == "" {
		cd, err = codec.Lookup(h.Encoding)
	}
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	chunkSize := ch.chunkSize
	if chunkSize == 0 {
		chunkSize = capture.MaxChunkSize
	}

	inv := &invocation{
		choice:    ch,
		meta:      h.Meta(),
		codec:     cd,
		src:       capture.NewChunkReader(r),
		chunkSize: chunkSize,
	}
	return inv.run(c)
}
