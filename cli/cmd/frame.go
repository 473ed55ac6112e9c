package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/adbshell/capture"
	"github.com/pithecene-io/adbshell/types"
)

// FrameCommand returns the frame command.
// It frames shell output read from stdin or a file.
func FrameCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Read shell output from this file instead of stdin",
			Value:   "-",
		},
		&cli.StringFlag{
			Name:    "serial",
			Aliases: []string{"s"},
			Usage:   "Device serial recorded with the invocation",
			EnvVars: []string{"ANDROID_SERIAL"},
		},
		&cli.StringFlag{
			Name:  "command",
			Usage: "Shell command line that produced the output",
		},
		&cli.StringFlag{
			Name:  "record",
			Usage: "Record the raw chunks to a capture file",
		},
	}
	return &cli.Command{
		Name:      "frame",
		Usage:     "Frame shell output into lines and run a receiver over it",
		ArgsUsage: " ",
		Flags:     append(flags, framingFlags()...),
		Action:    frameAction,
	}
}

func frameAction(c *cli.Context) error {
	ch, err := resolveChoice(c)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}
	cd, err := ch.codec()
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	meta := types.NewInvocationMeta(c.String("serial"), c.String("command"))
	if err := meta.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid invocation: %v", err), exitInvalidInput)
	}

	src, closeSrc, err := openInput(c, c.String("input"))
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}
	defer closeSrc()

	var recorder *capture.Writer
	if path := c.String("record"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot create capture file: %v", err), exitInvalidInput)
		}
		defer func() { _ = f.Close() }()
		recorder = capture.NewWriter(f)
	}

	inv := &invocation{
		choice:    ch,
		meta:      meta,
		codec:     cd,
		src:       src,
		chunkSize: ch.chunkSize,
		recorder:  recorder,
	}
	return inv.run(c)
}

// openInput opens path, or the app's stdin for "-".
func openInput(c *cli.Context, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		in := c.App.Reader
		if in == nil {
			in = os.Stdin
		}
		return in, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
