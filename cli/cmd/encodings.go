package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/adbshell/cli/render"
	"github.com/pithecene-io/adbshell/shell/codec"
)

// commonEncodings are listed when no names are given.
var commonEncodings = []string{
	"UTF-8",
	"UTF-16LE",
	"UTF-16BE",
	"ISO-8859-1",
	"ISO-8859-15",
	"windows-1251",
	"windows-1252",
	"KOI8-R",
	"Shift_JIS",
	"EUC-JP",
	"EUC-KR",
	"GBK",
	"Big5",
}

// EncodingInfo describes one encoding name.
type EncodingInfo struct {
	Name      string `json:"name"`
	Canonical string `json:"canonical,omitempty"`
	Supported bool   `json:"supported"`
	Default   bool   `json:"default,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EncodingsCommand returns the encodings command.
func EncodingsCommand() *cli.Command {
	return &cli.Command{
		Name:      "encodings",
		Usage:     "List or resolve text encodings",
		ArgsUsage: "[name...]",
		Flags:     ReadOnlyFlags(),
		Action:    encodingsAction,
	}
}

func encodingsAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for encodings command", exitInvalidInput)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	names := c.Args().Slice()
	if len(names) == 0 {
		names = commonEncodings
	}
	return r.Render(resolveEncodings(names))
}

func resolveEncodings(names []string) []EncodingInfo {
	def := codec.Default()
	infos := make([]EncodingInfo, 0, len(names))
	for _, name := range names {
		info := EncodingInfo{Name: name}
		cd, err := codec.Lookup(name)
		if err != nil {
			info.Error = err.Error()
		} else {
			info.Supported = true
			info.Canonical = cd.Name()
			info.Default = cd == def
		}
		infos = append(infos, info)
	}
	return infos
}
