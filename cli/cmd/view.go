package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/adbshell/capture"
	"github.com/pithecene-io/adbshell/cli/render"
	"github.com/pithecene-io/adbshell/cli/tui"
	"github.com/pithecene-io/adbshell/metrics"
	"github.com/pithecene-io/adbshell/shell"
	"github.com/pithecene-io/adbshell/shell/codec"
	"github.com/pithecene-io/adbshell/types"
)

// ViewResponse is the response for the view command.
type ViewResponse struct {
	InvocationID string   `json:"invocation_id"`
	Serial       string   `json:"serial,omitempty"`
	Command      string   `json:"command,omitempty"`
	Encoding     string   `json:"encoding"`
	Outcome      string   `json:"outcome"`
	EndReason    string   `json:"end_reason,omitempty"`
	FailureKind  string   `json:"failure_kind,omitempty"`
	FailureLine  string   `json:"failure_line,omitempty"`
	Error        string   `json:"error,omitempty"`
	Lines        []string `json:"lines"`
}

// ViewCommand returns the view command.
// It is read-only: it frames a capture in memory and shows the lines.
func ViewCommand() *cli.Command {
	flags := append(ReadOnlyFlags(),
		&cli.StringFlag{
			Name:  "encoding",
			Usage: "Override the recorded encoding",
		},
		&cli.BoolFlag{
			Name:  "sense-errors",
			Usage: "Highlight the first line matching a failure signature",
		},
		&cli.BoolFlag{
			Name:  "summary",
			Usage: "Show framing counters instead of lines",
		},
	)
	return &cli.Command{
		Name:      "view",
		Usage:     "Show the lines of a recorded capture",
		ArgsUsage: "<capture-file>",
		Flags:     flags,
		Action:    viewAction,
	}
}

func viewAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("view requires exactly one capture file", exitInvalidInput)
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

	name := h.Encoding
	if c.IsSet("encoding") {
		name = c.String("encoding")
	}
	cd, err := codec.Lookup(name)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	resp, snap := viewCapture(c, r, h, cd)

	if c.Bool("tui") {
		if c.Bool("summary") {
			return tui.Run(tui.ViewSummary, snap)
		}
		return tui.Run(tui.ViewLines, linesData(resp))
	}

	rend, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("summary") {
		return rend.Render(snap)
	}
	return rend.Render(resp)
}

// viewCapture replays the rest of r into a line collector.
func viewCapture(c *cli.Context, r *capture.Reader, h *capture.Header, cd *codec.Codec) (*ViewResponse, *metrics.Snapshot) {
	lines := shell.NewLineCollector()
	collector := metrics.NewCollector(cd.Name(), "lines", h.InvocationID)
	opts := []shell.Option{shell.WithCodec(cd), shell.WithCollector(collector)}
	if c.Bool("sense-errors") {
		opts = append(opts, shell.WithErrorSensing(shell.DefaultSensor()))
	}
	f := shell.NewFramer(lines, opts...)

	resp := &ViewResponse{
		InvocationID: h.InvocationID,
		Serial:       h.Serial,
		Command:      h.Command,
		Encoding:     cd.Name(),
		Outcome:      string(types.OutcomeSuccess),
	}

	err := capture.Replay(c.Context, r, f)
	switch {
	case err == nil:
	case shell.IsDecodeError(err):
		resp.Outcome = string(types.OutcomeDecodeError)
	case shell.IsReceiverError(err):
		resp.Outcome = string(types.OutcomeReceiverError)
	default:
		resp.Outcome = string(types.OutcomeStreamError)
	}
	if err != nil {
		resp.Error = err.Error()
	}

	if end := r.End(); end != nil {
		resp.EndReason = string(end.Reason)
		if end.Reason == capture.EndCanceled && err == nil {
			resp.Outcome = string(types.OutcomeCanceled)
		}
	}
	if fail := f.Failure(); fail != nil {
		resp.FailureKind = fail.Kind.String()
		resp.FailureLine = fail.Line
		if resp.Outcome == string(types.OutcomeSuccess) {
			resp.Outcome = string(types.OutcomeCommandFailed)
		}
	}
	resp.Lines = lines.Lines()

	snap := collector.Snapshot()
	return resp, &snap
}

func linesData(resp *ViewResponse) *tui.LinesData {
	title := resp.Command
	if title == "" {
		title = resp.InvocationID
	}
	failure := -1
	if resp.FailureLine != "" {
		for i, l := range resp.Lines {
			if l == resp.FailureLine {
				failure = i
				break
			}
		}
	}
	return &tui.LinesData{
		Title:        title,
		Outcome:      resp.Outcome,
		Lines:        resp.Lines,
		FailureIndex: failure,
	}
}
