package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/adbshell/metrics"
)

// View types accepted by Run.
const (
	ViewLines   = "view_lines"
	ViewSummary = "view_summary"
)

// LinesData is the payload for ViewLines.
type LinesData struct {
	Title   string
	Outcome string
	Lines   []string
	// FailureIndex is the index of the line that tripped error sensing,
	// or -1.
	FailureIndex int
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
	Top  key.Binding
	End  key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
	Top: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	End: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	for _, v := range SupportedTUIViews() {
		if v == viewType {
			return true
		}
	}
	return false
}

// SupportedTUIViews returns the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewLines, ViewSummary}
}

// NewModel builds the model for a view type.
func NewModel(viewType string, data any) (tea.Model, error) {
	switch viewType {
	case ViewLines:
		d, ok := data.(*LinesData)
		if !ok {
			return nil, fmt.Errorf("invalid data type %T for %s", data, viewType)
		}
		return NewLinesModel(d), nil
	case ViewSummary:
		s, ok := data.(*metrics.Snapshot)
		if !ok {
			return nil, fmt.Errorf("invalid data type %T for %s", data, viewType)
		}
		return NewSummaryModel(s), nil
	default:
		return nil, fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
}

// Run starts the TUI for viewType and blocks until the user quits.
func Run(viewType string, data any) error {
	m, err := NewModel(viewType, data)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
