package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/adbshell/metrics"
)

// SummaryModel shows framing counters as stat boxes.
type SummaryModel struct {
	snap     *metrics.Snapshot
	width    int
	quitting bool
}

// NewSummaryModel creates a summary model.
func NewSummaryModel(snap *metrics.Snapshot) SummaryModel {
	return SummaryModel{snap: snap}
}

// Init implements tea.Model.
func (m SummaryModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SummaryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m SummaryModel) View() string {
	if m.quitting {
		return ""
	}
	s := m.snap

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Invocation " + s.InvocationID))
	b.WriteString("\n\n")
	b.WriteString(LabelStyle.Render("Encoding:") + " " + s.Encoding + "\n")
	b.WriteString(LabelStyle.Render("Receiver:") + " " + s.Receiver + "\n\n")

	boxes := []string{
		statBox("Chunks", s.ChunksFed),
		statBox("Bytes", s.BytesFed),
		statBox("Lines", s.LinesEmitted),
		statBox("Flushes", s.FlushesEmitted),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n")

	errBoxes := []string{
		statBox("Decode errors", s.DecodeErrors),
		statBox("Receiver errors", s.ReceiverErrors),
		statBox("Signatures", s.FailureSignatures),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, errBoxes...))
	b.WriteString("\n")

	if len(s.FailuresByKind) > 0 {
		kinds := make([]string, 0, len(s.FailuresByKind))
		for k := range s.FailuresByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		b.WriteString("\n")
		for _, k := range kinds {
			b.WriteString(LabelStyle.Render(k+":") + " " + ErrorStyle.Render(fmt.Sprint(s.FailuresByKind[k])) + "\n")
		}
	}

	b.WriteString("\n" + HelpStyle.Render("Press q or Ctrl+C to quit"))
	return b.String()
}

func statBox(label string, value int64) string {
	content := StatValueStyle.Render(fmt.Sprint(value)) + "\n" + StatLabelStyle.Render(label)
	return StatBoxStyle.Render(content)
}
