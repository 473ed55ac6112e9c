package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// headerHeight and footerHeight are the rows reserved around the viewport.
const (
	headerHeight = 2
	footerHeight = 1
)

// LinesModel is a scrollable view over framed lines.
type LinesModel struct {
	data     *LinesData
	viewport viewport.Model
	ready    bool
	quitting bool
}

// NewLinesModel creates a lines model. The viewport is sized on the first
// tea.WindowSizeMsg.
func NewLinesModel(data *LinesData) LinesModel {
	return LinesModel{data: data}
}

// Init implements tea.Model.
func (m LinesModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m LinesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - headerHeight - footerHeight
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.SetContent(m.content())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Top):
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, keys.End):
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m LinesModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}
	return m.header() + "\n" + m.viewport.View() + "\n" + m.footer()
}

func (m LinesModel) header() string {
	title := TitleStyle.Render(m.data.Title)
	if m.data.Outcome == "" {
		return title + "\n"
	}
	return title + "  " + OutcomeStyle(m.data.Outcome).Render(m.data.Outcome) + "\n"
}

func (m LinesModel) footer() string {
	pct := int(m.viewport.ScrollPercent() * 100)
	return HelpStyle.Render(fmt.Sprintf("%d lines  %3d%%  q quit  g/G top/bottom", len(m.data.Lines), pct))
}

// content renders every line with a right-aligned line-number gutter.
func (m LinesModel) content() string {
	width := len(strconv.Itoa(len(m.data.Lines)))
	var b strings.Builder
	for i, line := range m.data.Lines {
		gutter := GutterStyle.Render(fmt.Sprintf("%*d ", width, i+1))
		if i == m.data.FailureIndex {
			line = FailureLineStyle.Render(line)
		}
		b.WriteString(gutter)
		b.WriteString(line)
		if i < len(m.data.Lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
