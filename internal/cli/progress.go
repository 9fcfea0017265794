package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/fileconv/internal/converter"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// eventMsg carries a converter event into the program.
type eventMsg converter.Event

// canceller is the part of the converter the view drives.
type canceller interface {
	CancelAll()
}

// progressModel is the bubbletea model for a conversion batch.
type progressModel struct {
	conv       canceller
	target     string
	batch      *batch
	progress   progress.Model
	theme      Theme
	cancelling bool
	aborted    bool
}

// newProgressModel creates a new progress model.
func newProgressModel(conv canceller, target string, total int) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		conv:     conv,
		target:   target,
		batch:    newBatch(total),
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// A second press stops waiting for the tools to exit.
			if m.cancelling {
				m.aborted = true
				return m, tea.Quit
			}
			m.cancelling = true
			return m, m.cancelAll()
		}

	case eventMsg:
		if m.batch.record(converter.Event(msg)) && m.batch.complete() {
			return m, tea.Quit
		}
		return m, nil

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// cancelAll posts a cancellation without blocking Update.
func (m progressModel) cancelAll() tea.Cmd {
	return func() tea.Msg {
		m.conv.CancelAll()
		return nil
	}
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.batch.complete() || m.aborted {
		return m.finalView()
	}

	var sb strings.Builder
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.target))
	counts := fmt.Sprintf("%d/%d files", len(m.batch.results), m.batch.total)
	fmt.Fprintf(&sb, "%s %s %s\n", status, m.progress.ViewAs(m.batch.percent()), counts)

	for _, path := range m.batch.running {
		fmt.Fprintf(&sb, "  %s %s\n", m.theme.statusStyle().Render("▸"), filepath.Base(path))
	}

	if m.cancelling {
		sb.WriteString(m.theme.hintStyle().Render("Cancelling... press Ctrl+C again to stop waiting"))
	} else {
		sb.WriteString(m.theme.hintStyle().Render("Press Ctrl+C to cancel"))
	}
	sb.WriteByte('\n')
	return sb.String()
}

// finalView renders the per-file outcome.
func (m progressModel) finalView() string {
	out := m.batch.summary(m.theme)
	if m.aborted {
		out += m.theme.hintStyle().Render("Stopped waiting for running conversions.") + "\n"
	}
	return out
}

// runProgress runs the interactive progress UI until every submission has
// an outcome or the user stops waiting.
func runProgress(p *tea.Program) (*batch, bool, error) {
	finalModel, err := p.Run()
	if err != nil {
		return nil, false, fmt.Errorf("progress UI error: %w", err)
	}
	m, ok := finalModel.(progressModel)
	if !ok {
		return nil, false, fmt.Errorf("progress UI error: unexpected model %T", finalModel)
	}
	return m.batch, m.aborted, nil
}

// programSink forwards events to a running program.
type programSink struct {
	p *tea.Program
}

// Emit implements converter.Sink.
func (s *programSink) Emit(e converter.Event) {
	if s.p != nil {
		s.p.Send(eventMsg(e))
	}
}
