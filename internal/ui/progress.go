// Package ui renders build progress, either as a Bubble Tea view or as plain
// lines for non-terminal output.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"dxdrive/internal/buildpipeline"
)

// stageShare is how far along a shader is once a stage starts.
var stageShare = map[buildpipeline.Stage]float64{
	buildpipeline.StageLoad:    0.05,
	buildpipeline.StageCache:   0.1,
	buildpipeline.StageCompile: 0.5,
	buildpipeline.StageWrite:   0.9,
}

var workingLabel = map[buildpipeline.Stage]string{
	buildpipeline.StageLoad:    "loading",
	buildpipeline.StageCache:   "lookup",
	buildpipeline.StageCompile: "compiling",
	buildpipeline.StageWrite:   "writing",
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	detailStyle  = lipgloss.NewStyle().Faint(true)
)

const statusColumn = 10

type shaderItem struct {
	name    string
	status  buildpipeline.Status
	stage   buildpipeline.Stage
	detail  string
	elapsed time.Duration
}

func (it shaderItem) label() string {
	if it.status == buildpipeline.StatusWorking {
		return workingLabel[it.stage]
	}
	return string(it.status)
}

func (it shaderItem) style() lipgloss.Style {
	switch it.status {
	case buildpipeline.StatusDone, buildpipeline.StatusCached:
		return okStyle
	case buildpipeline.StatusError:
		return failStyle
	case buildpipeline.StatusWorking:
		return workingStyle
	default:
		return idleStyle
	}
}

type progressModel struct {
	title   string
	events  <-chan buildpipeline.Event
	spinner spinner.Model
	bar     progress.Model
	items   []shaderItem
	index   map[string]int
	width   int
	done    bool
}

type eventMsg buildpipeline.Event
type doneMsg struct{}

// NewProgressModel returns a model showing one row per shader. It quits
// once events is closed.
func NewProgressModel(title string, shaders []string, events <-chan buildpipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = workingStyle

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 60

	m := &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     bar,
		items:   make([]shaderItem, len(shaders)),
		index:   make(map[string]int, len(shaders)),
		width:   80,
	}
	for i, name := range shaders {
		m.items[i] = shaderItem{name: name, status: buildpipeline.StatusQueued}
		m.index[name] = i
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.applyEvent(buildpipeline.Event(msg)), m.next())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = min(msg.Width-4, 100)
		}
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	var b strings.Builder
	prefix := m.spinner.View()
	if m.done {
		prefix = "✓"
	}
	b.WriteString(titleStyle.Render(prefix + " " + m.title))
	b.WriteString("\n\n")

	nameWidth := max(m.width-statusColumn-16, 16)
	for _, it := range m.items {
		fmt.Fprintf(&b, "  %s %s", it.style().Render(fmt.Sprintf("%*s", statusColumn, it.label())), truncate(it.name, nameWidth))
		switch {
		case it.detail != "":
			b.WriteString("  " + failStyle.Render(truncate(it.detail, max(m.width/2, 20))))
		case it.elapsed > 0:
			b.WriteString("  " + detailStyle.Render(it.elapsed.Round(time.Millisecond).String()))
		}
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	if m.done {
		b.WriteString(m.bar.ViewAs(1))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteByte('\n')
	b.WriteString(m.counts())
	b.WriteByte('\n')
	return b.String()
}

func (m *progressModel) counts() string {
	var built, cached, failed int
	for _, it := range m.items {
		switch it.status {
		case buildpipeline.StatusDone:
			built++
		case buildpipeline.StatusCached:
			cached++
		case buildpipeline.StatusError:
			failed++
		}
	}
	return fmt.Sprintf("%d/%d built, %d cached, %d failed", built+cached, len(m.items), cached, failed)
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

// applyEvent updates the shader's row. Build-wide events carry no shader
// and only move the bar.
func (m *progressModel) applyEvent(ev buildpipeline.Event) tea.Cmd {
	idx, ok := m.index[ev.Shader]
	if !ok {
		return nil
	}
	it := &m.items[idx]
	it.status, it.stage = ev.Status, ev.Stage
	if ev.Status.Terminal() {
		it.elapsed = ev.Elapsed
		if ev.Err != nil {
			it.detail = ev.Err.Error()
		}
	}
	return m.bar.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	var total float64
	for _, it := range m.items {
		if it.status.Terminal() {
			total++
			continue
		}
		if it.status == buildpipeline.StatusWorking {
			total += stageShare[it.stage]
		}
	}
	return total / float64(len(m.items))
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
