// Package dashboard renders a Controller's live state as a terminal UI,
// grounded on tagTonic's tui.App: a bubbletea Model driven by Update/View,
// styled with lipgloss. Where tagTonic's App reacts to file-browser and
// tag-editor messages, this Model reacts to cache events relayed over a
// channel — the same "external event source feeds tea.Msg through a
// listener Cmd" shape tagTonic uses for its async fetch operations.
package dashboard

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	cache "github.com/krisalay/imagecache"
	"github.com/krisalay/imagecache/types"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// usageMsg carries a Controller.OnUpdate tick into the bubbletea loop.
type usageMsg cache.UpdateEvent

// imageMsg carries image-added/image-removed into the bubbletea loop.
type imageMsg struct {
	url     types.ImageID
	removed bool
}

// overflowMsg carries a ram/video overflow tick into the bubbletea loop.
type overflowMsg struct{ video bool }

// Model is the bubbletea model for the live dashboard.
type Model struct {
	ctrl *cache.Controller

	ramBudget, videoBudget int64
	usage                  cache.UpdateEvent
	images                 int
	ramOverflows           int
	videoOverflows         int
	log                    []string

	ch    chan tea.Msg
	width int
}

// New wires a Model to ctrl's event emitters. Run calls New itself and
// starts the terminal UI on that Model. Events wait in a 256-entry buffer
// until the UI reads them; an event arriving while the buffer is full is
// dropped.
func New(ctrl *cache.Controller, ramBudget, videoBudget int64) *Model {
	m := &Model{
		ctrl:        ctrl,
		ramBudget:   ramBudget,
		videoBudget: videoBudget,
		ch:          make(chan tea.Msg, 256),
	}

	ctrl.OnUpdate.On(func(e cache.UpdateEvent) {
		m.send(usageMsg(e))
	})
	ctrl.OnImageAdded.On(func(e cache.ImageAddedEvent) {
		m.send(imageMsg{url: e.URL})
	})
	ctrl.OnImageRemoved.On(func(e cache.ImageRemovedEvent) {
		m.send(imageMsg{url: e.URL, removed: true})
	})
	ctrl.OnRamOverflow.On(func(struct{}) {
		m.send(overflowMsg{video: false})
	})
	ctrl.OnVideoOverflow.On(func(struct{}) {
		m.send(overflowMsg{video: true})
	})

	return m
}

func (m *Model) send(msg tea.Msg) {
	select {
	case m.ch <- msg:
	default:
	}
}

func (m *Model) Init() tea.Cmd {
	return m.listen()
}

// listen reads one event off the channel and re-arms itself, the standard
// bubbletea pattern for bridging an external event source into Update.
func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		return <-m.ch
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, m.listen()

	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, m.listen()

	case usageMsg:
		m.usage = cache.UpdateEvent(msg)
		return m, m.listen()

	case imageMsg:
		if msg.removed {
			m.images--
			m.logEvent(fmt.Sprintf("- %s", msg.url))
		} else {
			m.images++
			m.logEvent(fmt.Sprintf("+ %s", msg.url))
		}
		return m, m.listen()

	case overflowMsg:
		if msg.video {
			m.videoOverflows++
			m.logEvent("video-memory overflow")
		} else {
			m.ramOverflows++
			m.logEvent("ram overflow")
		}
		return m, m.listen()
	}
	return m, m.listen()
}

func (m *Model) logEvent(s string) {
	m.log = append(m.log, s)
	if len(m.log) > 8 {
		m.log = m.log[len(m.log)-8:]
	}
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("imagecached") + "\n\n")
	b.WriteString(fmt.Sprintf("images tracked: %d\n\n", m.images))
	b.WriteString(meterLine("ram  ", m.usage.RamBytesUsed, m.ramBudget) + "\n")
	b.WriteString(meterLine("video", m.usage.VideoBytesUsed, m.videoBudget) + "\n\n")
	if m.ramOverflows+m.videoOverflows > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("overflows: ram=%d video=%d", m.ramOverflows, m.videoOverflows)) + "\n\n")
	}
	b.WriteString(dimStyle.Render("recent:") + "\n")
	for _, e := range m.log {
		b.WriteString(dimStyle.Render(e) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("press q to quit"))
	return b.String()
}

func meterLine(label string, used, budget int64) string {
	const width = 30
	filled := 0
	if budget > 0 {
		filled = int(float64(width) * float64(used) / float64(budget))
		if filled > width {
			filled = width
		}
	}
	bar := barStyle.Render(strings.Repeat("#", filled)) + strings.Repeat(".", width-filled)
	return fmt.Sprintf("%s [%s] %s / %s", label, bar, humanBytes(used), humanBytes(budget))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for x := n / unit; x >= unit; x /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Run starts the terminal UI program and blocks until the user quits.
func Run(ctrl *cache.Controller, ramBudget, videoBudget int64) error {
	m := New(ctrl, ramBudget, videoBudget)
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}
