// Package tui provides the BubbleTea-based terminal user interface.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/mutewatch/internal/notify"
	"github.com/jmylchreest/mutewatch/internal/probe"
	"github.com/jmylchreest/mutewatch/internal/watchdog"
)

const (
	refreshInterval = time.Second
	overrideTimeout = 5 * time.Second
)

// Controller is the part of the watchdog the UI drives.
type Controller interface {
	Status() watchdog.Status
	Override(ctx context.Context, n watchdog.Notice) error
	Stop()
}

// Info is static context shown in the header.
type Info struct {
	Thresholds  probe.Thresholds
	Volume      []string // volume strategy names
	Media       []string // media strategy names
	CatalogSize int
	StopKey     rune
}

// Model is the main TUI model.
type Model struct {
	ctl  Controller
	info Info

	help help.Model
	keys KeyMap

	// State
	status   watchdog.Status
	pending  *watchdog.Notice
	showHelp bool
	quitting bool
	width    int

	// Status message
	statusMsg string
	statusErr bool

	now func() time.Time
}

// NoticeMsg carries a notice from the watchdog.
type NoticeMsg struct {
	Notice watchdog.Notice
}

// ActionMsg carries an action taken on a desktop notification.
type ActionMsg struct {
	Event notify.ActionEvent
}

type tickMsg time.Time

type overrideResultMsg struct {
	err error
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

// New creates a new TUI model.
func New(ctl Controller, info Info) Model {
	return Model{
		ctl:    ctl,
		info:   info,
		help:   help.New(),
		keys:   DefaultKeyMap(info.StopKey),
		status: ctl.Status(),
		now:    time.Now,
	}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.status = m.ctl.Status()
		return m, tick()

	case NoticeMsg:
		m.status = m.ctl.Status()
		n := msg.Notice
		if n.HasAction(watchdog.ActionCancelMute) {
			m.pending = &n
		}
		return m, nil

	case ActionMsg:
		switch msg.Event.Action {
		case watchdog.ActionCancelMute:
			m.pending = nil
			return m, m.override(msg.Event.Notice)
		default:
			if m.pending != nil && m.pending.ID == msg.Event.Notice.ID {
				m.pending = nil
			}
		}
		return m, nil

	case overrideResultMsg:
		m.status = m.ctl.Status()
		if msg.err != nil {
			return m, setStatus("Mute cancelled, but restoring volume failed: "+msg.err.Error(), true)
		}
		return m, setStatus("Mute cancelled", false)

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil
	}

	return m, nil
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.ctl.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Acknowledge):
		m.pending = nil
		return m, nil

	case key.Matches(msg, m.keys.CancelMute):
		if m.pending == nil {
			return m, nil
		}
		n := *m.pending
		m.pending = nil
		return m, m.override(n)
	}

	return m, nil
}

// override calls the watchdog off the update goroutine.
func (m Model) override(n watchdog.Notice) tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), overrideTimeout)
		defer cancel()
		return overrideResultMsg{err: ctl.Override(ctx, n)}
	}
}

func setStatus(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// Pending returns the notice awaiting a response, if any.
func (m Model) Pending() *watchdog.Notice {
	return m.pending
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(12)

	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("11")).
			Padding(0, 1)
)

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("mutewatch") + "\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}

	state := activeStyle.Render(m.status.State.String())
	if m.status.State == watchdog.StateStopped {
		state = dimStyle.Render(m.status.State.String())
	}
	row("state", state)

	if m.status.Suppressed {
		row("suppressed", warnStyle.Render(fmt.Sprintf("until %s (%s)",
			m.status.SuppressedUntil.Format("15:04:05"),
			humanize.RelTime(m.now(), m.status.SuppressedUntil, "left", "ago"))))
	} else {
		row("suppressed", "no")
	}

	row("mutes", humanize.Comma(m.status.MuteCount))

	th := m.info.Thresholds
	row("thresholds", fmt.Sprintf("endpoint>%.2f session>%.2f command>%.1f%% mixer>%.2f",
		th.Endpoint, th.Session, th.Command, th.Mixer))
	if len(m.info.Volume) > 0 {
		row("volume", strings.Join(m.info.Volume, " > "))
	}
	if len(m.info.Media) > 0 {
		row("media", strings.Join(m.info.Media, " > ")+dimStyle.Render(fmt.Sprintf(" (%d known apps)", m.info.CatalogSize)))
	}

	if last := m.status.LastNotice; last != nil {
		row("last", fmt.Sprintf("%s %s", last.Summary(), dimStyle.Render(humanize.Time(last.At))))
	} else {
		row("last", dimStyle.Render("nothing yet"))
	}

	if m.pending != nil {
		b.WriteString("\n")
		prompt := m.pending.Summary() + "\n" + m.pending.Body() + "\n\n" +
			activeStyle.Render("enter") + " ok   " + warnStyle.Render("c") + " cancel mute"
		b.WriteString(promptStyle.Render(prompt) + "\n")
	}

	if m.statusMsg != "" {
		style := activeStyle
		if m.statusErr {
			style = errStyle
		}
		b.WriteString("\n" + style.Render(m.statusMsg) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}
