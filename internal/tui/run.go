package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmylchreest/mutewatch/internal/notify"
	"github.com/jmylchreest/mutewatch/internal/watchdog"
)

// RunOptions configures the TUI run.
type RunOptions struct {
	Controller Controller
	Info       Info
	Notices    <-chan watchdog.Notice
	Actions    <-chan notify.ActionEvent
	// ProgramOptions are passed to tea.NewProgram, mostly for tests.
	ProgramOptions []tea.ProgramOption
}

// Run shows the TUI until the user quits or ctx is cancelled. Notices and
// actions reach the model only through Program.Send.
func Run(ctx context.Context, opts RunOptions) error {
	m := New(opts.Controller, opts.Info)
	p := tea.NewProgram(m, opts.ProgramOptions...)

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-pumpCtx.Done():
				return
			case n := <-opts.Notices:
				p.Send(NoticeMsg{Notice: n})
			case ev := <-opts.Actions:
				p.Send(ActionMsg{Event: ev})
			}
		}
	}()

	go func() {
		<-pumpCtx.Done()
		p.Quit()
	}()

	_, err := p.Run()
	return err
}
