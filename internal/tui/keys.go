package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings for the TUI.
type KeyMap struct {
	Acknowledge key.Binding
	CancelMute  key.Binding

	// Global
	Quit key.Binding
	Help key.Binding
}

// ShortHelp returns a short help message.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Acknowledge, k.CancelMute, k.Help, k.Quit}
}

// FullHelp returns a full help message.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Acknowledge, k.CancelMute},
		{k.Help, k.Quit},
	}
}

// DefaultKeyMap returns the default key bindings. The quit binding also
// accepts the configured stop key in either case, unless it collides with
// a prompt key.
func DefaultKeyMap(stop rune) KeyMap {
	quitKeys := []string{"q", "Q", "ctrl+c"}
	if stop != 0 && stop != 'q' && stop != 'a' && stop != 'c' {
		quitKeys = append(quitKeys, string(stop), string(upper(stop)))
	}

	return KeyMap{
		Acknowledge: key.NewBinding(
			key.WithKeys("enter", "a"),
			key.WithHelp("enter/a", "acknowledge"),
		),
		CancelMute: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel mute"),
		),
		Quit: key.NewBinding(
			key.WithKeys(quitKeys...),
			key.WithHelp("q", "stop"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

func upper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 'a' + 'A'
	}
	return r
}
