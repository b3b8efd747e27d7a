package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Update  key.Binding
	Dismiss key.Binding
	Sweep   key.Binding
	Offline key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Update: key.NewBinding(
			key.WithKeys("u", "enter"),
			key.WithHelp("u", "update now"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("l", "esc"),
			key.WithHelp("l", "later"),
		),
		Sweep: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "sweep caches"),
		),
		Offline: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "toggle offline"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Update, k.Dismiss, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Update, k.Dismiss},
		{k.Sweep, k.Offline},
		{k.Help, k.Quit},
	}
}
