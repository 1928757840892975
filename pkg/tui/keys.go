package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines every binding of the picker.
type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Toggle    key.Binding
	All       key.Binding
	None      key.Binding
	Invert    key.Binding
	Expand    key.Binding
	Collapse  key.Binding
	Pane      key.Binding
	Filter    key.Binding
	Settings  key.Binding
	Confirm   key.Binding
	Back      key.Binding
	Quit      key.Binding
	Interrupt key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle"),
		),
		All: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "all"),
		),
		None: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "none"),
		),
		Invert: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "invert"),
		),
		Expand: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "expand"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "collapse"),
		),
		Pane: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter types"),
		),
		Settings: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "settings"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "quit"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c"),
		),
	}
}

func (k keyMap) shortHelp(st State) []key.Binding {
	switch st {
	case ExtFiltering:
		return []key.Binding{k.Up, k.Down, k.Toggle, k.Confirm, k.Back}
	case Settings:
		return []key.Binding{k.Up, k.Down, k.Toggle, k.Confirm, k.Back}
	case ExtNormal:
		return []key.Binding{k.Toggle, k.All, k.None, k.Invert, k.Filter, k.Pane, k.Settings, k.Confirm, k.Quit}
	default:
		return []key.Binding{k.Toggle, k.Expand, k.Collapse, k.All, k.None, k.Invert, k.Pane, k.Settings, k.Confirm, k.Quit}
	}
}
