package grid

import (
	"github.com/charmbracelet/bubbles/v2/key"
)

type KeyMap struct {
	Up,
	Down,
	PageUp,
	PageDown,
	HalfPageUp,
	HalfPageDown,
	Home,
	End,
	Left,
	Right,
	Sort,
	SortAppend,
	Expand,
	Filter,
	ClearFilter,
	Copy,
	PrevPage,
	NextPage,
	Help,
	Quit key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "b"),
			key.WithHelp("b/pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "f"),
			key.WithHelp("f/pgdn", "page down"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "½ page up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "½ page down"),
		),
		Home: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g/home", "top"),
		),
		End: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G/end", "end"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "prev column"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next column"),
		),
		Sort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort"),
		),
		SortAppend: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "add sort"),
		),
		Expand: key.NewBinding(
			key.WithKeys("space", " ", "enter"),
			key.WithHelp("space", "expand"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		ClearFilter: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear filter"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy row"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "prev page"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next page"),
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

func (k KeyMap) KeyBindings() []key.Binding {
	return []key.Binding{
		k.Down,
		k.Up,
		k.PageDown,
		k.PageUp,
		k.HalfPageDown,
		k.HalfPageUp,
		k.Home,
		k.End,
		k.Left,
		k.Right,
		k.Sort,
		k.SortAppend,
		k.Expand,
		k.Filter,
		k.ClearFilter,
		k.Copy,
		k.PrevPage,
		k.NextPage,
		k.Help,
		k.Quit,
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Sort, k.Filter, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Down, k.Up, k.PageDown, k.PageUp, k.HalfPageDown, k.HalfPageUp},
		{k.Home, k.End, k.Left, k.Right},
		{k.Sort, k.SortAppend, k.Expand, k.Copy},
		{k.Filter, k.ClearFilter, k.PrevPage, k.NextPage},
		{k.Help, k.Quit},
	}
}
