package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start    key.Binding
	Toggle   key.Binding
	Stop     key.Binding
	Complete key.Binding
	Type     key.Binding
	Longer   key.Binding
	Shorter  key.Binding
	Accept   key.Binding
	Dismiss  key.Binding
	Snooze   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Start:    key.NewBinding(key.WithKeys("s", "enter"), key.WithHelp("s", "start")),
		Toggle:   key.NewBinding(key.WithKeys(" ", "space", "p"), key.WithHelp("space", "pause/resume")),
		Stop:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Complete: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "complete")),
		Type:     key.NewBinding(key.WithKeys("t", "tab"), key.WithHelp("t", "session type")),
		Longer:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "longer")),
		Shorter:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "shorter")),
		Accept:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "take break")),
		Dismiss:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dismiss")),
		Snooze:   key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "snooze")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Toggle, k.Complete, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Toggle, k.Stop, k.Complete},
		{k.Type, k.Longer, k.Shorter},
		{k.Accept, k.Dismiss, k.Snooze},
		{k.Help, k.Quit},
	}
}

type formKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Snooze key.Binding
	Skip   key.Binding
}

func defaultFormKeys() formKeyMap {
	return formKeyMap{
		Next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "prev")),
		Submit: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "submit")),
		Snooze: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "later")),
		Skip:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "skip")),
	}
}

// ShortHelp implements help.KeyMap.
func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Submit, k.Snooze, k.Skip}
}

// FullHelp implements help.KeyMap.
func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
