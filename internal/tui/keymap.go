package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the dashboard bindings.
type keyMap struct {
	quit         key.Binding
	reload       key.Binding
	toggleHelp   key.Binding
	moveUp       key.Binding
	moveDown     key.Binding
	taskInfo     key.Binding
	back         key.Binding
	addNote      key.Binding
	completeGate key.Binding
	requestClose key.Binding
	toggleScope  key.Binding
	copyTaskID   key.Binding
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		moveDown:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		taskInfo:     key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "task info")),
		back:         key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		addNote:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "add note")),
		completeGate: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "complete active gate")),
		requestClose: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "request close")),
		toggleScope:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "all/visible (admin)")),
		copyTaskID:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy task id")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.taskInfo, k.addNote, k.completeGate, k.requestClose, k.reload, k.toggleHelp, k.quit}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown, k.taskInfo, k.back},
		{k.addNote, k.completeGate, k.requestClose, k.copyTaskID},
		{k.toggleScope, k.reload, k.toggleHelp, k.quit},
	}
}
