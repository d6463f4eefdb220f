package tui

import (
	"github.com/brizzai/labportal/internal/tui/models"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// newItemDelegate returns a list.DefaultDelegate with custom update and help functions.
func newItemDelegate(keys *delegateKeyMap) list.DefaultDelegate {
	d := list.NewDefaultDelegate()

	d.UpdateFunc = func(msg tea.Msg, m *list.Model) tea.Cmd {
		item, ok := m.SelectedItem().(models.CanvasItem)
		if !ok || m.FilterState() == list.Filtering {
			return nil
		}

		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch {
			case key.Matches(msg, keys.load):
				return func() tea.Msg { return loadRequestMsg{Name: item.Name} }
			case key.Matches(msg, keys.remove):
				return func() tea.Msg { return deleteRequestMsg{Name: item.Name} }
			}
		}
		return nil
	}

	help := []key.Binding{keys.load, keys.remove}

	d.ShortHelpFunc = func() []key.Binding {
		return help
	}

	d.FullHelpFunc = func() [][]key.Binding {
		return [][]key.Binding{help}
	}

	return d
}

// delegateKeyMap holds key bindings for list item actions.
type delegateKeyMap struct {
	load   key.Binding
	remove key.Binding
}

// ShortHelp returns additional short help entries for the delegate.
func (d delegateKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		d.load,
		d.remove,
	}
}

// FullHelp returns additional full help entries for the delegate.
func (d delegateKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{
			d.load,
			d.remove,
		},
	}
}

// newDelegateKeyMap creates a new delegateKeyMap with default bindings.
func newDelegateKeyMap() *delegateKeyMap {
	return &delegateKeyMap{
		load: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Load canvas"),
		),
		remove: key.NewBinding(
			key.WithKeys("x", "delete"),
			key.WithHelp("x", "Delete canvas"),
		),
	}
}
