package tui

import (
	"github.com/brizzai/labportal/internal/tui/models"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// listKeyMap holds key bindings for the list actions.
type listKeyMap struct {
	save key.Binding
	quit key.Binding
}

// newListKeyMap creates a new listKeyMap with default bindings.
func newListKeyMap() *listKeyMap {
	return &listKeyMap{
		save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Save"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "Quit"),
		),
	}
}

// BrowserModel lists the saved canvases
type BrowserModel struct {
	list list.Model
	keys *listKeyMap
}

// NewBrowserModel creates the canvas list page
func NewBrowserModel() BrowserModel {
	listKeys := newListKeyMap()
	delegate := newItemDelegate(newDelegateKeyMap())

	l := list.New(nil, delegate, 0, 0)
	l.Title = titleStyle.Render("Saved canvases")
	l.SetShowFilter(true)
	l.SetStatusBarItemName("canvas", "canvases")
	// q and ctrl+c go through the unload guard instead.
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)

	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{
			listKeys.save,
			listKeys.quit,
		}
	}
	return BrowserModel{list: l, keys: listKeys}
}

// Init returns the initial command for the list model.
func (m BrowserModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the list
func (m BrowserModel) Update(msg tea.Msg) (BrowserModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, func() tea.Msg { return quitRequestMsg{} }
		case key.Matches(msg, m.keys.save):
			return m, func() tea.Msg { return saveRequestMsg{} }
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// SetItems replaces the listed canvases, keeping the selection on the
// same name when it still exists.
func (m BrowserModel) SetItems(items []models.CanvasItem) (BrowserModel, tea.Cmd) {
	selected := ""
	if item, ok := m.list.SelectedItem().(models.CanvasItem); ok {
		selected = item.Name
	}

	listItems := make([]list.Item, len(items))
	for i, it := range items {
		listItems[i] = it
	}
	cmd := m.list.SetItems(listItems)

	for i, it := range items {
		if it.Name == selected {
			m.list.Select(i)
			break
		}
	}
	return m, cmd
}

// Items returns the listed canvases
func (m BrowserModel) Items() []models.CanvasItem {
	all := m.list.Items()
	result := make([]models.CanvasItem, len(all))
	for i, item := range all {
		result[i] = item.(models.CanvasItem)
	}
	return result
}

// Status shows a transient message under the title.
func (m BrowserModel) Status(text string) (BrowserModel, tea.Cmd) {
	cmd := m.list.NewStatusMessage(text)
	return m, cmd
}

// View renders the list
func (m BrowserModel) View() string {
	return docStyle.Render(m.list.View())
}
