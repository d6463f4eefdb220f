package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// SaveView prompts for a canvas name when the live graph has none yet
type SaveView struct {
	textInput textinput.Model
	status    string
}

// NewSaveView creates a new save view
func NewSaveView() SaveView {
	ti := textinput.New()
	ti.Placeholder = "canvas name"
	ti.Focus()
	ti.Width = 40

	return SaveView{textInput: ti}
}

// Init initializes the save view
func (m SaveView) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the save view
func (m SaveView) Update(msg tea.Msg) (SaveView, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, func() tea.Msg { return cancelledMsg{} }
		case "enter":
			name := strings.TrimSpace(m.textInput.Value())
			if name == "" {
				m.status = "Please enter a name"
				return m, nil
			}
			return m, func() tea.Msg { return saveAsMsg{Name: name} }
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// View renders the save view
func (m SaveView) View() string {
	s := fmt.Sprintf(
		"%s\n\n%s\n\n%s",
		promptStyle.Render("Save the current graph as:"),
		m.textInput.View(),
		helpStyle.Render("(enter to save, esc to cancel)"),
	)
	if m.status != "" {
		s += "\n\n" + statusMessageStyle(m.status)
	}
	return docStyle.Render(s)
}
