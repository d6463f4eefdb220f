package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// ConfirmModal asks a yes/no question before a destructive action.
type ConfirmModal struct {
	question string
	onYes    tea.Msg
}

// NewConfirmModal creates a modal that emits onYes when confirmed.
func NewConfirmModal(question string, onYes tea.Msg) ConfirmModal {
	return ConfirmModal{question: question, onYes: onYes}
}

// Update handles y/n answers. Anything that is not a yes is a no.
func (m ConfirmModal) Update(msg tea.Msg) (ConfirmModal, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "y", "Y", "enter":
		action := m.onYes
		return m, func() tea.Msg { return confirmedMsg{Action: action} }
	case "n", "N", "esc", "ctrl+c", "q":
		return m, func() tea.Msg { return cancelledMsg{} }
	}
	return m, nil
}

// View renders the modal UI.
func (m ConfirmModal) View() string {
	return docStyle.Render(fmt.Sprintf(
		"%s\n\n%s",
		promptStyle.Render(m.question),
		helpStyle.Render("(y/enter to confirm, n/esc to cancel)"),
	))
}
