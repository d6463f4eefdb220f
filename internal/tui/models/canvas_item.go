package models

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// CanvasItem wraps a saved canvas for display in the list
// Implements list.Item
type CanvasItem struct {
	Name    string
	Nodes   int
	Edges   int
	Current bool
	Dirty   bool
}

func (i CanvasItem) Title() string {
	if i.Current {
		return i.Name + " (current)"
	}
	return i.Name
}

func (i CanvasItem) Description() string {
	desc := fmt.Sprintf("%d nodes, %d edges", i.Nodes, i.Edges)
	if i.Current && i.Dirty {
		return desc + " " + lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Render("[unsaved changes]")
	}
	return desc
}

func (i CanvasItem) FilterValue() string {
	return i.Name
}
