package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/brizzai/labportal/internal/canvas"
	"github.com/brizzai/labportal/internal/logger"
	"github.com/brizzai/labportal/internal/tui/models"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type page int

const (
	pageList page = iota
	pageConfirm
	pageSave
)

type (
	loadRequestMsg   struct{ Name string }
	deleteRequestMsg struct{ Name string }
	saveRequestMsg   struct{}
	quitRequestMsg   struct{}
	saveAsMsg        struct{ Name string }

	confirmedMsg struct{ Action tea.Msg }
	cancelledMsg struct{}

	doLoadMsg   struct{ Name string }
	doDeleteMsg struct{ Name string }
	doSaveMsg   struct{ Name string }
	doQuitMsg   struct{}

	itemsMsg struct {
		items []models.CanvasItem
		err   error
	}
	loadedMsg struct {
		name  string
		graph canvas.Graph
		err   error
	}
	savedMsg struct {
		name string
		err  error
	}
	deletedMsg struct {
		name string
		err  error
	}
)

// Workspace is the live graph the browser works on, backed by a file.
type Workspace struct {
	Path  string
	Graph canvas.Graph
}

// Dirty reports whether the live graph differs from the current canvas.
// A storage error counts as dirty so the user is asked before losing work.
func (w *Workspace) Dirty(ctx context.Context, canvases *canvas.Manager) bool {
	dirty, err := canvases.HasUnsavedChanges(ctx, w.Graph)
	if err != nil {
		logger.Warn("Unsaved change check failed", zap.Error(err))
		return true
	}
	return dirty
}

// AppModel is the main application model that manages page switching
type AppModel struct {
	ctx      context.Context
	canvases *canvas.Manager
	guard    *canvas.UnloadGuard
	ws       *Workspace

	browser  BrowserModel
	confirm  ConfirmModal
	saveView SaveView
	page     page
	current  string
}

// NewAppModel creates a new AppModel over the given workspace
func NewAppModel(ctx context.Context, canvases *canvas.Manager, guard *canvas.UnloadGuard, ws *Workspace) AppModel {
	return AppModel{
		ctx:      ctx,
		canvases: canvases,
		guard:    guard,
		ws:       ws,
		browser:  NewBrowserModel(),
		page:     pageList,
	}
}

// Init loads the canvas list
func (m AppModel) Init() tea.Cmd {
	return m.refresh()
}

// Update handles app-level messages and delegates to the appropriate page model
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		var cmd tea.Cmd
		m.browser, cmd = m.browser.Update(msg)
		return m, cmd

	case loadRequestMsg:
		if m.ws.Dirty(m.ctx, m.canvases) {
			return m.ask(fmt.Sprintf("Discard unsaved changes and load %q?", msg.Name), doLoadMsg(msg))
		}
		return m, m.load(msg.Name)

	case deleteRequestMsg:
		return m.ask(fmt.Sprintf("Delete %q? This cannot be undone.", msg.Name), doDeleteMsg(msg))

	case saveRequestMsg:
		if m.current == "" {
			m.page = pageSave
			m.saveView = NewSaveView()
			return m, m.saveView.Init()
		}
		return m, m.save(m.current)

	case saveAsMsg:
		m.page = pageList
		exists, err := m.canvases.Exists(m.ctx, msg.Name)
		if err != nil {
			return m.status(fmt.Sprintf("Save failed: %v", err))
		}
		if exists && msg.Name != m.current {
			return m.ask(fmt.Sprintf("Overwrite the saved canvas %q?", msg.Name), doSaveMsg(msg))
		}
		return m, m.save(msg.Name)

	case quitRequestMsg:
		if m.guard.ShouldPrompt() {
			return m.ask("You have unsaved changes. Quit anyway?", doQuitMsg{})
		}
		return m, tea.Quit

	case confirmedMsg:
		m.page = pageList
		action := msg.Action
		return m, func() tea.Msg { return action }

	case cancelledMsg:
		m.page = pageList
		return m, nil

	case doLoadMsg:
		return m, m.load(msg.Name)
	case doDeleteMsg:
		return m, m.remove(msg.Name)
	case doSaveMsg:
		return m, m.save(msg.Name)
	case doQuitMsg:
		return m, tea.Quit

	case itemsMsg:
		if msg.err != nil {
			return m.status(fmt.Sprintf("Failed to list canvases: %v", msg.err))
		}
		m.current = ""
		for _, it := range msg.items {
			if it.Current {
				m.current = it.Name
			}
		}
		var cmd tea.Cmd
		m.browser, cmd = m.browser.SetItems(msg.items)
		return m, cmd

	case loadedMsg:
		if msg.err != nil {
			return m.status(fmt.Sprintf("Load failed: %v", msg.err))
		}
		m.ws.Graph = msg.graph
		next, cmd := m.status(completeMessageStyle("Loaded " + msg.name))
		return next, tea.Batch(cmd, m.refresh())

	case savedMsg:
		if msg.err != nil {
			return m.status(saveFailure(msg.err))
		}
		next, cmd := m.status(completeMessageStyle("Saved " + msg.name))
		return next, tea.Batch(cmd, m.refresh())

	case deletedMsg:
		if msg.err != nil {
			return m.status(fmt.Sprintf("Delete failed: %v", msg.err))
		}
		next, cmd := m.status(completeMessageStyle("Deleted " + msg.name))
		return next, tea.Batch(cmd, m.refresh())
	}

	// Delegate message to the active page
	var cmd tea.Cmd
	switch m.page {
	case pageConfirm:
		m.confirm, cmd = m.confirm.Update(msg)
	case pageSave:
		m.saveView, cmd = m.saveView.Update(msg)
	default:
		m.browser, cmd = m.browser.Update(msg)
	}
	return m, cmd
}

// View renders the active page
func (m AppModel) View() string {
	switch m.page {
	case pageConfirm:
		return m.confirm.View()
	case pageSave:
		return m.saveView.View()
	default:
		return m.browser.View()
	}
}

// Current returns the name of the current canvas, empty when none is selected.
func (m AppModel) Current() string {
	return m.current
}

func (m AppModel) ask(question string, onYes tea.Msg) (tea.Model, tea.Cmd) {
	m.page = pageConfirm
	m.confirm = NewConfirmModal(question, onYes)
	return m, nil
}

func (m AppModel) status(text string) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.browser, cmd = m.browser.Status(text)
	return m, cmd
}

func saveFailure(err error) string {
	switch {
	case errors.Is(err, canvas.ErrStorageFull):
		return "Save failed: local storage is full. Delete a canvas and retry."
	case errors.Is(err, canvas.ErrStorageUnavailable):
		return "Save failed: local storage is unavailable."
	default:
		return fmt.Sprintf("Save failed: %v", err)
	}
}

func (m AppModel) refresh() tea.Cmd {
	ctx, canvases, live := m.ctx, m.canvases, m.ws.Graph
	return func() tea.Msg {
		names, err := canvases.List(ctx)
		if err != nil {
			return itemsMsg{err: err}
		}
		current, _, err := canvases.Current(ctx)
		if err != nil {
			return itemsMsg{err: err}
		}
		dirty, err := canvases.HasUnsavedChanges(ctx, live)
		if err != nil {
			return itemsMsg{err: err}
		}

		items := make([]models.CanvasItem, 0, len(names))
		for _, name := range names {
			doc, found, err := canvases.Get(ctx, name)
			if err != nil {
				return itemsMsg{err: err}
			}
			if !found {
				continue
			}
			items = append(items, models.CanvasItem{
				Name:    name,
				Nodes:   len(doc.Nodes),
				Edges:   len(doc.Edges),
				Current: name == current,
				Dirty:   name == current && dirty,
			})
		}
		return itemsMsg{items: items}
	}
}

func (m AppModel) load(name string) tea.Cmd {
	ctx, canvases, path := m.ctx, m.canvases, m.ws.Path
	return func() tea.Msg {
		g, err := canvases.Load(ctx, name)
		if err != nil {
			return loadedMsg{name: name, err: err}
		}
		if path != "" {
			if err := canvas.WriteWorkspace(path, g); err != nil {
				return loadedMsg{name: name, err: err}
			}
		}
		return loadedMsg{name: name, graph: g}
	}
}

func (m AppModel) save(name string) tea.Cmd {
	ctx, canvases, live := m.ctx, m.canvases, m.ws.Graph
	return func() tea.Msg {
		return savedMsg{name: name, err: canvases.Save(ctx, name, live)}
	}
}

func (m AppModel) remove(name string) tea.Cmd {
	ctx, canvases := m.ctx, m.canvases
	return func() tea.Msg {
		return deletedMsg{name: name, err: canvases.Delete(ctx, name)}
	}
}

// Run shows the canvas browser over the workspace file at path. The unload
// guard check is installed for the lifetime of the program.
func Run(ctx context.Context, canvases *canvas.Manager, guard *canvas.UnloadGuard, path string, opts ...tea.ProgramOption) error {
	g, err := canvas.ReadWorkspace(path)
	if err != nil {
		return err
	}
	ws := &Workspace{Path: path, Graph: g}

	remove := guard.Install(func() bool { return ws.Dirty(ctx, canvases) })
	defer remove()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewAppModel(ctx, canvases, guard, ws), opts...)
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("canvas browser failed: %w", err)
	}
	return nil
}
