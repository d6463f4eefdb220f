package tui

import (
	"context"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brizzai/labportal/internal/canvas"
	"github.com/brizzai/labportal/internal/storage"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness drives an AppModel the way the bubbletea runtime would, feeding
// back only the messages produced by this package.
type harness struct {
	t        *testing.T
	m        AppModel
	canvases *canvas.Manager
	guard    *canvas.UnloadGuard
	ws       *Workspace
	quit     bool
}

func newHarness(t *testing.T, setup func(ctx context.Context, m *canvas.Manager) canvas.Graph) *harness {
	t.Helper()
	ctx := context.Background()
	canvases := canvas.NewManager(storage.NewMemory())

	live := canvas.Graph{}
	if setup != nil {
		live = setup(ctx, canvases)
	}
	ws := &Workspace{Path: filepath.Join(t.TempDir(), "canvas.json"), Graph: live}
	guard := canvas.NewUnloadGuard()
	t.Cleanup(guard.Install(func() bool { return ws.Dirty(ctx, canvases) }))

	h := &harness{t: t, canvases: canvases, guard: guard, ws: ws}
	h.m = NewAppModel(ctx, canvases, guard, ws)
	h.m.browser.list.StatusMessageLifetime = time.Millisecond
	h.send(tea.WindowSizeMsg{Width: 100, Height: 40})
	h.run(h.m.Init())
	return h
}

func isAppMsg(msg tea.Msg) bool {
	switch msg.(type) {
	case loadRequestMsg, deleteRequestMsg, saveRequestMsg, quitRequestMsg, saveAsMsg,
		confirmedMsg, cancelledMsg,
		doLoadMsg, doDeleteMsg, doSaveMsg, doQuitMsg,
		itemsMsg, loadedMsg, savedMsg, deletedMsg:
		return true
	}
	return false
}

func (h *harness) send(msg tea.Msg) {
	next, cmd := h.m.Update(msg)
	h.m = next.(AppModel)
	h.run(cmd)
}

func (h *harness) run(cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case tea.QuitMsg:
			h.quit = true
		default:
			if !isAppMsg(msg) {
				continue
			}
			next, cmd := h.m.Update(msg)
			h.m = next.(AppModel)
			queue = append(queue, cmd)
		}
	}
}

func (h *harness) press(k string) {
	switch k {
	case "enter":
		h.send(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		h.send(tea.KeyMsg{Type: tea.KeyEsc})
	case "ctrl+c":
		h.send(tea.KeyMsg{Type: tea.KeyCtrlC})
	default:
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	}
}

func (h *harness) selectCanvas(name string) {
	h.t.Helper()
	for i, it := range h.m.browser.Items() {
		if it.Name == name {
			h.m.browser.list.Select(i)
			return
		}
	}
	h.t.Fatalf("canvas %q not listed", name)
}

func (h *harness) names() []string {
	var names []string
	for _, it := range h.m.browser.Items() {
		names = append(names, it.Name)
	}
	return names
}

func graphWith(ids ...string) canvas.Graph {
	g := canvas.Graph{}
	for _, id := range ids {
		g.Nodes = append(g.Nodes, canvas.Node{"id": id})
	}
	return g
}

func twoCanvases(ctx context.Context, m *canvas.Manager) canvas.Graph {
	if err := m.Save(ctx, "alpha", graphWith("a1", "a2")); err != nil {
		panic(err)
	}
	if err := m.Save(ctx, "beta", graphWith("b1")); err != nil {
		panic(err)
	}
	return graphWith("b1")
}

func TestBrowser_Lists(t *testing.T) {
	h := newHarness(t, twoCanvases)

	assert.Equal(t, []string{"alpha", "beta"}, h.names())
	assert.Equal(t, "beta", h.m.Current())

	items := h.m.browser.Items()
	assert.Equal(t, 2, items[0].Nodes)
	assert.True(t, items[1].Current)
	assert.False(t, items[1].Dirty)
}

func TestBrowser_LoadWhenClean(t *testing.T) {
	h := newHarness(t, twoCanvases)

	h.selectCanvas("alpha")
	h.press("enter")

	assert.Equal(t, pageList, h.m.page, "no prompt when nothing is unsaved")
	assert.Equal(t, "alpha", h.m.Current())
	assert.True(t, canvas.Equal(graphWith("a1", "a2"), h.ws.Graph))

	onDisk, err := canvas.ReadWorkspace(h.ws.Path)
	require.NoError(t, err)
	assert.True(t, canvas.Equal(graphWith("a1", "a2"), onDisk))
}

func TestBrowser_LoadWithUnsavedChangesPrompts(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, m *canvas.Manager) canvas.Graph {
		twoCanvases(ctx, m)
		return graphWith("b1", "b2")
	})
	assert.True(t, h.m.browser.Items()[1].Dirty)

	h.selectCanvas("alpha")
	h.press("enter")
	assert.Equal(t, pageConfirm, h.m.page)
	assert.Contains(t, h.m.View(), "Discard unsaved changes")

	h.press("n")
	assert.Equal(t, pageList, h.m.page)
	assert.Equal(t, "beta", h.m.Current())
	assert.True(t, canvas.Equal(graphWith("b1", "b2"), h.ws.Graph), "live graph untouched")

	h.selectCanvas("alpha")
	h.press("enter")
	h.press("y")
	assert.Equal(t, "alpha", h.m.Current())
	assert.True(t, canvas.Equal(graphWith("a1", "a2"), h.ws.Graph))
}

func TestBrowser_DeleteConfirms(t *testing.T) {
	h := newHarness(t, twoCanvases)

	h.selectCanvas("alpha")
	h.press("x")
	assert.Equal(t, pageConfirm, h.m.page)
	h.press("esc")
	assert.Equal(t, []string{"alpha", "beta"}, h.names())

	h.selectCanvas("alpha")
	h.press("x")
	h.press("y")
	assert.Equal(t, []string{"beta"}, h.names())

	exists, err := h.canvases.Exists(context.Background(), "alpha")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBrowser_SaveCurrent(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, m *canvas.Manager) canvas.Graph {
		twoCanvases(ctx, m)
		return graphWith("b1", "b2")
	})

	h.press("s")
	assert.Equal(t, pageList, h.m.page, "saves under the current name without asking")
	assert.False(t, h.ws.Dirty(context.Background(), h.canvases))
	assert.Equal(t, 2, h.m.browser.Items()[1].Nodes)
}

func TestBrowser_SaveAsNewName(t *testing.T) {
	h := newHarness(t, func(context.Context, *canvas.Manager) canvas.Graph {
		return graphWith("n1")
	})
	assert.Empty(t, h.m.Current())

	h.press("s")
	require.Equal(t, pageSave, h.m.page)

	h.press("enter")
	assert.Equal(t, pageSave, h.m.page, "empty name is rejected")
	assert.Contains(t, h.m.View(), "Please enter a name")

	h.m.saveView.textInput.SetValue("DRAFT1")
	h.press("enter")
	assert.Equal(t, pageList, h.m.page)
	assert.Equal(t, "DRAFT1", h.m.Current())
	assert.False(t, h.ws.Dirty(context.Background(), h.canvases))
}

func TestBrowser_SaveAsExistingAsksToOverwrite(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, m *canvas.Manager) canvas.Graph {
		require.NoError(t, m.Save(ctx, "alpha", canvas.Graph{}))
		// loading a missing canvas drops the selection
		_, err := m.Load(ctx, "ghost")
		require.NoError(t, err)
		return graphWith("n1")
	})
	require.Empty(t, h.m.Current())

	h.press("s")
	h.m.saveView.textInput.SetValue("alpha")
	h.press("enter")
	require.Equal(t, pageConfirm, h.m.page)
	assert.Contains(t, h.m.View(), "Overwrite")

	h.press("y")
	assert.Equal(t, "alpha", h.m.Current())
	assert.Equal(t, 1, h.m.browser.Items()[0].Nodes)
}

func TestBrowser_SaveFailureIsReported(t *testing.T) {
	h := newHarness(t, twoCanvases)

	next, _ := h.m.Update(savedMsg{name: "beta", err: canvas.ErrStorageFull})
	h.m = next.(AppModel)
	assert.Contains(t, h.m.View(), "local storage is full")
}

func TestBrowser_QuitGuarded(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, m *canvas.Manager) canvas.Graph {
		twoCanvases(ctx, m)
		return graphWith("b1", "b2")
	})

	h.press("q")
	require.Equal(t, pageConfirm, h.m.page)
	assert.False(t, h.quit)

	h.press("n")
	assert.False(t, h.quit)

	h.press("ctrl+c")
	require.Equal(t, pageConfirm, h.m.page)
	h.press("y")
	assert.True(t, h.quit)
}

func TestBrowser_QuitWhenClean(t *testing.T) {
	h := newHarness(t, twoCanvases)

	h.press("q")
	assert.True(t, h.quit)
}

type quitReader struct {
	guard   *canvas.UnloadGuard
	seen    atomic.Int32
	emitted bool
}

func (r *quitReader) Read(p []byte) (int, error) {
	if r.emitted {
		return 0, io.EOF
	}
	r.seen.Store(int32(r.guard.Installed()))
	r.emitted = true
	return copy(p, "q"), nil
}

func TestRun_InstallsAndRemovesGuard(t *testing.T) {
	canvases := canvas.NewManager(storage.NewMemory())
	guard := canvas.NewUnloadGuard()
	in := &quitReader{guard: guard}

	err := Run(context.Background(), canvases, guard, filepath.Join(t.TempDir(), "canvas.json"),
		tea.WithInput(in), tea.WithOutput(io.Discard), tea.WithoutRenderer())
	require.NoError(t, err)

	assert.Equal(t, int32(1), in.seen.Load(), "guard installed while running")
	assert.Equal(t, 0, guard.Installed(), "guard removed on teardown")
}
