package canvas

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/brizzai/labportal/internal/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() Graph {
	return Graph{
		Nodes: []Node{
			{"id": "n1", "type": "sample", "position": map[string]interface{}{"x": 10, "y": 20}},
			{"id": "n2", "type": "pcr", "data": map[string]interface{}{"cycles": 30}},
		},
		Edges: []Edge{
			{"id": "e1", "source": "n1", "target": "n2"},
		},
	}
}

func TestHasUnsavedChanges_Scenario(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	m := NewManager(store)

	live := Graph{}
	dirty, err := m.HasUnsavedChanges(ctx, live)
	require.NoError(t, err)
	assert.False(t, dirty, "no canvas selected and empty graph")

	live.Nodes = append(live.Nodes, Node{"id": "n1"})
	dirty, err = m.HasUnsavedChanges(ctx, live)
	require.NoError(t, err)
	assert.True(t, dirty, "no canvas selected and a node was added")

	require.NoError(t, m.Save(ctx, "DRAFT1", live))

	ptr, found, err := store.Get(ctx, KeyCurrent)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "canvas:DRAFT1", ptr)

	dirty, err = m.HasUnsavedChanges(ctx, live)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestHasUnsavedChanges_AfterMutation(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storage.NewMemory())

	g := sampleGraph()
	require.NoError(t, m.Save(ctx, "assay", g))

	state, err := m.State(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, CurrentDocumentClean, state)

	mutated := sampleGraph()
	mutated.Nodes[1]["data"] = map[string]interface{}{"cycles": 35}

	dirty, err := m.HasUnsavedChanges(ctx, mutated)
	require.NoError(t, err)
	assert.True(t, dirty)

	state, err = m.State(ctx, mutated)
	require.NoError(t, err)
	assert.Equal(t, CurrentDocumentDirty, state)

	// selected document, empty live graph, stored graph not empty
	dirty, err = m.HasUnsavedChanges(ctx, Graph{})
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestHasUnsavedChanges_CleanAfterSave(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		live Graph
	}{
		{name: "nodes without edges", live: Graph{Nodes: []Node{{"id": "n1"}}}},
		{name: "edges without nodes", live: Graph{Edges: []Edge{{"id": "e1"}}}},
		{name: "empty graph", live: Graph{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(storage.NewMemory())
			require.NoError(t, m.Save(ctx, "DRAFT1", tt.live))

			dirty, err := m.HasUnsavedChanges(ctx, tt.live)
			require.NoError(t, err)
			assert.False(t, dirty)

			state, err := m.State(ctx, tt.live)
			require.NoError(t, err)
			assert.Equal(t, CurrentDocumentClean, state)
		})
	}
}

func TestHasUnsavedChanges_WorkspaceWithoutEdges(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storage.NewMemory())

	path := filepath.Join(t.TempDir(), "canvas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  - id: n1\n"), 0o600))

	live, err := ReadWorkspace(path)
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx, "DRAFT1", live))

	dirty, err := m.HasUnsavedChanges(ctx, live)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storage.NewMemory())

	g := sampleGraph()
	require.NoError(t, m.Save(ctx, "assay", g))
	require.NoError(t, m.Save(ctx, "other", Graph{Nodes: []Node{{"id": "x"}}}))

	loaded, err := m.Load(ctx, "assay")
	require.NoError(t, err)
	assert.True(t, Equal(g, loaded), cmp.Diff(g, loaded))

	name, ok, err := m.Current(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "assay", name)

	dirty, err := m.HasUnsavedChanges(ctx, loaded)
	require.NoError(t, err)
	assert.False(t, dirty, "clean right after load")
}

func TestSavePersistsDocumentShape(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	m := NewManager(store)

	require.NoError(t, m.Save(ctx, "empty", Graph{}))
	raw, found, err := store.Get(ctx, "canvas:empty")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"fileName":"empty","nodes":[],"edges":[]}`, raw)
}

func TestSaveFailureKeepsPointer(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryWithQuota(200)
	m := NewManager(store)

	require.NoError(t, m.Save(ctx, "small", Graph{Nodes: []Node{{"id": "a"}}}))

	big := Graph{}
	for i := 0; i < 50; i++ {
		big.Nodes = append(big.Nodes, Node{"id": i, "label": "a fairly long node label"})
	}
	err := m.Save(ctx, "big", big)
	require.ErrorIs(t, err, ErrStorageFull)
	assert.ErrorIs(t, err, storage.ErrFull)

	name, ok, err := m.Current(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "small", name)

	exists, err := m.Exists(ctx, "big")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSaveUnavailable(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.Close())

	err := NewManager(store).Save(context.Background(), "x", sampleGraph())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestLoadMissingClearsPointer(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storage.NewMemory())
	require.NoError(t, m.Save(ctx, "assay", sampleGraph()))

	g, err := m.Load(ctx, "ghost")
	require.NoError(t, err)
	assert.True(t, g.IsEmpty())

	_, ok, err := m.Current(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	state, err := m.State(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, NoCurrentDocument, state)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storage.NewMemory())
	require.NoError(t, m.Save(ctx, "a", sampleGraph()))
	require.NoError(t, m.Save(ctx, "b", sampleGraph()))

	// b is current; deleting a leaves the pointer alone
	require.NoError(t, m.Delete(ctx, "a"))
	name, ok, err := m.Current(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", name)

	require.NoError(t, m.Delete(ctx, "b"))
	_, ok, err = m.Current(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// missing and already deleted names are no-ops
	assert.NoError(t, m.Delete(ctx, "b"))
	assert.NoError(t, m.Delete(ctx, "never"))

	names, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	m := NewManager(store)

	for _, n := range []string{"zeta", "alpha", "DRAFT1"} {
		require.NoError(t, m.Save(ctx, n, Graph{}))
	}
	require.NoError(t, storage.Set(ctx, store, "session_token", "x"))

	names, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"DRAFT1", "alpha", "zeta"}, names)
}

func TestInvalidName(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storage.NewMemory())

	assert.ErrorIs(t, m.Save(ctx, "", sampleGraph()), ErrInvalidName)
	_, err := m.Load(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.ErrorIs(t, m.Delete(ctx, ""), ErrInvalidName)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	m := NewManager(store)

	_, ok, err := m.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Save(ctx, "kept", Graph{}))
	name, ok, err := m.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "kept", name)

	// another process removed the document behind our back
	require.NoError(t, storage.Remove(ctx, store, "canvas:kept"))
	_, ok, err = m.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, found, err := store.Get(ctx, KeyCurrent)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEqual(t *testing.T) {
	a := Graph{Nodes: []Node{{"id": "n1", "w": 1}}}
	b := Graph{Nodes: []Node{{"id": "n1", "w": 1.0}}, Edges: []Edge{}}
	assert.True(t, Equal(a, b), "int and float from different decoders compare equal")

	c := Graph{Nodes: []Node{{"id": "n1", "w": 2}}}
	assert.False(t, Equal(a, c))

	reordered := Graph{Nodes: []Node{{"id": "n2"}, {"id": "n1"}}}
	ordered := Graph{Nodes: []Node{{"id": "n1"}, {"id": "n2"}}}
	assert.False(t, Equal(reordered, ordered), "node order matters")

	assert.True(t, Equal(Graph{}, Graph{Nodes: []Node{}, Edges: []Edge{}}), "nil lists equal empty ones")
}

func TestUnloadGuard(t *testing.T) {
	g := NewUnloadGuard()
	assert.False(t, g.ShouldPrompt())

	dirty := false
	remove := g.Install(func() bool { return dirty })
	assert.Equal(t, 1, g.Installed())
	assert.False(t, g.ShouldPrompt())

	dirty = true
	assert.True(t, g.ShouldPrompt())

	remove()
	remove()
	assert.Equal(t, 0, g.Installed())
	assert.False(t, g.ShouldPrompt(), "no dangling check after removal")
}

func TestWorkspace(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"canvas.json", "canvas.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)

			g, err := ReadWorkspace(path)
			require.NoError(t, err)
			assert.True(t, g.IsEmpty(), "missing file reads as empty graph")

			require.NoError(t, WriteWorkspace(path, sampleGraph()))
			got, err := ReadWorkspace(path)
			require.NoError(t, err)
			assert.True(t, Equal(sampleGraph(), got), cmp.Diff(sampleGraph(), got))
		})
	}
}
