package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/brizzai/labportal/internal/logger"
	"github.com/brizzai/labportal/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// KeyPrefix namespaces saved documents in the shared store.
	KeyPrefix = "canvas:"
	// KeyCurrent holds the key of the current document. Its absence means
	// no canvas is selected.
	KeyCurrent = "current_canvas"
)

var (
	ErrInvalidName = errors.New("canvas name must not be empty")
	// ErrStorageFull and ErrStorageUnavailable are the storage errors, so
	// errors.Is works against either package.
	ErrStorageFull        = storage.ErrFull
	ErrStorageUnavailable = storage.ErrUnavailable
)

// State is the relation between the live graph and the current document.
type State int

const (
	NoCurrentDocument State = iota
	CurrentDocumentClean
	CurrentDocumentDirty
)

func (s State) String() string {
	switch s {
	case CurrentDocumentClean:
		return "clean"
	case CurrentDocumentDirty:
		return "dirty"
	default:
		return "no current document"
	}
}

// Key returns the storage key of the document called name.
func Key(name string) string {
	return KeyPrefix + name
}

// Manager saves, loads and deletes named canvases.
type Manager struct {
	store storage.Store
}

// NewManager creates a Manager on top of store
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

// List returns the names of all stored canvases, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	keys, err := m.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, storageError(err)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, KeyPrefix))
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a canvas called name is stored.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	_, found, err := m.store.Get(ctx, Key(name))
	if err != nil {
		return false, storageError(err)
	}
	return found, nil
}

// Current returns the name of the current canvas. ok is false when no
// canvas is selected.
func (m *Manager) Current(ctx context.Context) (name string, ok bool, err error) {
	ptr, found, err := m.store.Get(ctx, KeyCurrent)
	if err != nil {
		return "", false, storageError(err)
	}
	if !found || !strings.HasPrefix(ptr, KeyPrefix) {
		return "", false, nil
	}
	return strings.TrimPrefix(ptr, KeyPrefix), true, nil
}

// Get returns the stored document called name.
func (m *Manager) Get(ctx context.Context, name string) (*Document, bool, error) {
	raw, found, err := m.store.Get(ctx, Key(name))
	if err != nil {
		return nil, false, storageError(err)
	}
	if !found {
		return nil, false, nil
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false, fmt.Errorf("canvas %q is corrupt: %w", name, err)
	}
	return &doc, true, nil
}

// current resolves the pointer to a document. A pointer to a missing
// document counts as no selection.
func (m *Manager) current(ctx context.Context) (*Document, error) {
	name, ok, err := m.Current(ctx)
	if err != nil || !ok {
		return nil, err
	}
	doc, found, err := m.Get(ctx, name)
	if err != nil || !found {
		return nil, err
	}
	return doc, nil
}

// HasUnsavedChanges compares the live graph with the current document.
// Without a current document any non-empty graph counts as unsaved.
func (m *Manager) HasUnsavedChanges(ctx context.Context, live Graph) (bool, error) {
	state, err := m.State(ctx, live)
	if err != nil {
		return false, err
	}
	switch state {
	case CurrentDocumentClean:
		return false, nil
	case CurrentDocumentDirty:
		return true, nil
	default:
		return !live.IsEmpty(), nil
	}
}

// State classifies the live graph against the current document.
func (m *Manager) State(ctx context.Context, live Graph) (State, error) {
	doc, err := m.current(ctx)
	if err != nil {
		return NoCurrentDocument, err
	}
	if doc == nil {
		return NoCurrentDocument, nil
	}
	if Equal(doc.Graph(), live) {
		return CurrentDocumentClean, nil
	}
	return CurrentDocumentDirty, nil
}

// Save writes the graph under name and makes it current, in one write.
// Overwrite confirmation is the caller's job. On failure the pointer is
// left as it was.
func (m *Manager) Save(ctx context.Context, name string, g Graph) error {
	if err := validateName(name); err != nil {
		return err
	}
	raw, err := json.Marshal(Document{FileName: name, Nodes: nonNil(g.Nodes), Edges: nonNil(g.Edges)})
	if err != nil {
		return fmt.Errorf("failed to encode canvas %q: %w", name, err)
	}

	b := storage.NewBatch().
		Set(Key(name), string(raw)).
		Set(KeyCurrent, Key(name))
	if err := m.store.Write(ctx, b); err != nil {
		return fmt.Errorf("failed to save canvas %q: %w", name, storageError(err))
	}

	logger.Debug("Canvas saved", zap.String("name", name), zap.Int("nodes", len(g.Nodes)), zap.Int("edges", len(g.Edges)))
	return nil
}

// Load returns the graph stored under name and makes it current. A missing
// canvas yields an empty graph and clears the pointer. Unsaved-change
// confirmation is the caller's job.
func (m *Manager) Load(ctx context.Context, name string) (Graph, error) {
	if err := validateName(name); err != nil {
		return Graph{}, err
	}
	doc, found, err := m.Get(ctx, name)
	if err != nil {
		return Graph{}, err
	}
	if !found {
		if err := storage.Remove(ctx, m.store, KeyCurrent); err != nil {
			return Graph{}, fmt.Errorf("failed to clear current canvas: %w", storageError(err))
		}
		logger.Debug("Canvas not found, nothing selected", zap.String("name", name))
		return Graph{}, nil
	}

	if err := storage.Set(ctx, m.store, KeyCurrent, Key(name)); err != nil {
		return Graph{}, fmt.Errorf("failed to select canvas %q: %w", name, storageError(err))
	}
	logger.Debug("Canvas loaded", zap.String("name", name))
	return doc.Graph(), nil
}

// Delete removes the canvas called name and clears the pointer if it was
// current. Deleting a missing canvas is a no-op.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	current, ok, err := m.Current(ctx)
	if err != nil {
		return err
	}

	b := storage.NewBatch().Remove(Key(name))
	if ok && current == name {
		b.Remove(KeyCurrent)
	}
	if err := m.store.Write(ctx, b); err != nil {
		return fmt.Errorf("failed to delete canvas %q: %w", name, storageError(err))
	}
	logger.Debug("Canvas deleted", zap.String("name", name), zap.Bool("was_current", ok && current == name))
	return nil
}

// Reconcile clears a pointer that refers to a document which no longer
// exists and returns the resulting current name.
func (m *Manager) Reconcile(ctx context.Context) (name string, ok bool, err error) {
	ptr, found, err := m.store.Get(ctx, KeyCurrent)
	if err != nil {
		return "", false, storageError(err)
	}
	if !found {
		return "", false, nil
	}

	name = strings.TrimPrefix(ptr, KeyPrefix)
	exists := false
	if strings.HasPrefix(ptr, KeyPrefix) && name != "" {
		if _, exists, err = m.store.Get(ctx, ptr); err != nil {
			return "", false, storageError(err)
		}
	}
	if exists {
		return name, true, nil
	}

	logger.Info("Clearing dangling current canvas pointer", zap.String("pointer", ptr))
	if err := storage.Remove(ctx, m.store, KeyCurrent); err != nil {
		return "", false, storageError(err)
	}
	return "", false, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	return nil
}

// storageError makes sure every store failure matches one of the two
// storage sentinels.
func storageError(err error) error {
	if errors.Is(err, storage.ErrFull) || errors.Is(err, storage.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Module provides the canvas manager and the process wide unload guard
var Module = fx.Module("canvas",
	fx.Provide(
		NewManager,
		NewUnloadGuard,
	),
)
