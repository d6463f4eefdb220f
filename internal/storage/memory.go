package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Memory is an in-process Store. A positive Quota caps the total size in
// bytes of keys plus values, mimicking a browser storage quota.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]string
	quota  int
	closed bool
}

// NewMemory returns an empty in-memory store without quota.
func NewMemory() *Memory {
	return NewMemoryWithQuota(0)
}

// NewMemoryWithQuota returns an empty in-memory store limited to quota bytes.
func NewMemoryWithQuota(quota int) *Memory {
	return &Memory{data: make(map[string]string), quota: quota}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrUnavailable
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Memory) Write(_ context.Context, b *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}

	// Stage on a copy so a rejected batch leaves nothing behind.
	next := make(map[string]string, len(m.data)+b.Len())
	for k, v := range m.data {
		next[k] = v
	}
	for _, op := range b.Ops() {
		switch op.Kind {
		case OpSet:
			next[op.Key] = op.Value
		case OpRemove:
			delete(next, op.Key)
		}
	}

	if m.quota > 0 {
		if size := sizeOf(next); size > m.quota {
			return fmt.Errorf("%w: %d bytes exceeds quota of %d", ErrFull, size, m.quota)
		}
	}

	m.data = next
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Snapshot returns a copy of the stored data.
func (m *Memory) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

func sizeOf(data map[string]string) int {
	n := 0
	for k, v := range data {
		n += len(k) + len(v)
	}
	return n
}
