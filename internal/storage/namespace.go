package storage

import (
	"context"
	"strings"
)

type namespaced struct {
	inner  Store
	prefix string
}

// Namespace scopes every key of s under ns. Keys returned by Keys are
// stripped of the namespace again. An empty ns returns s unchanged.
func Namespace(s Store, ns string) Store {
	if ns == "" {
		return s
	}
	return &namespaced{inner: s, prefix: ns + "/"}
}

func (n *namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.inner.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, n.prefix))
	}
	return out, nil
}

func (n *namespaced) Write(ctx context.Context, b *Batch) error {
	scoped := NewBatch()
	for _, op := range b.Ops() {
		switch op.Kind {
		case OpSet:
			scoped.Set(n.prefix+op.Key, op.Value)
		case OpRemove:
			scoped.Remove(n.prefix + op.Key)
		}
	}
	return n.inner.Write(ctx, scoped)
}

func (n *namespaced) Close() error {
	return n.inner.Close()
}
