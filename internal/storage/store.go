// Package storage provides the key/value stores that hold the client's
// session keys and saved canvas documents.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable reports that the store could not be opened, read or written.
	ErrUnavailable = errors.New("storage: unavailable")
	// ErrFull reports that a write was rejected because the store ran out of space.
	ErrFull = errors.New("storage: full")
)

// Store is a string key/value store. Writes go through a Batch so that
// multi-key updates are observed as a single step by every later read.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Keys returns every key starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Write applies all operations of b atomically.
	Write(ctx context.Context, b *Batch) error
	// Close releases the underlying resources.
	Close() error
}

// OpKind is the kind of a batch operation.
type OpKind int

const (
	OpSet OpKind = iota
	OpRemove
)

// Op is a single batch operation.
type Op struct {
	Kind  OpKind
	Key   string
	Value string
}

// Batch is an ordered list of sets and removes applied together.
type Batch struct {
	ops []Op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Set queues a write of value under key.
func (b *Batch) Set(key, value string) *Batch {
	b.ops = append(b.ops, Op{Kind: OpSet, Key: key, Value: value})
	return b
}

// Remove queues the removal of keys. Missing keys are ignored when applied.
func (b *Batch) Remove(keys ...string) *Batch {
	for _, k := range keys {
		b.ops = append(b.ops, Op{Kind: OpRemove, Key: k})
	}
	return b
}

// Ops returns the queued operations in order.
func (b *Batch) Ops() []Op {
	return b.ops
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Set writes a single key.
func Set(ctx context.Context, s Store, key, value string) error {
	return s.Write(ctx, NewBatch().Set(key, value))
}

// Remove deletes keys in one atomic write.
func Remove(ctx context.Context, s Store, keys ...string) error {
	return s.Write(ctx, NewBatch().Remove(keys...))
}
