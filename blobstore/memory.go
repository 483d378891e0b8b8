package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
)

// MemoryStore holds artifacts in memory. It backs tests and callers that
// already have artifact bytes at hand (e.g. fetched over a side channel).
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string][]byte
}

// NewMemoryStore creates a store seeded with a copy of artifacts.
func NewMemoryStore(artifacts ...map[string][]byte) *MemoryStore {
	m := &MemoryStore{artifacts: make(map[string][]byte)}
	for _, set := range artifacts {
		for name, data := range set {
			m.Put(name, data)
		}
	}
	return m
}

// Open returns a snapshot of the named artifact. Later writes do not affect
// an already opened blob.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.artifacts[name]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("memory: %s: %w", name, ErrNotFound)
	}
	return &memoryBlob{data: data}, nil
}

// Put stores a copy of data under name, replacing any previous content.
func (m *MemoryStore) Put(name string, data []byte) {
	if data == nil {
		data = []byte{}
	}
	data = bytes.Clone(data)

	m.mu.Lock()
	m.artifacts[name] = data
	m.mu.Unlock()
}

// Delete removes name so that it reads as absent.
func (m *MemoryStore) Delete(name string) {
	m.mu.Lock()
	delete(m.artifacts, name)
	m.mu.Unlock()
}

// Names returns the stored artifact names in sorted order.
func (m *MemoryStore) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.artifacts))
}

// memoryBlob shares the stored slice; Put always installs a fresh copy so
// the slice is never mutated after publication.
type memoryBlob struct {
	data []byte
}

func (b *memoryBlob) Close() error { return nil }

func (b *memoryBlob) Size() int64 { return int64(len(b.data)) }

func (b *memoryBlob) Bytes() ([]byte, error) { return b.data, nil }

func (b *memoryBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	size := int64(len(b.data))
	if off < 0 || off >= size {
		return nil, io.EOF
	}
	end := min(off+length, size)
	return io.NopCloser(bytes.NewReader(b.data[off:end])), nil
}
