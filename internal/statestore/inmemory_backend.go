package statestore

import (
	"context"
	"sync"
)

// InMemoryBackend is a Backend for tests; cmd/scheduler does not use
// it. Its state lives only in this process.
type InMemoryBackend struct {
	mu    sync.Mutex
	items map[string]Item
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{items: map[string]Item{}}
}

func (b *InMemoryBackend) Scan(_ context.Context, service, account, region string) ([]Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Item
	for _, it := range b.items {
		if it.Service == service && it.Account == account && it.Region == region {
			out = append(out, it)
		}
	}
	return out, nil
}

func (b *InMemoryBackend) BatchWrite(_ context.Context, puts []Item, deletes []Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range puts {
		b.items[it.key()] = it
	}
	for _, it := range deletes {
		delete(b.items, it.key())
	}
	return nil
}
