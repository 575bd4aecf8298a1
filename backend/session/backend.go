package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNoSession = errors.New("no session id")

// Backend stores opaque session blobs. Load and Save both push the expiry
// out by the inactivity timeout; Load of a missing or expired id returns
// nil, nil.
type Backend interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, data []byte) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryBackend keeps sessions in process memory.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (b *MemoryBackend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

func (b *MemoryBackend) Load(ctx context.Context, id string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return nil, nil
	}
	now := b.now()
	if !now.Before(e.expires) {
		delete(b.entries, id)
		return nil, nil
	}
	e.expires = now.Add(b.ttl)
	b.entries[id] = e
	return append([]byte(nil), e.data...), nil
}

func (b *MemoryBackend) Save(ctx context.Context, id string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.prune(now)
	b.entries[id] = memoryEntry{
		data:    append([]byte(nil), data...),
		expires: now.Add(b.ttl),
	}
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, id)
	return nil
}

// Len returns the number of live sessions.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(b.now())
	return len(b.entries)
}

func (b *MemoryBackend) prune(now time.Time) {
	for id, e := range b.entries {
		if !now.Before(e.expires) {
			delete(b.entries, id)
		}
	}
}
