// Package session keeps the server-side session records that track who a
// client is and whether it finished signing in. Records are stored under a
// key inside a per-session blob; the blob is addressed by the id carried in
// the client's cookie.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// UserKey is the slot holding the signed-in user of a session.
const UserKey = "user"

// Record is the per-session authentication state.
type Record struct {
	Email    string `json:"email"`
	SignedIn bool   `json:"signed_in"`
}

// Sessions is the capability the auth service needs from the session layer.
type Sessions interface {
	// Load returns nil, nil when the slot is empty or the session expired.
	Load(ctx context.Context, id, key string) (*Record, error)
	Store(ctx context.Context, id, key string, rec Record) error
	Clear(ctx context.Context, id, key string) error
}

// Manager implements Sessions over a Backend.
type Manager struct {
	mu      sync.Mutex
	backend Backend
}

func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend}
}

type blob map[string]json.RawMessage

func (m *Manager) read(ctx context.Context, id string) (blob, error) {
	data, err := m.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	b := blob{}
	if len(data) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return b, nil
}

func (m *Manager) Load(ctx context.Context, id, key string) (*Record, error) {
	if id == "" {
		return nil, nil
	}
	b, err := m.read(ctx, id)
	if err != nil {
		return nil, err
	}
	raw, ok := b[key]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding session %s key %s: %w", id, key, err)
	}
	return &rec, nil
}

func (m *Manager) Store(ctx context.Context, id, key string, rec Record) error {
	if id == "" {
		return ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.read(ctx, id)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b[key] = raw
	return m.write(ctx, id, b)
}

func (m *Manager) Clear(ctx context.Context, id, key string) error {
	if id == "" {
		return ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.read(ctx, id)
	if err != nil {
		return err
	}
	if _, ok := b[key]; !ok {
		return nil
	}
	delete(b, key)
	if len(b) == 0 {
		return m.backend.Delete(ctx, id)
	}
	return m.write(ctx, id, b)
}

func (m *Manager) write(ctx context.Context, id string, b blob) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return m.backend.Save(ctx, id, data)
}

type ctxKey struct{}

// WithID returns a context carrying the session id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the session id bound by the session middleware.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
