package session

import (
	"context"
	"time"

	"github.com/MrEthical07/goToken/store"
)

// Observer is notified about session lifecycle transitions. Implementations
// must not block.
type Observer interface {
	OnSessionCreate(ctx context.Context, id string)
	OnSessionDestroy(ctx context.Context, id string)
}

// Manager loads, creates and deletes sessions in a store.Store.
type Manager struct {
	store    store.Store
	observer Observer
	now      func() time.Time
}

// NewManager creates a Manager. observer may be nil.
func NewManager(s store.Store, observer Observer) *Manager {
	return &Manager{
		store:    s,
		observer: observer,
		now:      time.Now,
	}
}

// Get loads the session stored under id. When it is absent and create is
// true a new empty session is persisted with timeout seconds and returned;
// otherwise (nil, nil) is returned.
func (m *Manager) Get(ctx context.Context, id string, create bool, timeout int64) (*Session, error) {
	s := &Session{mgr: m}
	ok, err := m.store.GetObject(ctx, id, &s.rec)
	if err != nil {
		return nil, err
	}
	if ok {
		s.rec.ID = id
		if s.rec.Attributes == nil {
			s.rec.Attributes = make(map[string]any)
		}
		return s, nil
	}
	if !create {
		return nil, nil
	}

	s.rec = record{
		ID:         id,
		CreateTime: m.now().UnixMilli(),
		Attributes: make(map[string]any),
	}
	if err := m.store.SetObject(ctx, id, &s.rec, timeout); err != nil {
		return nil, err
	}
	if m.observer != nil {
		m.observer.OnSessionCreate(ctx, id)
	}
	return s, nil
}

// Delete removes the session stored under id and notifies the observer.
// Deleting an absent session is a silent no-op.
func (m *Manager) Delete(ctx context.Context, id string) error {
	ttl, err := m.store.ObjectTimeout(ctx, id)
	if err != nil {
		return err
	}
	if ttl == store.NotValueExpire {
		return nil
	}
	if err := m.store.DeleteObject(ctx, id); err != nil {
		return err
	}
	if m.observer != nil {
		m.observer.OnSessionDestroy(ctx, id)
	}
	return nil
}
