package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/goToken/store"
	"github.com/spf13/cast"
)

// TokenSign records one live token of an account and the device it was issued to.
type TokenSign struct {
	Value  string `msgpack:"value"`
	Device string `msgpack:"device"`
}

type record struct {
	ID         string         `msgpack:"id"`
	CreateTime int64          `msgpack:"create_time"`
	Attributes map[string]any `msgpack:"attrs"`
	TokenSigns []TokenSign    `msgpack:"signs"`
}

// Session is a named attribute container persisted under its id. All methods
// are safe for concurrent use; mutations are written through immediately.
type Session struct {
	mu  sync.RWMutex
	rec record
	mgr *Manager
}

// ID returns the store key the session is persisted under.
func (s *Session) ID() string {
	return s.rec.ID
}

// CreateTime returns when the session was first created.
func (s *Session) CreateTime() time.Time {
	return time.UnixMilli(s.rec.CreateTime)
}

func (s *Session) save(ctx context.Context) error {
	return s.mgr.store.UpdateObject(ctx, s.rec.ID, &s.rec)
}

// Get returns the raw attribute value, or nil when absent.
func (s *Session) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Attributes[key]
}

// Has reports whether key is set.
func (s *Session) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rec.Attributes[key]
	return ok
}

// Set stores value under key and persists the session.
func (s *Session) Set(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.Attributes == nil {
		s.rec.Attributes = make(map[string]any)
	}
	s.rec.Attributes[key] = value
	return s.save(ctx)
}

// Remove deletes key. Removing an absent key does not touch the store.
func (s *Session) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rec.Attributes[key]; !ok {
		return nil
	}
	delete(s.rec.Attributes, key)
	return s.save(ctx)
}

// Clear drops every attribute. Token signs are kept.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Attributes = make(map[string]any)
	return s.save(ctx)
}

// Keys returns the attribute names in ascending order.
func (s *Session) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.rec.Attributes))
	for k := range s.rec.Attributes {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// GetOrDefault returns the attribute value, or def when the key is absent.
func (s *Session) GetOrDefault(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.rec.Attributes[key]; ok && v != nil {
		return v
	}
	return def
}

// GetOrCompute returns the attribute value, computing and storing it first
// when the key is absent.
func (s *Session) GetOrCompute(ctx context.Context, key string, compute func() (any, error)) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.rec.Attributes[key]; ok && v != nil {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	if s.rec.Attributes == nil {
		s.rec.Attributes = make(map[string]any)
	}
	s.rec.Attributes[key] = v
	if err := s.save(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

// Int converts the attribute with spf13/cast; absent or unconvertible values yield 0.
func (s *Session) Int(key string) int { return cast.ToInt(s.Get(key)) }

// Int64 is the int64 variant of Int.
func (s *Session) Int64(key string) int64 { return cast.ToInt64(s.Get(key)) }

// Float64 is the float64 variant of Int.
func (s *Session) Float64(key string) float64 { return cast.ToFloat64(s.Get(key)) }

// String returns the attribute as a string, "" when absent.
func (s *Session) String(key string) string { return cast.ToString(s.Get(key)) }

// Bool returns the attribute as a bool, false when absent.
func (s *Session) Bool(key string) bool { return cast.ToBool(s.Get(key)) }

// TokenSigns returns a copy of every token sign.
func (s *Session) TokenSigns() []TokenSign {
	return s.TokenSignsByDevice("")
}

// TokenSignsByDevice returns a copy of the token signs issued to device.
// An empty device matches all.
func (s *Session) TokenSignsByDevice(device string) []TokenSign {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TokenSign, 0, len(s.rec.TokenSigns))
	for _, ts := range s.rec.TokenSigns {
		if device == "" || ts.Device == device {
			out = append(out, ts)
		}
	}
	return out
}

// TokenSign looks up the sign for a token value.
func (s *Session) TokenSign(value string) (TokenSign, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ts := range s.rec.TokenSigns {
		if ts.Value == value {
			return ts, true
		}
	}
	return TokenSign{}, false
}

// AddTokenSign appends sign unless a sign with the same value already exists.
func (s *Session) AddTokenSign(ctx context.Context, sign TokenSign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ts := range s.rec.TokenSigns {
		if ts.Value == sign.Value {
			return nil
		}
	}
	s.rec.TokenSigns = append(s.rec.TokenSigns, sign)
	return s.save(ctx)
}

// RemoveTokenSign removes the sign for value, if present.
func (s *Session) RemoveTokenSign(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ts := range s.rec.TokenSigns {
		if ts.Value == value {
			s.rec.TokenSigns = append(s.rec.TokenSigns[:i], s.rec.TokenSigns[i+1:]...)
			return s.save(ctx)
		}
	}
	return nil
}

// Timeout returns the remaining TTL of the backing entry.
func (s *Session) Timeout(ctx context.Context) (int64, error) {
	return s.mgr.store.ObjectTimeout(ctx, s.rec.ID)
}

// UpdateTimeout sets the TTL of the backing entry.
func (s *Session) UpdateTimeout(ctx context.Context, ttl int64) error {
	return s.mgr.store.UpdateObjectTimeout(ctx, s.rec.ID, ttl)
}

// UpdateMinTimeout raises the TTL to at least ttl. A permanent session is
// left permanent.
func (s *Session) UpdateMinTimeout(ctx context.Context, ttl int64) error {
	current, err := s.Timeout(ctx)
	if err != nil {
		return err
	}
	if current == store.NeverExpire || current == store.NotValueExpire {
		return nil
	}
	if ttl == store.NeverExpire || current < ttl {
		return s.UpdateTimeout(ctx, ttl)
	}
	return nil
}

// UpdateMaxTimeout lowers the TTL to at most ttl. ttl == NeverExpire is a no-op.
func (s *Session) UpdateMaxTimeout(ctx context.Context, ttl int64) error {
	if ttl == store.NeverExpire {
		return nil
	}
	current, err := s.Timeout(ctx)
	if err != nil {
		return err
	}
	if current == store.NotValueExpire {
		return nil
	}
	if current == store.NeverExpire || current > ttl {
		return s.UpdateTimeout(ctx, ttl)
	}
	return nil
}

// Destroy deletes the session from the store and notifies the observer.
func (s *Session) Destroy(ctx context.Context) error {
	return s.mgr.Delete(ctx, s.rec.ID)
}
