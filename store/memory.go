package store

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is the sweep period used when none is configured.
const DefaultSweepInterval = 30 * time.Second

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is the default in-process Store. Expired entries are invisible to
// reads immediately and are physically removed by a background sweep.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time

	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
	closeOnce     sync.Once
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithSweepInterval sets the sweep period in seconds. Values <= 0, including
// the -1 sentinel, disable the background sweep.
func WithSweepInterval(seconds int64) MemoryOption {
	return func(m *Memory) {
		if seconds <= 0 {
			m.sweepInterval = 0
			return
		}
		m.sweepInterval = time.Duration(seconds) * time.Second
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates a Memory store and starts its sweep goroutine unless
// disabled. Call Close to stop the sweep.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:       make(map[string]memoryEntry),
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.sweepInterval > 0 {
		go m.sweepLoop()
	} else {
		close(m.sweepDone)
	}
	return m
}

// Close stops the background sweep and waits for it to exit. Close is
// idempotent; the stored data stays readable.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		close(m.stopSweep)
		<-m.sweepDone
	})
	return nil
}

// Sweeping reports whether the background sweep goroutine is running.
func (m *Memory) Sweeping() bool {
	select {
	case <-m.sweepDone:
		return false
	default:
		return true
	}
}

func (m *Memory) sweepLoop() {
	defer close(m.sweepDone)

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopSweep:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep removes every expired entry. Expired keys are collected under the
// read lock and removed under the write lock.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.RLock()
	var expired []string
	for k, e := range m.entries {
		if e.expired(now) {
			expired = append(expired, k)
		}
	}
	m.mu.RUnlock()

	if len(expired) == 0 {
		return 0
	}

	removed := 0
	m.mu.Lock()
	for _, k := range expired {
		// re-check: the key may have been rewritten since collection
		if e, ok := m.entries[k]; ok && e.expired(now) {
			delete(m.entries, k)
			removed++
		}
	}
	m.mu.Unlock()
	return removed
}

// Len returns the number of physically stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) load(key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || e.expired(m.now()) {
		return nil, false
	}
	return e.value, true
}

func (m *Memory) write(key string, value []byte, ttl int64) error {
	ok, err := checkTTL(ttl)
	if err != nil || !ok {
		return err
	}

	e := memoryEntry{value: value}
	if ttl != NeverExpire {
		e.expiresAt = m.now().Add(time.Duration(ttl) * time.Second)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) rewrite(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expired(m.now()) {
		return
	}
	e.value = value
	m.entries[key] = e
}

func (m *Memory) timeout(key string) int64 {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	now := m.now()
	if !ok || e.expired(now) {
		return NotValueExpire
	}
	if e.expiresAt.IsZero() {
		return NeverExpire
	}
	remaining := e.expiresAt.Sub(now)
	secs := int64((remaining + 500*time.Millisecond) / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return secs
}

func (m *Memory) updateTimeout(key string, ttl int64) error {
	if ttl == 0 {
		return nil
	}
	if ttl < NeverExpire {
		return ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok || e.expired(now) {
		return nil
	}
	if ttl == NeverExpire {
		if e.expiresAt.IsZero() {
			return nil
		}
		m.entries[key] = memoryEntry{value: e.value}
		return nil
	}
	e.expiresAt = now.Add(time.Duration(ttl) * time.Second)
	m.entries[key] = e
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.load(key)
	if !ok {
		return "", false, nil
	}
	return string(v), true, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key, value string, ttl int64) error {
	return m.write(key, []byte(value), ttl)
}

// Update implements Store.
func (m *Memory) Update(_ context.Context, key, value string) error {
	m.rewrite(key, []byte(value))
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Timeout implements Store.
func (m *Memory) Timeout(_ context.Context, key string) (int64, error) {
	return m.timeout(key), nil
}

// UpdateTimeout implements Store.
func (m *Memory) UpdateTimeout(_ context.Context, key string, ttl int64) error {
	return m.updateTimeout(key, ttl)
}

// GetObject implements Store.
func (m *Memory) GetObject(_ context.Context, key string, dst any) (bool, error) {
	v, ok := m.load(key)
	if !ok {
		return false, nil
	}
	if err := decodeObject(v, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetObject implements Store.
func (m *Memory) SetObject(_ context.Context, key string, value any, ttl int64) error {
	data, err := encodeObject(value)
	if err != nil {
		return err
	}
	return m.write(key, data, ttl)
}

// UpdateObject implements Store.
func (m *Memory) UpdateObject(_ context.Context, key string, value any) error {
	data, err := encodeObject(value)
	if err != nil {
		return err
	}
	m.rewrite(key, data)
	return nil
}

// DeleteObject implements Store.
func (m *Memory) DeleteObject(ctx context.Context, key string) error {
	return m.Delete(ctx, key)
}

// ObjectTimeout implements Store.
func (m *Memory) ObjectTimeout(_ context.Context, key string) (int64, error) {
	return m.timeout(key), nil
}

// UpdateObjectTimeout implements Store.
func (m *Memory) UpdateObjectTimeout(_ context.Context, key string, ttl int64) error {
	return m.updateTimeout(key, ttl)
}

// SearchKeys implements Store.
func (m *Memory) SearchKeys(_ context.Context, prefix, keyword string, start, size int) ([]string, error) {
	now := m.now()

	m.mu.RLock()
	keys := make([]string, 0, 16)
	for k, e := range m.entries {
		if e.expired(now) {
			continue
		}
		if matchKey(k, prefix, keyword) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()

	return Page(keys, start, size), nil
}
