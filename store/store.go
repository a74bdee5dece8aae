// Package store defines the TTL-aware key/value contract every login-state
// backend implements, together with the in-memory default and a Redis backend.
//
// TTLs are expressed in whole seconds. Two sentinels carry special meaning:
// [NeverExpire] writes a key without expiry and [NotValueExpire] is what
// Timeout reports for a key that does not exist.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
)

const (
	// NeverExpire marks a value that has no expiry.
	NeverExpire int64 = -1
	// NotValueExpire is reported by Timeout when the key does not exist. It is
	// never a valid ttl argument.
	NotValueExpire int64 = -2
)

var (
	// ErrUnavailable wraps every backend I/O failure.
	ErrUnavailable = errors.New("store unavailable")
	// ErrInvalidTTL is returned for ttl arguments below NeverExpire.
	ErrInvalidTTL = errors.New("invalid ttl")
)

// Store is the persistence contract used by the login-state engine, sessions
// and temp tokens. String and object variants share one key space and have
// identical TTL semantics; object values are msgpack encoded.
//
// Implementations must treat Set as atomic per key but callers never assume
// atomicity across keys.
type Store interface {
	// Get returns the string value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value with ttl seconds. ttl == 0 is a no-op, NeverExpire
	// writes without expiry, anything below NeverExpire is ErrInvalidTTL.
	Set(ctx context.Context, key, value string, ttl int64) error
	// Update overwrites value keeping the current TTL. Absent keys are left absent.
	Update(ctx context.Context, key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Timeout returns remaining seconds, NeverExpire or NotValueExpire.
	Timeout(ctx context.Context, key string) (int64, error)
	// UpdateTimeout changes the TTL without touching the value.
	UpdateTimeout(ctx context.Context, key string, ttl int64) error

	GetObject(ctx context.Context, key string, dst any) (bool, error)
	SetObject(ctx context.Context, key string, value any, ttl int64) error
	UpdateObject(ctx context.Context, key string, value any) error
	DeleteObject(ctx context.Context, key string) error
	ObjectTimeout(ctx context.Context, key string) (int64, error)
	UpdateObjectTimeout(ctx context.Context, key string, ttl int64) error

	// SearchKeys lists keys matching prefix*keyword* in ascending order,
	// returning at most size keys starting at offset start. size == -1
	// returns everything from start on.
	SearchKeys(ctx context.Context, prefix, keyword string, start, size int) ([]string, error)
}

// checkTTL reports whether a write should happen for ttl.
func checkTTL(ttl int64) (bool, error) {
	if ttl == 0 {
		return false, nil
	}
	if ttl < NeverExpire {
		return false, ErrInvalidTTL
	}
	return true, nil
}

func matchKey(key, prefix, keyword string) bool {
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	return keyword == "" || strings.Contains(key[len(prefix):], keyword)
}

// Page sorts keys and returns the [start, start+size) window.
func Page(keys []string, start, size int) []string {
	sort.Strings(keys)
	if start < 0 {
		start = 0
	}
	if start >= len(keys) || size == 0 {
		return []string{}
	}
	end := len(keys)
	if size > 0 && start+size < end {
		end = start + size
	}
	out := make([]string, end-start)
	copy(out, keys[start:end])
	return out
}
