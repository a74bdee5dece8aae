package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 1000

// Redis is a Store backed by a Redis deployment. It does not own the client;
// closing the client remains the caller's responsibility.
//
//	Performance: every operation is a single round-trip except SearchKeys (SCAN loop).
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis store. prefix is prepended to every key and
// stripped again from SearchKeys results.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{
		redis:  client,
		prefix: prefix,
	}
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (r *Redis) get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.redis.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, unavailable(err)
	}
	return data, true, nil
}

func (r *Redis) set(ctx context.Context, key string, value any, ttl int64) error {
	ok, err := checkTTL(ttl)
	if err != nil || !ok {
		return err
	}

	var expiration time.Duration
	if ttl != NeverExpire {
		expiration = time.Duration(ttl) * time.Second
	}
	if err := r.redis.Set(ctx, r.key(key), value, expiration).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// update relies on SET XX KEEPTTL so the TTL is preserved and absent keys stay absent.
func (r *Redis) update(ctx context.Context, key string, value any) error {
	err := r.redis.SetArgs(ctx, r.key(key), value, redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) timeout(ctx context.Context, key string) (int64, error) {
	d, err := r.redis.TTL(ctx, r.key(key)).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	switch d {
	case -1:
		return NeverExpire, nil
	case -2:
		return NotValueExpire, nil
	}
	return int64(d / time.Second), nil
}

func (r *Redis) updateTimeout(ctx context.Context, key string, ttl int64) error {
	if ttl == 0 {
		return nil
	}
	if ttl < NeverExpire {
		return ErrInvalidTTL
	}

	k := r.key(key)
	if ttl == NeverExpire {
		current, err := r.timeout(ctx, key)
		if err != nil {
			return err
		}
		if current == NeverExpire || current == NotValueExpire {
			return nil
		}
		if err := r.redis.Persist(ctx, k).Err(); err != nil {
			return unavailable(err)
		}
		return nil
	}

	if err := r.redis.Expire(ctx, k, time.Duration(ttl)*time.Second).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	data, ok, err := r.get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	return string(data), true, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key, value string, ttl int64) error {
	return r.set(ctx, key, value, ttl)
}

// Update implements Store.
func (r *Redis) Update(ctx context.Context, key, value string) error {
	return r.update(ctx, key, value)
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Timeout implements Store.
func (r *Redis) Timeout(ctx context.Context, key string) (int64, error) {
	return r.timeout(ctx, key)
}

// UpdateTimeout implements Store.
func (r *Redis) UpdateTimeout(ctx context.Context, key string, ttl int64) error {
	return r.updateTimeout(ctx, key, ttl)
}

// GetObject implements Store.
func (r *Redis) GetObject(ctx context.Context, key string, dst any) (bool, error) {
	data, ok, err := r.get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := decodeObject(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetObject implements Store.
func (r *Redis) SetObject(ctx context.Context, key string, value any, ttl int64) error {
	data, err := encodeObject(value)
	if err != nil {
		return err
	}
	return r.set(ctx, key, data, ttl)
}

// UpdateObject implements Store.
func (r *Redis) UpdateObject(ctx context.Context, key string, value any) error {
	data, err := encodeObject(value)
	if err != nil {
		return err
	}
	return r.update(ctx, key, data)
}

// DeleteObject implements Store.
func (r *Redis) DeleteObject(ctx context.Context, key string) error {
	return r.Delete(ctx, key)
}

// ObjectTimeout implements Store.
func (r *Redis) ObjectTimeout(ctx context.Context, key string) (int64, error) {
	return r.timeout(ctx, key)
}

// UpdateObjectTimeout implements Store.
func (r *Redis) UpdateObjectTimeout(ctx context.Context, key string, ttl int64) error {
	return r.updateTimeout(ctx, key, ttl)
}

// SearchKeys implements Store. This is an admin-only O(n) SCAN and must not
// be used in request hot paths.
func (r *Redis) SearchKeys(ctx context.Context, prefix, keyword string, start, size int) ([]string, error) {
	pattern := escapeGlob(r.key(prefix)) + "*"
	if keyword != "" {
		pattern += escapeGlob(keyword) + "*"
	}

	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := r.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, unavailable(err)
		}
		for _, k := range keys {
			seen[strings.TrimPrefix(k, r.prefix)] = struct{}{}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	return Page(keys, start, size), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (r *Redis) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), unavailable(err)
	}
	return time.Since(start), nil
}

func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
