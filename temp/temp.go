// Package temp issues short-lived signed tokens carrying an arbitrary payload,
// independent of login state.
//
// A token value is an HS256 JWT holding only a random id and an expiry. The
// payload itself lives in the store under "{namespace}:{token}" with the same
// TTL, so deleting the record revokes the token before it expires.
package temp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/internal"
	"github.com/MrEthical07/goToken/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// DefaultNamespace is the record key prefix used when none is configured.
const DefaultNamespace = "satemp"

const secretSize = 32

var (
	// ErrInvalid is returned for tokens with a bad signature, bad shape or no record.
	ErrInvalid = errors.New("temp token invalid")
	// ErrExpired is returned for tokens whose expiry has passed.
	ErrExpired = errors.New("temp token expired")
)

// Config configures a Manager.
type Config struct {
	// Namespace prefixes every record key. Empty means DefaultNamespace.
	Namespace string
	// Secret is the HS256 signing key. When empty a random per-process key is
	// generated, which makes tokens unverifiable across processes.
	Secret []byte
	// Logger receives the missing-secret warning.
	Logger zerolog.Logger
}

// Manager creates and verifies temp tokens.
type Manager struct {
	store     store.Store
	namespace string
	secret    []byte
	now       func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for signing and verification.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager over s.
func NewManager(s store.Store, cfg Config, opts ...Option) (*Manager, error) {
	if s == nil {
		return nil, errors.New("temp: nil store")
	}
	m := &Manager{
		store:     s,
		namespace: cfg.Namespace,
		secret:    append([]byte(nil), cfg.Secret...),
		now:       time.Now,
	}
	if m.namespace == "" {
		m.namespace = DefaultNamespace
	}
	if len(m.secret) == 0 {
		secret, err := internal.RandomBytes(secretSize)
		if err != nil {
			return nil, fmt.Errorf("temp: generate secret: %w", err)
		}
		m.secret = secret
		cfg.Logger.Warn().
			Str("namespace", m.namespace).
			Msg("temp token secret not configured, using a random per-process key")
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) key(token string) string {
	return m.namespace + ":" + token
}

// Create stores value for timeout seconds (store.NeverExpire for no expiry)
// and returns the token naming it.
func (m *Manager) Create(ctx context.Context, value any, timeout int64) (string, error) {
	if timeout == 0 || timeout < store.NeverExpire {
		return "", store.ErrInvalidTTL
	}

	jti, err := internal.RandomHex(16)
	if err != nil {
		return "", err
	}

	now := m.now()
	claims := jwt.RegisteredClaims{
		ID:       jti,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if timeout != store.NeverExpire {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(timeout) * time.Second))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", err
	}
	if err := m.store.SetObject(ctx, m.key(token), value, timeout); err != nil {
		return "", err
	}
	return token, nil
}

func (m *Manager) verify(token string) error {
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
}

// Parse verifies token and decodes its payload into dst.
func (m *Manager) Parse(ctx context.Context, token string, dst any) error {
	if token == "" {
		return ErrInvalid
	}
	if err := m.verify(token); err != nil {
		return err
	}
	ok, err := m.store.GetObject(ctx, m.key(token), dst)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalid
	}
	return nil
}

// Timeout returns the remaining seconds of token's record, or
// store.NotValueExpire when it is gone.
func (m *Manager) Timeout(ctx context.Context, token string) (int64, error) {
	return m.store.ObjectTimeout(ctx, m.key(token))
}

// Delete revokes token. Deleting an unknown token is not an error.
func (m *Manager) Delete(ctx context.Context, token string) error {
	return m.store.DeleteObject(ctx, m.key(token))
}
