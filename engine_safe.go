package goToken

import (
	"context"

	"github.com/MrEthical07/goToken/store"
)

const safeValue = "1"

// OpenSafe opens the safe-mode window of realm for tok, which must be live,
// for timeout seconds.
func (e *Engine) OpenSafe(ctx context.Context, tok, realm string, timeout int64) error {
	if timeout == 0 || timeout < store.NeverExpire {
		return store.ErrInvalidTTL
	}
	if _, err := e.CheckLogin(ctx, tok); err != nil {
		return err
	}
	if err := e.store().Set(ctx, e.safeKey(tok, realm), safeValue, timeout); err != nil {
		return e.storeErr(err)
	}
	e.metricInc(MetricSafeOpened)
	return nil
}

// IsSafe reports whether the safe-mode window of realm is open for tok.
func (e *Engine) IsSafe(ctx context.Context, tok, realm string) (bool, error) {
	ttl, err := e.SafeTime(ctx, tok, realm)
	return ttl != store.NotValueExpire, err
}

// SafeTime returns the seconds left in the safe-mode window, or
// NotValueExpire when it is closed.
func (e *Engine) SafeTime(ctx context.Context, tok, realm string) (int64, error) {
	if tok == "" {
		return store.NotValueExpire, nil
	}
	ttl, err := e.store().Timeout(ctx, e.safeKey(tok, realm))
	if err != nil {
		return store.NotValueExpire, e.storeErr(err)
	}
	return ttl, nil
}

// CloseSafe closes the safe-mode window of realm for tok.
func (e *Engine) CloseSafe(ctx context.Context, tok, realm string) error {
	if tok == "" {
		return nil
	}
	return e.storeErr(e.store().Delete(ctx, e.safeKey(tok, realm)))
}

// CheckSafe fails with *NotSafeError unless the window of realm is open.
func (e *Engine) CheckSafe(ctx context.Context, tok, realm string) error {
	ok, err := e.IsSafe(ctx, tok, realm)
	if err != nil {
		return err
	}
	if !ok {
		return &NotSafeError{LoginType: e.loginType, Realm: realm}
	}
	return nil
}
