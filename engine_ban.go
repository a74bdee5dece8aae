package goToken

import (
	"context"

	"github.com/MrEthical07/goToken/store"
)

const disabledValue = "1"

// Disable bans loginID in realm for timeout seconds (NeverExpire for a
// permanent ban). The empty realm is the one Login checks. Existing tokens
// stay valid; call LogoutByLoginID to end them.
func (e *Engine) Disable(ctx context.Context, loginID, realm string, timeout int64) error {
	if err := validLoginID(loginID); err != nil {
		return err
	}
	if timeout == 0 || timeout < store.NeverExpire {
		return store.ErrInvalidTTL
	}
	if err := e.store().Set(ctx, e.disableKey(loginID, realm), disabledValue, timeout); err != nil {
		return e.storeErr(err)
	}
	e.metricInc(MetricDisable)
	e.emit(ctx, Event{Type: EventDisable, LoginID: loginID, Realm: realm, Timeout: timeout})
	return nil
}

// IsDisabled reports whether loginID is banned in realm.
func (e *Engine) IsDisabled(ctx context.Context, loginID, realm string) (bool, error) {
	ttl, err := e.DisableTime(ctx, loginID, realm)
	return ttl != store.NotValueExpire, err
}

// DisableTime returns the remaining ban in seconds, NeverExpire for a
// permanent ban and NotValueExpire when there is none.
func (e *Engine) DisableTime(ctx context.Context, loginID, realm string) (int64, error) {
	ttl, err := e.store().Timeout(ctx, e.disableKey(loginID, realm))
	if err != nil {
		return store.NotValueExpire, e.storeErr(err)
	}
	return ttl, nil
}

// UntieDisable lifts the ban of loginID in realm.
func (e *Engine) UntieDisable(ctx context.Context, loginID, realm string) error {
	if err := e.store().Delete(ctx, e.disableKey(loginID, realm)); err != nil {
		return e.storeErr(err)
	}
	e.metricInc(MetricUntieDisable)
	e.emit(ctx, Event{Type: EventUntieDisable, LoginID: loginID, Realm: realm})
	return nil
}

// CheckDisable fails with *AccountBannedError while loginID is banned in realm.
func (e *Engine) CheckDisable(ctx context.Context, loginID, realm string) error {
	ttl, err := e.DisableTime(ctx, loginID, realm)
	if err != nil {
		return err
	}
	if ttl == store.NotValueExpire {
		return nil
	}
	return &AccountBannedError{
		LoginType: e.loginType,
		LoginID:   loginID,
		Realm:     realm,
		Remaining: ttl,
	}
}
