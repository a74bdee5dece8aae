package goToken

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goToken/session"
	"github.com/MrEthical07/goToken/store"
)

// DefaultDevice is recorded for logins that do not name a device.
const DefaultDevice = "default-device"

// LoginParams are the effective options of one login. They are passed to
// Listener.OnLogin unchanged.
type LoginParams struct {
	// Device tags the token so it can be shared or kicked per device.
	Device string
	// Timeout overrides Config.Timeout for this token. 0 keeps the default.
	Timeout int64
	// IsLastingCookie selects a persistent cookie over a browser-session one.
	IsLastingCookie bool
	// Extra is written into the token session.
	Extra map[string]any
}

// CookieMaxAge returns the Max-Age a transport should write for the token.
func (p LoginParams) CookieMaxAge() int64 {
	if !p.IsLastingCookie {
		return -1
	}
	if p.Timeout == store.NeverExpire {
		return 1<<31 - 1
	}
	return p.Timeout
}

// LoginOption customizes a Login call.
type LoginOption func(*LoginParams)

// WithDevice tags the login with a device name.
func WithDevice(device string) LoginOption {
	return func(p *LoginParams) { p.Device = device }
}

// WithTimeout overrides the absolute token lifetime in seconds.
func WithTimeout(timeout int64) LoginOption {
	return func(p *LoginParams) { p.Timeout = timeout }
}

// WithLastingCookie chooses between a persistent and a session cookie.
func WithLastingCookie(lasting bool) LoginOption {
	return func(p *LoginParams) { p.IsLastingCookie = lasting }
}

// WithExtra stores key=value in the token session at login.
func WithExtra(key string, value any) LoginOption {
	return func(p *LoginParams) {
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[key] = value
	}
}

// Login establishes a login for loginID and returns its token.
func (e *Engine) Login(ctx context.Context, loginID string, opts ...LoginOption) (string, error) {
	p := LoginParams{IsLastingCookie: true}
	for _, opt := range opts {
		opt(&p)
	}
	return e.LoginWithModel(ctx, loginID, p)
}

// LoginWithModel is Login with the options already collected.
//
// A banned account is rejected with *AccountBannedError. Without concurrent
// login every live token of the account is replaced first. With sharing, a
// live token on the same device is reused and its lifetime refreshed.
func (e *Engine) LoginWithModel(ctx context.Context, loginID string, p LoginParams) (string, error) {
	if err := validLoginID(loginID); err != nil {
		return "", err
	}
	p = e.normalize(p)

	if err := e.CheckDisable(ctx, loginID, ""); err != nil {
		if _, ok := err.(*AccountBannedError); ok {
			e.metricInc(MetricLoginBanned)
		}
		return "", err
	}

	if !e.config.AllowConcurrentLogin {
		if err := e.replace(ctx, loginID); err != nil {
			return "", err
		}
	}

	acct, err := e.sessions().Get(ctx, e.sessionKey(loginID), true, p.Timeout)
	if err != nil {
		return "", e.storeErr(err)
	}

	tok, shared, err := e.issue(ctx, acct, loginID, p)
	if err != nil {
		return "", err
	}

	if !shared {
		if err := e.store().Set(ctx, e.tokenKey(tok), loginID, p.Timeout); err != nil {
			return "", e.storeErr(err)
		}
		if err := acct.AddTokenSign(ctx, session.TokenSign{Value: tok, Device: p.Device}); err != nil {
			return "", e.storeErr(err)
		}
	}
	// a shared token counts as used again and renews to this login's lifetime
	if err := e.startActivity(ctx, tok, p.Timeout); err != nil {
		return "", err
	}
	if err := acct.UpdateMinTimeout(ctx, p.Timeout); err != nil {
		return "", e.storeErr(err)
	}

	if len(p.Extra) > 0 {
		ts, err := e.sessions().Get(ctx, e.tokenSessionKey(tok), true, p.Timeout)
		if err != nil {
			return "", e.storeErr(err)
		}
		for k, v := range p.Extra {
			if err := ts.Set(ctx, k, v); err != nil {
				return "", e.storeErr(err)
			}
		}
	}

	if shared {
		e.metricInc(MetricLoginShared)
	}
	e.metricInc(MetricLogin)
	e.emit(ctx, Event{Type: EventLogin, LoginID: loginID, Token: tok, Device: p.Device, Params: p})
	return tok, nil
}

func (e *Engine) normalize(p LoginParams) LoginParams {
	if p.Device == "" {
		p.Device = DefaultDevice
	}
	if p.Timeout == 0 {
		p.Timeout = e.config.Timeout
	}
	if p.Extra != nil {
		extra := make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			extra[k] = v
		}
		p.Extra = extra
	}
	return p
}

// issue returns the token for a login: a reusable one when sharing applies,
// otherwise a freshly generated value that must not already be indexed.
func (e *Engine) issue(ctx context.Context, acct *session.Session, loginID string, p LoginParams) (string, bool, error) {
	if e.config.AllowConcurrentLogin && e.config.IsShare {
		for _, sign := range acct.TokenSignsByDevice(p.Device) {
			live, err := e.reusable(ctx, acct, sign.Value, loginID)
			if err != nil {
				return "", false, err
			}
			if !live {
				continue
			}
			if err := e.renew(ctx, sign.Value, loginID, p.Timeout); err != nil {
				return "", false, err
			}
			return sign.Value, true, nil
		}
	}

	tok, err := e.generator.Create(loginID, e.loginType)
	if err != nil {
		return "", false, fmt.Errorf("generate token: %w", err)
	}
	ttl, err := e.store().Timeout(ctx, e.tokenKey(tok))
	if err != nil {
		return "", false, e.storeErr(err)
	}
	if ttl != store.NotValueExpire {
		return "", false, ErrTokenCollision
	}
	return tok, false, nil
}

// reusable reports whether tok still names loginID and has not gone idle.
func (e *Engine) reusable(ctx context.Context, acct *session.Session, tok, loginID string) (bool, error) {
	v, ok, err := e.store().Get(ctx, e.tokenKey(tok))
	if err != nil {
		return false, e.storeErr(err)
	}
	if !ok || v != loginID {
		e.logBestEffort(acct.RemoveTokenSign(ctx, tok), "drop stale token sign")
		return false, nil
	}
	if !e.activityEnabled() {
		return true, nil
	}
	expired, err := e.idleExpired(ctx, tok)
	if err != nil {
		return false, err
	}
	if expired {
		return false, e.expireIdle(ctx, acct, loginID, tok, false)
	}
	return true, nil
}
