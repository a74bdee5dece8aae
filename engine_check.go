package goToken

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/store"
)

// resolve maps tok to its login id. A non-nil reason explains why the token
// does not name a live login; err reports store failures only.
func (e *Engine) resolve(ctx context.Context, tok string, activity bool) (loginID string, reason, err error) {
	if tok == "" {
		return "", ErrNotLoginToken, nil
	}
	if !wellFormed(tok) {
		return "", ErrInvalidToken, nil
	}
	v, ok, err := e.store().Get(ctx, e.tokenKey(tok))
	if err != nil {
		return "", nil, e.storeErr(err)
	}
	if !ok {
		return "", ErrNotLoginToken, nil
	}
	if isMarker(v) {
		return "", markerReason(v), nil
	}

	if activity && e.activityEnabled() && scopeFrom(ctx).markChecked(e.loginType, tok) {
		expired, err := e.touch(ctx, v, tok)
		if err != nil {
			return "", nil, err
		}
		if expired {
			return "", ErrTokenTimeout, nil
		}
	}
	return v, nil, nil
}

// LoginIDByToken returns the login id behind tok. It reports false, without
// an error, when the token does not name a live login. The first call per
// request scope runs the idle check and renews the token when enabled.
// Identity switches are not applied.
func (e *Engine) LoginIDByToken(ctx context.Context, tok string) (string, bool, error) {
	id, reason, err := e.resolve(ctx, tok, true)
	if err != nil || reason != nil {
		return "", false, err
	}
	return id, true, nil
}

// CheckLogin returns the effective login id of the request: the switched
// identity when SwitchTo is active, otherwise the id behind tok. It fails with
// *NotLoginError carrying the reason the token is not live.
func (e *Engine) CheckLogin(ctx context.Context, tok string) (string, error) {
	if id, ok := scopeFrom(ctx).switchedTo(e.loginType); ok {
		return id, nil
	}

	start := time.Now()
	id, reason, err := e.resolve(ctx, tok, true)
	if e.deps.Metrics().LatencyEnabled() {
		e.deps.Metrics().Observe(MetricCheckLoginLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricCheckLoginFailure)
		return "", err
	}
	if reason != nil {
		e.metricInc(MetricCheckLoginFailure)
		return "", e.notLogin(tok, reason)
	}
	e.metricInc(MetricCheckLoginSuccess)
	return id, nil
}

// IsLogin is CheckLogin reduced to a boolean. Store failures are still
// returned as errors.
func (e *Engine) IsLogin(ctx context.Context, tok string) (bool, error) {
	_, err := e.CheckLogin(ctx, tok)
	if errors.Is(err, ErrNotLogin) {
		return false, nil
	}
	return err == nil, err
}

// LoginID is the non-failing form of CheckLogin: it honors identity switches
// and reports false when there is no live login.
func (e *Engine) LoginID(ctx context.Context, tok string) (string, bool, error) {
	id, err := e.CheckLogin(ctx, tok)
	if errors.Is(err, ErrNotLogin) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// LoginDevice returns the device tok was issued for, or "" when the token is
// not live.
func (e *Engine) LoginDevice(ctx context.Context, tok string) (string, error) {
	id, reason, err := e.resolve(ctx, tok, false)
	if err != nil || reason != nil {
		return "", err
	}
	acct, err := e.sessions().Get(ctx, e.sessionKey(id), false, 0)
	if err != nil || acct == nil {
		return "", e.storeErr(err)
	}
	sign, _ := acct.TokenSign(tok)
	return sign.Device, nil
}

// TokenValuesByLoginID lists the tokens of loginID on device, or on every
// device when device is empty, in login order.
func (e *Engine) TokenValuesByLoginID(ctx context.Context, loginID, device string) ([]string, error) {
	acct, err := e.sessions().Get(ctx, e.sessionKey(loginID), false, 0)
	if err != nil {
		return nil, e.storeErr(err)
	}
	if acct == nil {
		return nil, nil
	}
	signs := acct.TokenSignsByDevice(device)
	out := make([]string, 0, len(signs))
	for _, s := range signs {
		out = append(out, s.Value)
	}
	return out, nil
}

// TokenInfo summarizes the state of one token.
type TokenInfo struct {
	TokenName            string
	TokenValue           string
	IsLogin              bool
	LoginID              string
	LoginType            string
	LoginDevice          string
	TokenTimeout         int64
	SessionTimeout       int64
	TokenSessionTimeout  int64
	TokenActivityTimeout int64
}

// TokenInfo collects the login state and every TTL related to tok. It does
// not run the idle check.
func (e *Engine) TokenInfo(ctx context.Context, tok string) (TokenInfo, error) {
	info := TokenInfo{
		TokenName:            e.config.TokenName,
		TokenValue:           tok,
		LoginType:            e.loginType,
		TokenTimeout:         store.NotValueExpire,
		SessionTimeout:       store.NotValueExpire,
		TokenSessionTimeout:  store.NotValueExpire,
		TokenActivityTimeout: store.NotValueExpire,
	}
	id, reason, err := e.resolve(ctx, tok, false)
	if err != nil {
		return info, err
	}
	if reason != nil {
		return info, nil
	}
	info.IsLogin = true
	info.LoginID = id

	if info.LoginDevice, err = e.LoginDevice(ctx, tok); err != nil {
		return info, err
	}
	if info.TokenTimeout, err = e.TokenTimeout(ctx, tok); err != nil {
		return info, err
	}
	if info.SessionTimeout, err = e.SessionTimeout(ctx, id); err != nil {
		return info, err
	}
	if info.TokenSessionTimeout, err = e.TokenSessionTimeout(ctx, tok); err != nil {
		return info, err
	}
	if info.TokenActivityTimeout, err = e.TokenActivityTimeout(ctx, tok); err != nil {
		return info, err
	}
	return info, nil
}
