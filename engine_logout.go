package goToken

import (
	"context"

	"github.com/MrEthical07/goToken/session"
)

// Logout ends the login named by tok. Logging out an unknown, expired or
// already ended token is a silent no-op.
func (e *Engine) Logout(ctx context.Context, tok string) error {
	if tok == "" || !wellFormed(tok) {
		return nil
	}
	s := e.store()
	loginID, ok, err := s.Get(ctx, e.tokenKey(tok))
	if err != nil {
		return e.storeErr(err)
	}
	if !ok {
		return nil
	}
	if err := s.Delete(ctx, e.tokenKey(tok)); err != nil {
		return e.storeErr(err)
	}
	if isMarker(loginID) {
		return nil
	}
	if err := e.cleanupToken(ctx, nil, loginID, tok, true); err != nil {
		return err
	}
	scopeFrom(ctx).clearChecked(e.loginType, tok)

	e.metricInc(MetricLogout)
	e.emit(ctx, Event{Type: EventLogout, LoginID: loginID, Token: tok})
	return nil
}

// LogoutByLoginID kicks every token of loginID on device, or on all devices
// when device is empty. Later checks of those tokens report ErrBeKickedOut.
func (e *Engine) LogoutByLoginID(ctx context.Context, loginID, device string) error {
	acct, err := e.sessions().Get(ctx, e.sessionKey(loginID), false, 0)
	if err != nil {
		return e.storeErr(err)
	}
	if acct == nil {
		return nil
	}
	for _, sign := range acct.TokenSignsByDevice(device) {
		if err := e.end(ctx, acct, loginID, sign, markerBeKickedOut); err != nil {
			return err
		}
	}
	return e.dropIfEmpty(ctx, acct)
}

// Kickout kicks the single token tok. Unknown or already ended tokens are
// ignored.
func (e *Engine) Kickout(ctx context.Context, tok string) error {
	if tok == "" || !wellFormed(tok) {
		return nil
	}
	loginID, ok, err := e.store().Get(ctx, e.tokenKey(tok))
	if err != nil {
		return e.storeErr(err)
	}
	if !ok || isMarker(loginID) {
		return nil
	}
	acct, err := e.sessions().Get(ctx, e.sessionKey(loginID), false, 0)
	if err != nil {
		return e.storeErr(err)
	}
	sign := session.TokenSign{Value: tok}
	if acct != nil {
		if found, ok := acct.TokenSign(tok); ok {
			sign = found
		}
	}
	if err := e.end(ctx, acct, loginID, sign, markerBeKickedOut); err != nil {
		return err
	}
	return e.dropIfEmpty(ctx, acct)
}

// replace ends every live token of loginID because a newer exclusive login
// supersedes them.
func (e *Engine) replace(ctx context.Context, loginID string) error {
	acct, err := e.sessions().Get(ctx, e.sessionKey(loginID), false, 0)
	if err != nil {
		return e.storeErr(err)
	}
	if acct == nil {
		return nil
	}
	for _, sign := range acct.TokenSigns() {
		if err := e.end(ctx, acct, loginID, sign, markerBeReplaced); err != nil {
			return err
		}
	}
	return nil
}

// end marks the token of sign with marker, releases its per-token state and
// notifies listeners.
func (e *Engine) end(ctx context.Context, acct *session.Session, loginID string, sign session.TokenSign, marker string) error {
	v, ok, err := e.store().Get(ctx, e.tokenKey(sign.Value))
	if err != nil {
		return e.storeErr(err)
	}
	live := ok && v == loginID
	if live {
		if err := e.writeMarker(ctx, sign.Value, marker); err != nil {
			return err
		}
	}
	if err := e.cleanupToken(ctx, acct, loginID, sign.Value, false); err != nil {
		return err
	}
	if !live {
		return nil
	}

	switch marker {
	case markerBeReplaced:
		e.metricInc(MetricReplaced)
		e.emit(ctx, Event{Type: EventReplaced, LoginID: loginID, Token: sign.Value, Device: sign.Device})
	case markerBeKickedOut:
		e.metricInc(MetricKickout)
		e.emit(ctx, Event{Type: EventKickedOut, LoginID: loginID, Token: sign.Value, Device: sign.Device})
	}
	return nil
}

// writeMarker overwrites the token index with a reason marker. The marker
// lives no longer than the token would have and never longer than
// Config.ReasonMarkerTimeout.
func (e *Engine) writeMarker(ctx context.Context, tok, marker string) error {
	ttl, err := e.store().Timeout(ctx, e.tokenKey(tok))
	if err != nil {
		return e.storeErr(err)
	}
	markerTTL := e.config.ReasonMarkerTimeout
	if ttl > 0 && ttl < markerTTL {
		markerTTL = ttl
	}
	return e.storeErr(e.store().Set(ctx, e.tokenKey(tok), marker, markerTTL))
}

// cleanupToken removes the activity record, the token session and the
// account's sign for tok. acct may be nil, in which case it is loaded.
func (e *Engine) cleanupToken(ctx context.Context, acct *session.Session, loginID, tok string, dropEmpty bool) error {
	if err := e.store().Delete(ctx, e.activityKey(tok)); err != nil {
		return e.storeErr(err)
	}
	mgr := e.sessions()
	if err := mgr.Delete(ctx, e.tokenSessionKey(tok)); err != nil {
		return e.storeErr(err)
	}
	if acct == nil {
		var err error
		acct, err = mgr.Get(ctx, e.sessionKey(loginID), false, 0)
		if err != nil {
			return e.storeErr(err)
		}
		if acct == nil {
			return nil
		}
	}
	if err := acct.RemoveTokenSign(ctx, tok); err != nil {
		return e.storeErr(err)
	}
	if dropEmpty {
		return e.dropIfEmpty(ctx, acct)
	}
	return nil
}

// dropIfEmpty destroys the account session once no token references it.
func (e *Engine) dropIfEmpty(ctx context.Context, acct *session.Session) error {
	if acct == nil || len(acct.TokenSigns()) > 0 {
		return nil
	}
	return e.storeErr(acct.Destroy(ctx))
}
