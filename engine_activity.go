package goToken

import (
	"context"
	"strconv"
	"strings"

	"github.com/MrEthical07/goToken/session"
	"github.com/MrEthical07/goToken/store"
	"github.com/spf13/cast"
)

// The activity record of a token holds "lastActivityMs:lastRenewMs:timeout",
// where timeout is the absolute lifetime the token was issued with. Records
// without the third field renew to Config.Timeout.
type activity struct {
	last    int64
	renewed int64
	timeout int64
}

func (a activity) String() string {
	return strconv.FormatInt(a.last, 10) + ":" +
		strconv.FormatInt(a.renewed, 10) + ":" +
		strconv.FormatInt(a.timeout, 10)
}

func parseActivity(v string) (activity, bool) {
	parts := strings.SplitN(v, ":", 3)
	var a activity
	var err error
	if a.last, err = cast.ToInt64E(parts[0]); err != nil {
		return activity{}, false
	}
	a.renewed = a.last
	if len(parts) > 1 {
		if a.renewed, err = cast.ToInt64E(parts[1]); err != nil {
			return activity{}, false
		}
	}
	if len(parts) > 2 {
		if a.timeout, err = cast.ToInt64E(parts[2]); err != nil {
			return activity{}, false
		}
	}
	return a, true
}

func (e *Engine) activityEnabled() bool {
	return e.config.ActivityTimeout != store.NeverExpire
}

func (e *Engine) readActivity(ctx context.Context, tok string) (activity, bool, error) {
	v, found, err := e.store().Get(ctx, e.activityKey(tok))
	if err != nil {
		return activity{}, false, e.storeErr(err)
	}
	if !found {
		return activity{}, false, nil
	}
	a, ok := parseActivity(v)
	return a, ok, nil
}

// startActivity writes a fresh activity record for tok, replacing any
// previous one. ttl is both the record lifetime and the renew target.
func (e *Engine) startActivity(ctx context.Context, tok string, ttl int64) error {
	if !e.activityEnabled() {
		return nil
	}
	now := e.now().UnixMilli()
	a := activity{last: now, renewed: now, timeout: ttl}
	return e.storeErr(e.store().Set(ctx, e.activityKey(tok), a.String(), ttl))
}

// idleExpired reports whether tok has been idle longer than ActivityTimeout.
// A token without an activity record is never idle.
func (e *Engine) idleExpired(ctx context.Context, tok string) (bool, error) {
	a, ok, err := e.readActivity(ctx, tok)
	if err != nil || !ok {
		return false, err
	}
	return e.now().UnixMilli()-a.last > e.config.ActivityTimeout*1000, nil
}

// touch runs the idle check for a live token and, with AutoRenew, records
// the activity. The absolute TTL is renewed to the token's own lifetime at
// most once per RenewDebounce.
func (e *Engine) touch(ctx context.Context, loginID, tok string) (bool, error) {
	a, ok, err := e.readActivity(ctx, tok)
	if err != nil || !ok {
		return false, err
	}
	now := e.now().UnixMilli()
	if now-a.last > e.config.ActivityTimeout*1000 {
		return true, e.expireIdle(ctx, nil, loginID, tok, true)
	}
	if !e.config.AutoRenew {
		return false, nil
	}

	if now-a.renewed >= e.config.RenewDebounce*1000 {
		ttl, err := e.store().Timeout(ctx, e.tokenKey(tok))
		if err != nil {
			return false, e.storeErr(err)
		}
		// a permanent token is only made finite by an explicit RenewTimeout
		if ttl != store.NeverExpire {
			if err := e.renew(ctx, tok, loginID, e.renewTarget(a)); err != nil {
				return false, err
			}
		}
		a.renewed = now
	}
	a.last = now
	return false, e.storeErr(e.store().Update(ctx, e.activityKey(tok), a.String()))
}

func (e *Engine) renewTarget(a activity) int64 {
	if a.timeout == 0 {
		return e.config.Timeout
	}
	return a.timeout
}

// expireIdle ends tok because it went idle. No listener event is emitted;
// later checks report ErrTokenTimeout.
func (e *Engine) expireIdle(ctx context.Context, acct *session.Session, loginID, tok string, dropEmpty bool) error {
	if err := e.writeMarker(ctx, tok, markerTokenTimeout); err != nil {
		return err
	}
	if err := e.cleanupToken(ctx, acct, loginID, tok, dropEmpty); err != nil {
		return err
	}
	e.metricInc(MetricActivityTimeout)
	return nil
}

// CheckActivityTimeout runs the idle check for tok regardless of the request
// scope. An idle token is expired and reported as *NotLoginError with
// ErrTokenTimeout.
func (e *Engine) CheckActivityTimeout(ctx context.Context, tok string) error {
	if !e.activityEnabled() {
		return nil
	}
	id, reason, err := e.resolve(ctx, tok, false)
	if err != nil {
		return err
	}
	if reason != nil {
		return e.notLogin(tok, reason)
	}
	expired, err := e.idleExpired(ctx, tok)
	if err != nil {
		return err
	}
	if expired {
		if err := e.expireIdle(ctx, nil, id, tok, true); err != nil {
			return err
		}
		return e.notLogin(tok, ErrTokenTimeout)
	}
	return nil
}

// UpdateLastActivity records now as the last activity of tok without running
// the idle check.
func (e *Engine) UpdateLastActivity(ctx context.Context, tok string) error {
	if !e.activityEnabled() || tok == "" {
		return nil
	}
	a, ok, err := e.readActivity(ctx, tok)
	if err != nil {
		return err
	}
	if ok {
		a.last = e.now().UnixMilli()
		return e.storeErr(e.store().Update(ctx, e.activityKey(tok), a.String()))
	}
	ttl, err := e.TokenTimeout(ctx, tok)
	if err != nil || ttl == store.NotValueExpire {
		return err
	}
	return e.startActivity(ctx, tok, ttl)
}

// TokenActivityTimeout returns the seconds tok may stay idle before it
// expires: NeverExpire when the idle check is disabled, NotValueExpire when
// the token has no activity record or already went idle.
func (e *Engine) TokenActivityTimeout(ctx context.Context, tok string) (int64, error) {
	if !e.activityEnabled() {
		return store.NeverExpire, nil
	}
	a, ok, err := e.readActivity(ctx, tok)
	if err != nil || !ok {
		return store.NotValueExpire, err
	}
	left := e.config.ActivityTimeout - (e.now().UnixMilli()-a.last)/1000
	if left < 0 {
		return store.NotValueExpire, nil
	}
	return left, nil
}

// TokenTimeout returns the remaining absolute lifetime of tok.
func (e *Engine) TokenTimeout(ctx context.Context, tok string) (int64, error) {
	ttl, err := e.store().Timeout(ctx, e.tokenKey(tok))
	return ttl, e.storeErr(err)
}

// SessionTimeout returns the remaining lifetime of the account session.
func (e *Engine) SessionTimeout(ctx context.Context, loginID string) (int64, error) {
	ttl, err := e.store().ObjectTimeout(ctx, e.sessionKey(loginID))
	return ttl, e.storeErr(err)
}

// TokenSessionTimeout returns the remaining lifetime of the token session.
func (e *Engine) TokenSessionTimeout(ctx context.Context, tok string) (int64, error) {
	ttl, err := e.store().ObjectTimeout(ctx, e.tokenSessionKey(tok))
	return ttl, e.storeErr(err)
}

// RenewTimeout sets the absolute lifetime of a live token to timeout seconds
// and keeps its sessions and activity record consistent with it. The account
// session is only ever extended, since other tokens may still need it. Later
// activity renewals extend the token to timeout as well.
func (e *Engine) RenewTimeout(ctx context.Context, tok string, timeout int64) error {
	if timeout == 0 || timeout < store.NeverExpire {
		return store.ErrInvalidTTL
	}
	id, reason, err := e.resolve(ctx, tok, false)
	if err != nil {
		return err
	}
	if reason != nil {
		return e.notLogin(tok, reason)
	}
	if err := e.renew(ctx, tok, id, timeout); err != nil {
		return err
	}
	a, ok, err := e.readActivity(ctx, tok)
	if err != nil || !ok {
		return err
	}
	a.timeout = timeout
	return e.storeErr(e.store().Update(ctx, e.activityKey(tok), a.String()))
}

func (e *Engine) renew(ctx context.Context, tok, loginID string, timeout int64) error {
	s := e.store()
	if err := s.UpdateTimeout(ctx, e.tokenKey(tok), timeout); err != nil {
		return e.storeErr(err)
	}
	mgr := e.sessions()
	acct, err := mgr.Get(ctx, e.sessionKey(loginID), false, 0)
	if err != nil {
		return e.storeErr(err)
	}
	if acct != nil {
		if err := acct.UpdateMinTimeout(ctx, timeout); err != nil {
			return e.storeErr(err)
		}
	}
	if err := s.UpdateObjectTimeout(ctx, e.tokenSessionKey(tok), timeout); err != nil {
		return e.storeErr(err)
	}
	if err := s.UpdateTimeout(ctx, e.activityKey(tok), timeout); err != nil {
		return e.storeErr(err)
	}
	e.metricInc(MetricRenew)
	return nil
}
