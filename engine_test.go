package goToken

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/permission"
	"github.com/MrEthical07/goToken/store"
	"github.com/MrEthical07/goToken/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingListener struct {
	mu     sync.Mutex
	events []Event
}

func (l *recordingListener) record(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *recordingListener) OnLogin(_ context.Context, lt, id, tok string, p LoginParams) {
	l.record(Event{Type: EventLogin, LoginType: lt, LoginID: id, Token: tok, Device: p.Device, Params: p})
}

func (l *recordingListener) OnLogout(_ context.Context, lt, id, tok string) {
	l.record(Event{Type: EventLogout, LoginType: lt, LoginID: id, Token: tok})
}

func (l *recordingListener) OnKickedOut(_ context.Context, lt, id, tok string) {
	l.record(Event{Type: EventKickedOut, LoginType: lt, LoginID: id, Token: tok})
}

func (l *recordingListener) OnReplaced(_ context.Context, lt, id, device, tok string) {
	l.record(Event{Type: EventReplaced, LoginType: lt, LoginID: id, Device: device, Token: tok})
}

func (l *recordingListener) OnDisable(_ context.Context, lt, id, realm string, timeout int64) {
	l.record(Event{Type: EventDisable, LoginType: lt, LoginID: id, Realm: realm, Timeout: timeout})
}

func (l *recordingListener) OnUntieDisable(_ context.Context, lt, id, realm string) {
	l.record(Event{Type: EventUntieDisable, LoginType: lt, LoginID: id, Realm: realm})
}

func (l *recordingListener) OnSessionCreate(_ context.Context, lt, id string) {
	l.record(Event{Type: EventSessionCreate, LoginType: lt, SessionID: id})
}

func (l *recordingListener) OnSessionDestroy(_ context.Context, lt, id string) {
	l.record(Event{Type: EventSessionDestroy, LoginType: lt, SessionID: id})
}

func (l *recordingListener) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type staticProvider struct {
	permissions map[string][]string
	roles       map[string][]string
}

func (p staticProvider) PermissionList(_ context.Context, loginID, _ string) ([]string, error) {
	return p.permissions[loginID], nil
}

func (p staticProvider) RoleList(_ context.Context, loginID, _ string) ([]string, error) {
	return p.roles[loginID], nil
}

type harness struct {
	registry *Registry
	engine   *Engine
	store    *store.Memory
	clock    *fakeClock
	events   *recordingListener
}

func newHarness(t testing.TB, mutate func(*Config)) *harness {
	t.Helper()

	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.IsPrint = false
	if mutate != nil {
		mutate(&cfg)
	}

	mem := store.NewMemory(store.WithSweepInterval(-1), store.WithClock(clock.Now))
	events := &recordingListener{}
	r := NewRegistry(WithClock(clock.Now))
	require.NoError(t, r.SetConfig(cfg))
	require.NoError(t, r.SetStore(mem))
	require.NoError(t, r.SetListener(events))
	t.Cleanup(func() {
		_ = r.Close()
		_ = mem.Close()
	})

	e, err := r.Engine(DefaultLoginType)
	require.NoError(t, err)
	return &harness{registry: r, engine: e, store: mem, clock: clock, events: events}
}

func requireNotLogin(t *testing.T, err error, reason error) {
	t.Helper()
	require.Error(t, err)
	var nle *NotLoginError
	require.True(t, errors.As(err, &nle), "expected *NotLoginError, got %T: %v", err, err)
	assert.ErrorIs(t, err, ErrNotLogin)
	assert.ErrorIs(t, err, reason)
}

func TestLoginCheckLoginRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	for _, id := range []string{"10001", "alice", "42"} {
		tok, err := h.engine.Login(ctx, id)
		require.NoError(t, err)
		require.NotEmpty(t, tok)

		got, err := h.engine.CheckLogin(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, id, got)

		ttl, err := h.engine.TokenTimeout(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Timeout, ttl)
	}

	logins := h.events.ofType(EventLogin)
	require.Len(t, logins, 3)
	assert.Equal(t, DefaultLoginType, logins[0].LoginType)
	assert.Equal(t, DefaultDevice, logins[0].Device)
}

func TestLoginRejectsReservedIDs(t *testing.T) {
	h := newHarness(t, nil)
	for _, id := range []string{"", "  ", "-1", "-2", "-3", "-4", "-5"} {
		_, err := h.engine.Login(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidLoginID, "id %q", id)
	}
}

func TestExclusiveLoginReplacesEarlierTokens(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.AllowConcurrentLogin = false
		c.IsShare = false
	})
	ctx := context.Background()

	first, err := h.engine.Login(ctx, "10001", WithDevice("pc"))
	require.NoError(t, err)
	second, err := h.engine.Login(ctx, "10001", WithDevice("mobile"))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = h.engine.CheckLogin(ctx, first)
	requireNotLogin(t, err, ErrBeReplaced)

	id, err := h.engine.CheckLogin(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "10001", id)

	tokens, err := h.engine.TokenValuesByLoginID(ctx, "10001", "")
	require.NoError(t, err)
	assert.Equal(t, []string{second}, tokens)

	replaced := h.events.ofType(EventReplaced)
	require.Len(t, replaced, 1)
	assert.Equal(t, first, replaced[0].Token)
	assert.Equal(t, "pc", replaced[0].Device)

	// the marker is bounded by ReasonMarkerTimeout
	ttl, err := h.engine.TokenTimeout(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ReasonMarkerTimeout, ttl)
}

func TestConcurrentLoginsOnDifferentDevices(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	pc, err := h.engine.Login(ctx, "10001", WithDevice("pc"))
	require.NoError(t, err)
	mobile, err := h.engine.Login(ctx, "10001", WithDevice("mobile"))
	require.NoError(t, err)
	require.NotEqual(t, pc, mobile)

	for tok, device := range map[string]string{pc: "pc", mobile: "mobile"} {
		id, err := h.engine.CheckLogin(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, "10001", id)

		got, err := h.engine.LoginDevice(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, device, got)
	}

	tokens, err := h.engine.TokenValuesByLoginID(ctx, "10001", "mobile")
	require.NoError(t, err)
	assert.Equal(t, []string{mobile}, tokens)
}

func TestShareReusesTokenOnSameDevice(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Metrics.Enabled = true
	})
	ctx := context.Background()

	first, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)
	h.clock.Advance(time.Hour)
	second, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	ttl, err := h.engine.TokenTimeout(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Timeout, ttl, "reuse refreshes the token lifetime")

	tokens, err := h.engine.TokenValuesByLoginID(ctx, "10001", "")
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
	assert.Equal(t, uint64(1), h.engine.MetricsSnapshot().Counters[MetricLoginShared])
}

func TestShareRefreshesLastActivity(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.ActivityTimeout = 60 })
	ctx := context.Background()

	first, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)
	h.clock.Advance(50 * time.Second)
	second, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)
	require.Equal(t, first, second)

	h.clock.Advance(20 * time.Second)
	id, err := h.engine.CheckLogin(ctx, second)
	require.NoError(t, err, "the second login counts as activity")
	assert.Equal(t, "10001", id)

	left, err := h.engine.TokenActivityTimeout(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, int64(60), left)
}

func TestShareDisabledIssuesNewToken(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.IsShare = false })
	ctx := context.Background()

	first, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)
	second, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	for _, tok := range []string{first, second} {
		ok, err := h.engine.IsLogin(ctx, tok)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestShareSkipsLoggedOutToken(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)
	_, err = h.engine.Login(ctx, "10001", WithDevice("pc"))
	require.NoError(t, err)
	require.NoError(t, h.engine.Logout(ctx, first))

	second, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tok, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)

	require.NoError(t, h.engine.Logout(ctx, tok))
	_, err = h.engine.CheckLogin(ctx, tok)
	requireNotLogin(t, err, ErrNotLoginToken)

	require.NoError(t, h.engine.Logout(ctx, tok))
	_, err = h.engine.CheckLogin(ctx, tok)
	requireNotLogin(t, err, ErrNotLoginToken)

	require.NoError(t, h.engine.Logout(ctx, ""))
	assert.Len(t, h.events.ofType(EventLogout), 1)

	s, err := h.engine.Session(ctx, "10001", false)
	require.NoError(t, err)
	assert.Nil(t, s, "last logout destroys the account session")
}

func TestLogoutKeepsAccountSessionWhileTokensRemain(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	pc, err := h.engine.Login(ctx, "10001", WithDevice("pc"))
	require.NoError(t, err)
	mobile, err := h.engine.Login(ctx, "10001", WithDevice("mobile"))
	require.NoError(t, err)

	require.NoError(t, h.engine.Logout(ctx, pc))

	s, err := h.engine.Session(ctx, "10001", false)
	require.NoError(t, err)
	require.NotNil(t, s)
	signs := s.TokenSigns()
	require.Len(t, signs, 1)
	assert.Equal(t, mobile, signs[0].Value)
}

func TestLogoutByLoginIDKicksDevice(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	pc, err := h.engine.Login(ctx, "10001", WithDevice("pc"))
	require.NoError(t, err)
	mobile, err := h.engine.Login(ctx, "10001", WithDevice("mobile"))
	require.NoError(t, err)

	require.NoError(t, h.engine.LogoutByLoginID(ctx, "10001", "pc"))
	_, err = h.engine.CheckLogin(ctx, pc)
	requireNotLogin(t, err, ErrBeKickedOut)
	_, err = h.engine.CheckLogin(ctx, mobile)
	require.NoError(t, err)

	require.NoError(t, h.engine.LogoutByLoginID(ctx, "10001", ""))
	_, err = h.engine.CheckLogin(ctx, mobile)
	requireNotLogin(t, err, ErrBeKickedOut)

	kicked := h.events.ofType(EventKickedOut)
	require.Len(t, kicked, 2)
	assert.Equal(t, pc, kicked[0].Token)
	assert.Equal(t, mobile, kicked[1].Token)

	s, err := h.engine.Session(ctx, "10001", false)
	require.NoError(t, err)
	assert.Nil(t, s)

	// unknown accounts are ignored
	require.NoError(t, h.engine.LogoutByLoginID(ctx, "nobody", ""))
}

func TestKickoutSingleToken(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	pc, err := h.engine.Login(ctx, "10001", WithDevice("pc"))
	require.NoError(t, err)
	mobile, err := h.engine.Login(ctx, "10001", WithDevice("mobile"))
	require.NoError(t, err)

	require.NoError(t, h.engine.Kickout(ctx, pc))
	require.NoError(t, h.engine.Kickout(ctx, pc))

	_, err = h.engine.CheckLogin(ctx, pc)
	requireNotLogin(t, err, ErrBeKickedOut)
	_, err = h.engine.CheckLogin(ctx, mobile)
	require.NoError(t, err)

	kicked := h.events.ofType(EventKickedOut)
	require.Len(t, kicked, 1)
}

func TestCheckLoginReasons(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.engine.CheckLogin(ctx, "")
	requireNotLogin(t, err, ErrNotLoginToken)

	_, err = h.engine.CheckLogin(ctx, "bad token;")
	requireNotLogin(t, err, ErrInvalidToken)

	_, err = h.engine.CheckLogin(ctx, strings.Repeat("a", maxTokenLength+1))
	requireNotLogin(t, err, ErrInvalidToken)

	_, err = h.engine.CheckLogin(ctx, "never-issued")
	requireNotLogin(t, err, ErrNotLoginToken)

	tok, err := h.engine.Login(ctx, "10001", WithTimeout(10))
	require.NoError(t, err)
	h.clock.Advance(11 * time.Second)
	_, err = h.engine.CheckLogin(ctx, tok)
	requireNotLogin(t, err, ErrNotLoginToken)

	id, ok, err := h.engine.LoginIDByToken(ctx, tok)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, id)

	var nle *NotLoginError
	_, err = h.engine.CheckLogin(ctx, "never-issued")
	require.True(t, errors.As(err, &nle))
	assert.Equal(t, DefaultLoginType, nle.LoginType)
	assert.Equal(t, "never-issued", nle.Token)
}

func TestTokenCollisionIsFatal(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.IsShare = false })
	fixed := token.GeneratorFunc(func(string, string) (string, error) { return "same-token", nil })
	e, err := NewEngine("fixed", h.registry.Config(), h.registry, WithTokenGenerator(fixed))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = e.Login(ctx, "10001")
	require.NoError(t, err)
	_, err = e.Login(ctx, "10002")
	require.ErrorIs(t, err, ErrTokenCollision)
}

func TestDisableBlocksLoginUntilExpiry(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.engine.Disable(ctx, "10001", "", 2))

	_, err := h.engine.Login(ctx, "10001")
	require.ErrorIs(t, err, ErrAccountBanned)
	var banned *AccountBannedError
	require.True(t, errors.As(err, &banned))
	assert.Equal(t, int64(2), banned.Remaining)
	assert.Equal(t, "10001", banned.LoginID)

	disabled, err := h.engine.IsDisabled(ctx, "10001", "")
	require.NoError(t, err)
	assert.True(t, disabled)

	h.clock.Advance(2 * time.Second)

	disabled, err = h.engine.IsDisabled(ctx, "10001", "")
	require.NoError(t, err)
	assert.False(t, disabled)

	_, err = h.engine.Login(ctx, "10001")
	require.NoError(t, err)

	ev := h.events.ofType(EventDisable)
	require.Len(t, ev, 1)
	assert.Equal(t, int64(2), ev[0].Timeout)
}

func TestDisableRealmsAndUntie(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tok, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)

	require.NoError(t, h.engine.Disable(ctx, "10001", "comment", store.NeverExpire))
	ttl, err := h.engine.DisableTime(ctx, "10001", "comment")
	require.NoError(t, err)
	assert.Equal(t, store.NeverExpire, ttl)

	// a realm ban neither blocks login nor ends sessions
	_, err = h.engine.CheckLogin(ctx, tok)
	require.NoError(t, err)
	_, err = h.engine.Login(ctx, "10001")
	require.NoError(t, err)

	err = h.engine.CheckDisable(ctx, "10001", "comment")
	require.ErrorIs(t, err, ErrAccountBanned)

	require.NoError(t, h.engine.UntieDisable(ctx, "10001", "comment"))
	require.NoError(t, h.engine.CheckDisable(ctx, "10001", "comment"))
	assert.Len(t, h.events.ofType(EventUntieDisable), 1)

	require.ErrorIs(t, h.engine.Disable(ctx, "10001", "", 0), store.ErrInvalidTTL)
	require.ErrorIs(t, h.engine.Disable(ctx, "10001", "", -7), store.ErrInvalidTTL)
}

func TestActivityTimeoutExpiresIdleToken(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.ActivityTimeout = 60 })
	ctx := context.Background()

	tok, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)

	left, err := h.engine.TokenActivityTimeout(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, int64(60), left)

	h.clock.Advance(50 * time.Second)
	_, err = h.engine.CheckLogin(ctx, tok)
	require.NoError(t, err)

	h.clock.Advance(50 * time.Second)
	_, err = h.engine.CheckLogin(ctx, tok)
	require.NoError(t, err, "the previous check recorded activity")

	h.clock.Advance(61 * time.Second)
	_, err = h.engine.CheckLogin(ctx, tok)
	requireNotLogin(t, err, ErrTokenTimeout)
	_, err = h.engine.CheckLogin(ctx, tok)
	requireNotLogin(t, err, ErrTokenTimeout)

	left, err = h.engine.TokenActivityTimeout(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, store.NotValueExpire, left)

	s, err := h.engine.Session(ctx, "10001", false)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Empty(t, h.events.ofType(EventLogout))
}

func TestActivityWithoutAutoRenew(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.ActivityTimeout = 60
		c.AutoRenew = false
	})
	ctx := context.Background()

	tok, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)

	h.clock.Advance(40 * time.Second)
	_, err = h.engine.CheckLogin(ctx, tok)
	require.NoError(t, err)

	h.clock.Advance(30 * time.Second)
	_, err = h.engine.CheckLogin(ctx, tok)
	requireNotLogin(t, err, ErrTokenTimeout)
}

func TestActivityCheckedOncePerRequestScope(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.ActivityTimeout = 60 })

	tok, err := h.engine.Login(context.Background(), "10001")
	require.NoError(t, err)

	reqCtx := WithRequestScope(context.Background())
	_, err = h.engine.CheckLogin(reqCtx, tok)
	require.NoError(t, err)

	h.clock.Advance(61 * time.Second)
	_, err = h.engine.CheckLogin(reqCtx, tok)
	require.NoError(t, err, "already checked in this request")

	_, err = h.engine.CheckLogin(WithRequestScope(context.Background()), tok)
	requireNotLogin(t, err, ErrTokenTimeout)
}

func TestActivityRenewIsDebounced(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Timeout = 1000
		c.ActivityTimeout = 500
		c.RenewDebounce = 60
	})
	ctx := context.Background()

	tok, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)

	h.clock.Advance(30 * time.Second)
	_, err = h.engine.CheckLogin(ctx, tok)
	require.NoError(t, err)
	ttl, err := h.engine.TokenTimeout(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, int64(970), ttl)

	h.clock.Advance(40 * time.Second)
	_, err = h.engine.CheckLogin(ctx, tok)
	require.NoError(t, err)
	ttl, err = h.engine.TokenTimeout(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), ttl)

	sttl, err := h.engine.SessionTimeout(ctx, "10001")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sttl, int64(1000))
}

func TestActivityRenewLeavesPermanentToken(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Timeout = 1000
		c.ActivityTimeout = 500
		c.RenewDebounce = 0
	})
	ctx := context.Background()

	tok, err := h.engine.Login(ctx, "10001", WithTimeout(store.NeverExpire))
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	_, err = h.engine.CheckLogin(ctx, tok)
	require.NoError(t, err)

	ttl, err := h.engine.TokenTimeout(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, store.NeverExpire, ttl)
}

func TestActivityRenewKeepsLoginTimeout(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Timeout = 1000
		c.ActivityTimeout = 500
		c.RenewDebounce = 0
	})
	ctx := context.Background()

	tok, err := h.engine.Login(ctx, "10001", WithTimeout(300))
	require.NoError(t, err)

	h.clock.Advance(30 * time.Second)
	_, err = h.engine.CheckLogin(ctx, tok)
	require.NoError(t, err)
	ttl, err := h.engine.TokenTimeout(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, int64(300), ttl, "renewal extends to the login's own lifetime")

	require.NoError(t, h.engine.RenewTimeout(ctx, tok, 600))
	h.clock.Advance(10 * time.Second)
	_, err = h.engine.CheckLogin(ctx, tok)
	require.NoError(t, err)
	ttl, err = h.engine.TokenTimeout(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, int64(600), ttl, "an explicit renewal becomes the new target")
}

func TestCheckActivityTimeoutAndUpdateLastActivity(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.ActivityTimeout = 60 })
	ctx := context.Background()

	tok, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)

	h.clock.Advance(50 * time.Second)
	require.NoError(t, h.engine.CheckActivityTimeout(ctx, tok))
	require.NoError(t, h.engine.UpdateLastActivity(ctx, tok))

	h.clock.Advance(50 * time.Second)
	require.NoError(t, h.engine.CheckActivityTimeout(ctx, tok))

	h.clock.Advance(11 * time.Second)
	requireNotLogin(t, h.engine.CheckActivityTimeout(ctx, tok), ErrTokenTimeout)
}

func TestRenewTimeoutKeepsIndexesConsistent(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.ActivityTimeout = 60 })
	ctx := context.Background()

	tok, err := h.engine.Login(ctx, "10001", WithExtra("tenant", "acme"))
	require.NoError(t, err)

	require.NoError(t, h.engine.RenewTimeout(ctx, tok, 5_000_000))
	for name, get := range map[string]func() (int64, error){
		"token":         func() (int64, error) { return h.engine.TokenTimeout(ctx, tok) },
		"session":       func() (int64, error) { return h.engine.SessionTimeout(ctx, "10001") },
		"token-session": func() (int64, error) { return h.engine.TokenSessionTimeout(ctx, tok) },
	} {
		ttl, err := get()
		require.NoError(t, err)
		assert.Equal(t, int64(5_000_000), ttl, name)
	}

	require.NoError(t, h.engine.RenewTimeout(ctx, tok, store.NeverExpire))
	ttl, err := h.engine.TokenTimeout(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, store.NeverExpire, ttl)

	// shortening never cuts the account session below other tokens
	require.NoError(t, h.engine.RenewTimeout(ctx, tok, 100))
	sttl, err := h.engine.SessionTimeout(ctx, "10001")
	require.NoError(t, err)
	assert.Equal(t, store.NeverExpire, sttl)

	require.ErrorIs(t, h.engine.RenewTimeout(ctx, tok, 0), store.ErrInvalidTTL)
	requireNotLogin(t, h.engine.RenewTimeout(ctx, "missing", 10), ErrNotLoginToken)
}

func TestSessionsAndExtra(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tok, err := h.engine.Login(ctx, "10001", WithExtra("name", "ada"), WithExtra("age", 36))
	require.NoError(t, err)

	v, err := h.engine.Extra(ctx, tok, "name")
	require.NoError(t, err)
	assert.Equal(t, "ada", v)

	ts, err := h.engine.TokenSession(ctx, tok, false)
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, 36, ts.Int("age"))

	acct, err := h.engine.SessionByToken(ctx, tok, false)
	require.NoError(t, err)
	require.NotNil(t, acct)
	require.NoError(t, acct.Set(ctx, "role", "admin"))

	again, err := h.engine.Session(ctx, "10001", false)
	require.NoError(t, err)
	assert.Equal(t, "admin", again.String("role"))

	_, err = h.engine.TokenSession(ctx, "missing", true)
	requireNotLogin(t, err, ErrNotLoginToken)

	require.NoError(t, h.engine.Logout(ctx, tok))
	ttl, err := h.engine.TokenSessionTimeout(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, store.NotValueExpire, ttl)
}

func TestTokenSessionWithoutLoginCheck(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Timeout = 600
		c.TokenSessionCheckLogin = false
	})
	ctx := context.Background()

	ts, err := h.engine.TokenSession(ctx, "anonymous-visitor", true)
	require.NoError(t, err)
	require.NotNil(t, ts)
	require.NoError(t, ts.Set(ctx, "cart", "3 items"))

	again, err := h.engine.TokenSession(ctx, "anonymous-visitor", false)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "3 items", again.String("cart"))

	ttl, err := h.engine.TokenSessionTimeout(ctx, "anonymous-visitor")
	require.NoError(t, err)
	assert.Equal(t, int64(600), ttl)

	_, err = h.engine.TokenSession(ctx, "", true)
	requireNotLogin(t, err, ErrNotLoginToken)
}

func TestSearch(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	var tokens []string
	for _, id := range []string{"u3", "u1", "u2", "admin"} {
		tok, err := h.engine.Login(ctx, id, WithExtra("k", "v"))
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}

	ids, err := h.engine.SearchSessionID(ctx, "u", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3"}, ids)

	ids, err = h.engine.SearchSessionID(ctx, "", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)

	values, err := h.engine.SearchTokenValue(ctx, "", 0, -1)
	require.NoError(t, err)
	assert.ElementsMatch(t, tokens, values)

	values, err = h.engine.SearchTokenSessionID(ctx, tokens[0], 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{tokens[0]}, values)

	// ended tokens keep a reason marker but are no longer live
	require.NoError(t, h.engine.Kickout(ctx, tokens[0]))
	require.NoError(t, h.engine.LogoutByLoginID(ctx, "u1", ""))
	values, err = h.engine.SearchTokenValue(ctx, "", 0, -1)
	require.NoError(t, err)
	assert.ElementsMatch(t, tokens[2:], values)

	values, err = h.engine.SearchTokenValue(ctx, "", 1, 1)
	require.NoError(t, err)
	require.Len(t, values, 1, "paging applies to live tokens only")
}

func TestTokenInfo(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tok, err := h.engine.Login(ctx, "10001", WithDevice("pc"))
	require.NoError(t, err)

	info, err := h.engine.TokenInfo(ctx, tok)
	require.NoError(t, err)
	assert.True(t, info.IsLogin)
	assert.Equal(t, "10001", info.LoginID)
	assert.Equal(t, "satoken", info.TokenName)
	assert.Equal(t, "pc", info.LoginDevice)
	assert.Equal(t, DefaultConfig().Timeout, info.TokenTimeout)
	assert.Equal(t, store.NotValueExpire, info.TokenSessionTimeout)
	assert.Equal(t, store.NeverExpire, info.TokenActivityTimeout)

	info, err = h.engine.TokenInfo(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, info.IsLogin)
}

func TestSwitchIdentity(t *testing.T) {
	h := newHarness(t, nil)

	require.ErrorIs(t, h.engine.SwitchTo(context.Background(), "10002"), ErrNoRequestScope)

	tok, err := h.engine.Login(context.Background(), "10001")
	require.NoError(t, err)

	ctx := WithRequestScope(context.Background())
	assert.False(t, h.engine.IsSwitch(ctx))
	require.NoError(t, h.engine.SwitchTo(ctx, "10002"))
	assert.True(t, h.engine.IsSwitch(ctx))

	id, err := h.engine.CheckLogin(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "10002", id)

	raw, ok, err := h.engine.LoginIDByToken(ctx, tok)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10001", raw, "token lookups ignore the switch")

	require.NoError(t, h.engine.SwitchTo(ctx, "10003"))
	id, _, err = h.engine.LoginID(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "10003", id)

	h.engine.EndSwitch(ctx)
	assert.False(t, h.engine.IsSwitch(ctx))

	err = h.engine.SwitchDo(ctx, "10009", func(inner context.Context) error {
		got, err := h.engine.CheckLogin(inner, "")
		require.NoError(t, err)
		assert.Equal(t, "10009", got)
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	assert.False(t, h.engine.IsSwitch(ctx))
}

func TestSafeMode(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	requireNotLogin(t, h.engine.OpenSafe(ctx, "missing", "", 60), ErrNotLoginToken)

	tok, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)

	var notSafe *NotSafeError
	err = h.engine.CheckSafe(ctx, tok, "")
	require.True(t, errors.As(err, &notSafe))
	assert.ErrorIs(t, err, ErrNotSafe)

	require.NoError(t, h.engine.OpenSafe(ctx, tok, "", 120))
	require.NoError(t, h.engine.OpenSafe(ctx, tok, "pay", 30))
	require.NoError(t, h.engine.CheckSafe(ctx, tok, ""))

	left, err := h.engine.SafeTime(ctx, tok, "pay")
	require.NoError(t, err)
	assert.Equal(t, int64(30), left)

	h.clock.Advance(31 * time.Second)
	safe, err := h.engine.IsSafe(ctx, tok, "pay")
	require.NoError(t, err)
	assert.False(t, safe)
	safe, err = h.engine.IsSafe(ctx, tok, "")
	require.NoError(t, err)
	assert.True(t, safe)

	require.NoError(t, h.engine.CloseSafe(ctx, tok, ""))
	safe, err = h.engine.IsSafe(ctx, tok, "")
	require.NoError(t, err)
	assert.False(t, safe)
}

func TestPermissionsAndRoles(t *testing.T) {
	h := newHarness(t, nil)
	h.registry.SetAuthProvider(staticProvider{
		permissions: map[string][]string{"10001": {"user", "art.*"}},
		roles:       map[string][]string{"10001": {"admin", "super-admin"}},
	})
	ctx := context.Background()

	cases := []struct {
		code string
		want bool
	}{
		{"user", true},
		{"user-add", true},
		{"user-list", true},
		{"user:delete", true},
		{"get-user", false},
		{"username", false},
		{"art.publish", true},
		{"goods-add", false},
	}
	for _, tc := range cases {
		got, err := h.engine.HasPermission(ctx, "10001", tc.code)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.code)
	}

	ok, err := h.engine.HasPermissionAnd(ctx, "10001", "user-add", "goods-add")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = h.engine.HasPermissionOr(ctx, "10001", "user-add", "goods-add")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.engine.HasRole(ctx, "10001", "admin")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.engine.HasRoleAnd(ctx, "10001", "admin", "ceo")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = h.engine.HasRoleOr(ctx, "10001", "ceo", "admin")
	require.NoError(t, err)
	assert.True(t, ok)

	tok, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)

	require.NoError(t, h.engine.CheckPermission(ctx, tok, "user-add", "art.edit"))
	err = h.engine.CheckPermission(ctx, tok, "user-add", "goods-add")
	var np *NotPermissionError
	require.True(t, errors.As(err, &np))
	assert.Equal(t, "goods-add", np.Code)
	require.NoError(t, h.engine.CheckPermissionOr(ctx, tok, "goods-add", "user"))

	require.NoError(t, h.engine.CheckRole(ctx, tok, "admin"))
	err = h.engine.CheckRoleOr(ctx, tok, "ceo", "cfo")
	var nr *NotRoleError
	require.True(t, errors.As(err, &nr))
	assert.Equal(t, "ceo", nr.Role)

	requireNotLogin(t, h.engine.CheckPermission(ctx, "missing", "user"), ErrNotLoginToken)

	// switched identities are authorized as the switched account
	reqCtx := WithRequestScope(ctx)
	require.NoError(t, h.engine.SwitchTo(reqCtx, "10002"))
	require.ErrorIs(t, h.engine.CheckPermission(reqCtx, tok, "user"), ErrNotPermission)
}

func TestCustomMatchRule(t *testing.T) {
	h := newHarness(t, nil)
	h.registry.SetAuthProvider(staticProvider{permissions: map[string][]string{"1": {"user"}}})
	e, err := NewEngine("strict", h.registry.Config(), h.registry, WithMatchRule(permission.Exact))
	require.NoError(t, err)

	ok, err := e.HasPermission(context.Background(), "1", "user-add")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListenerPanicDoesNotAbortLogin(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Metrics.Enabled = true })
	require.NoError(t, h.registry.SetListener(panicListener{}))

	tok, err := h.engine.Login(context.Background(), "10001")
	require.NoError(t, err)
	_, err = h.engine.CheckLogin(context.Background(), tok)
	require.NoError(t, err)

	// session create and login both panicked
	assert.Equal(t, uint64(2), h.engine.MetricsSnapshot().Counters[MetricListenerPanic])
}

type panicListener struct{ NopListener }

func (panicListener) OnLogin(context.Context, string, string, string, LoginParams) {
	panic("listener failure")
}

func (panicListener) OnSessionCreate(context.Context, string, string) {
	panic("listener failure")
}

func TestLoginTypesAreIsolated(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	admin, err := h.registry.Register("admin", h.registry.Config())
	require.NoError(t, err)

	userTok, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)
	adminTok, err := admin.Login(ctx, "10001")
	require.NoError(t, err)

	_, err = admin.CheckLogin(ctx, userTok)
	requireNotLogin(t, err, ErrNotLoginToken)
	_, err = h.engine.CheckLogin(ctx, adminTok)
	requireNotLogin(t, err, ErrNotLoginToken)

	require.NoError(t, admin.Disable(ctx, "10001", "", 60))
	_, err = h.engine.Login(ctx, "10001", WithDevice("pc"))
	require.NoError(t, err)
}

func TestSessionEventsCarryLoginType(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	admin, err := h.registry.Register("admin", h.registry.Config())
	require.NoError(t, err)

	userTok, err := h.engine.Login(ctx, "10001")
	require.NoError(t, err)
	adminTok, err := admin.Login(ctx, "10001")
	require.NoError(t, err)
	require.NoError(t, h.engine.Logout(ctx, userTok))
	require.NoError(t, admin.Logout(ctx, adminTok))

	for _, typ := range []EventType{EventSessionCreate, EventSessionDestroy} {
		events := h.events.ofType(typ)
		require.Len(t, events, 2, typ.String())
		assert.Equal(t, DefaultLoginType, events[0].LoginType, typ.String())
		assert.Equal(t, "admin", events[1].LoginType, typ.String())
	}
}

func TestLoginParamsCookieMaxAge(t *testing.T) {
	assert.Equal(t, int64(-1), LoginParams{Timeout: 100}.CookieMaxAge())
	assert.Equal(t, int64(100), LoginParams{Timeout: 100, IsLastingCookie: true}.CookieMaxAge())
	assert.Equal(t, int64(1<<31-1), LoginParams{Timeout: store.NeverExpire, IsLastingCookie: true}.CookieMaxAge())
}
