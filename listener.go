package goToken

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Listener receives best-effort notifications about login-state changes.
// Methods are called synchronously on the calling goroutine unless the
// listener is wrapped in an AsyncListener. A panicking listener is recovered
// and logged; it never aborts the operation that triggered it.
//
// Embed NopListener to implement only the hooks you need.
type Listener interface {
	OnLogin(ctx context.Context, loginType, loginID, token string, params LoginParams)
	OnLogout(ctx context.Context, loginType, loginID, token string)
	OnKickedOut(ctx context.Context, loginType, loginID, token string)
	OnReplaced(ctx context.Context, loginType, loginID, device, token string)
	OnDisable(ctx context.Context, loginType, loginID, realm string, timeout int64)
	OnUntieDisable(ctx context.Context, loginType, loginID, realm string)
	OnSessionCreate(ctx context.Context, loginType, sessionID string)
	OnSessionDestroy(ctx context.Context, loginType, sessionID string)
}

// EventType enumerates the Listener hooks.
type EventType uint8

const (
	EventLogin EventType = iota + 1
	EventLogout
	EventKickedOut
	EventReplaced
	EventDisable
	EventUntieDisable
	EventSessionCreate
	EventSessionDestroy
)

var eventNames = [...]string{
	EventLogin:          "login",
	EventLogout:         "logout",
	EventKickedOut:      "kicked_out",
	EventReplaced:       "replaced",
	EventDisable:        "disable",
	EventUntieDisable:   "untie_disable",
	EventSessionCreate:  "session_create",
	EventSessionDestroy: "session_destroy",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) && eventNames[t] != "" {
		return eventNames[t]
	}
	return "unknown"
}

// Event is the value form of one Listener call, used for queued delivery.
type Event struct {
	Type      EventType
	Time      time.Time
	LoginType string
	LoginID   string
	Token     string
	Device    string
	Realm     string
	SessionID string
	Timeout   int64
	Params    LoginParams
}

// Deliver invokes the hook of l matching ev.Type.
func Deliver(ctx context.Context, l Listener, ev Event) {
	switch ev.Type {
	case EventLogin:
		l.OnLogin(ctx, ev.LoginType, ev.LoginID, ev.Token, ev.Params)
	case EventLogout:
		l.OnLogout(ctx, ev.LoginType, ev.LoginID, ev.Token)
	case EventKickedOut:
		l.OnKickedOut(ctx, ev.LoginType, ev.LoginID, ev.Token)
	case EventReplaced:
		l.OnReplaced(ctx, ev.LoginType, ev.LoginID, ev.Device, ev.Token)
	case EventDisable:
		l.OnDisable(ctx, ev.LoginType, ev.LoginID, ev.Realm, ev.Timeout)
	case EventUntieDisable:
		l.OnUntieDisable(ctx, ev.LoginType, ev.LoginID, ev.Realm)
	case EventSessionCreate:
		l.OnSessionCreate(ctx, ev.LoginType, ev.SessionID)
	case EventSessionDestroy:
		l.OnSessionDestroy(ctx, ev.LoginType, ev.SessionID)
	}
}

// safeDeliver delivers ev and turns a listener panic into a log line.
func safeDeliver(ctx context.Context, l Listener, ev Event, logger zerolog.Logger, metrics *Metrics) {
	if l == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.Inc(MetricListenerPanic)
			logger.Error().
				Str("event", ev.Type.String()).
				Str("login_type", ev.LoginType).
				Interface("panic", r).
				Msg("listener panicked")
		}
	}()
	Deliver(ctx, l, ev)
}

/*
====================================
BUILT-IN LISTENERS
====================================
*/

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) OnLogin(context.Context, string, string, string, LoginParams) {}
func (NopListener) OnLogout(context.Context, string, string, string) {}
func (NopListener) OnKickedOut(context.Context, string, string, string) {}
func (NopListener) OnReplaced(context.Context, string, string, string, string) {}
func (NopListener) OnDisable(context.Context, string, string, string, int64) {}
func (NopListener) OnUntieDisable(context.Context, string, string, string) {}
func (NopListener) OnSessionCreate(context.Context, string, string) {}
func (NopListener) OnSessionDestroy(context.Context, string, string) {}

// LogListener writes one info line per event. It is the default listener
// and stays silent unless the registry logger is enabled (Config.IsLog).
type LogListener struct {
	Logger zerolog.Logger
}

func (l LogListener) OnLogin(_ context.Context, loginType, loginID, token string, params LoginParams) {
	l.Logger.Info().
		Str("login_type", loginType).
		Str("login_id", loginID).
		Str("token", token).
		Str("device", params.Device).
		Int64("timeout", params.Timeout).
		Msg("login")
}

func (l LogListener) OnLogout(_ context.Context, loginType, loginID, token string) {
	l.Logger.Info().Str("login_type", loginType).Str("login_id", loginID).Str("token", token).Msg("logout")
}

func (l LogListener) OnKickedOut(_ context.Context, loginType, loginID, token string) {
	l.Logger.Info().Str("login_type", loginType).Str("login_id", loginID).Str("token", token).Msg("kicked out")
}

func (l LogListener) OnReplaced(_ context.Context, loginType, loginID, device, token string) {
	l.Logger.Info().
		Str("login_type", loginType).
		Str("login_id", loginID).
		Str("device", device).
		Str("token", token).
		Msg("replaced")
}

func (l LogListener) OnDisable(_ context.Context, loginType, loginID, realm string, timeout int64) {
	l.Logger.Info().
		Str("login_type", loginType).
		Str("login_id", loginID).
		Str("realm", realm).
		Int64("timeout", timeout).
		Msg("account disabled")
}

func (l LogListener) OnUntieDisable(_ context.Context, loginType, loginID, realm string) {
	l.Logger.Info().Str("login_type", loginType).Str("login_id", loginID).Str("realm", realm).Msg("account ban lifted")
}

func (l LogListener) OnSessionCreate(_ context.Context, loginType, sessionID string) {
	l.Logger.Info().Str("login_type", loginType).Str("session_id", sessionID).Msg("session created")
}

func (l LogListener) OnSessionDestroy(_ context.Context, loginType, sessionID string) {
	l.Logger.Info().Str("login_type", loginType).Str("session_id", sessionID).Msg("session destroyed")
}

type multiListener []Listener

// Listeners fans every event out to ls in order. nil entries are skipped.
func Listeners(ls ...Listener) Listener {
	out := make(multiListener, 0, len(ls))
	for _, l := range ls {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (m multiListener) each(fn func(Listener)) {
	for _, l := range m {
		fn(l)
	}
}

func (m multiListener) OnLogin(ctx context.Context, loginType, loginID, token string, params LoginParams) {
	m.each(func(l Listener) { l.OnLogin(ctx, loginType, loginID, token, params) })
}

func (m multiListener) OnLogout(ctx context.Context, loginType, loginID, token string) {
	m.each(func(l Listener) { l.OnLogout(ctx, loginType, loginID, token) })
}

func (m multiListener) OnKickedOut(ctx context.Context, loginType, loginID, token string) {
	m.each(func(l Listener) { l.OnKickedOut(ctx, loginType, loginID, token) })
}

func (m multiListener) OnReplaced(ctx context.Context, loginType, loginID, device, token string) {
	m.each(func(l Listener) { l.OnReplaced(ctx, loginType, loginID, device, token) })
}

func (m multiListener) OnDisable(ctx context.Context, loginType, loginID, realm string, timeout int64) {
	m.each(func(l Listener) { l.OnDisable(ctx, loginType, loginID, realm, timeout) })
}

func (m multiListener) OnUntieDisable(ctx context.Context, loginType, loginID, realm string) {
	m.each(func(l Listener) { l.OnUntieDisable(ctx, loginType, loginID, realm) })
}

func (m multiListener) OnSessionCreate(ctx context.Context, loginType, sessionID string) {
	m.each(func(l Listener) { l.OnSessionCreate(ctx, loginType, sessionID) })
}

func (m multiListener) OnSessionDestroy(ctx context.Context, loginType, sessionID string) {
	m.each(func(l Listener) { l.OnSessionDestroy(ctx, loginType, sessionID) })
}
