package goToken

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/goToken/permission"
	"github.com/MrEthical07/goToken/session"
	"github.com/MrEthical07/goToken/store"
	"github.com/MrEthical07/goToken/token"
	"github.com/rs/zerolog"
)

// DefaultLoginType is the login type used when none is named.
const DefaultLoginType = "login"

// Reason markers replace the login id in the token index when a token ends
// for a reason a later check must be able to report.
const (
	markerTokenTimeout = "-3"
	markerBeReplaced   = "-4"
	markerBeKickedOut  = "-5"
)

// maxTokenLength bounds accepted token values; longer input is malformed.
const maxTokenLength = 256

// Components is what an Engine needs from its surroundings. A Registry
// implements it; tests may substitute a fake. Getters are called on every
// operation, so a replaced store takes effect immediately.
type Components interface {
	Store() store.Store
	AuthProvider() permission.Provider
	Listener() Listener
	Logger() zerolog.Logger
	Metrics() *Metrics
}

// Engine is the login-state authority of one login type. All methods are
// safe for concurrent use; coordination across requests and processes is
// expressed purely as store operations.
type Engine struct {
	loginType string
	config    Config
	deps      Components
	generator token.Generator
	rule      permission.Rule
	now       func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithTokenGenerator replaces the generator derived from Config.TokenStyle.
func WithTokenGenerator(g token.Generator) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.generator = g
		}
	}
}

// WithMatchRule replaces permission.DefaultRule for permission and role checks.
func WithMatchRule(r permission.Rule) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.rule = r
		}
	}
}

// WithEngineClock overrides the engine time source.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine validates cfg and creates the engine for loginType.
func NewEngine(loginType string, cfg Config, deps Components, opts ...EngineOption) (*Engine, error) {
	if loginType == "" {
		loginType = DefaultLoginType
	}
	cfg = cloneConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		loginType: loginType,
		config:    cfg,
		deps:      deps,
		generator: token.NewGenerator(cfg.TokenStyle),
		rule:      permission.DefaultRule,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	logger := deps.Logger()
	for _, w := range cfg.Lint() {
		logger.Warn().Str("login_type", loginType).Str("code", w.Code).Msg(w.Message)
	}
	if cfg.IsPrint {
		logger.Info().
			Str("login_type", loginType).
			Str("token_name", cfg.TokenName).
			Int64("timeout", cfg.Timeout).
			Int64("activity_timeout", cfg.ActivityTimeout).
			Bool("concurrent", cfg.AllowConcurrentLogin).
			Bool("share", cfg.IsShare).
			Str("token_style", string(cfg.TokenStyle)).
			Msg("login engine ready")
	}
	return e, nil
}

// LoginType returns the namespace this engine serves.
func (e *Engine) LoginType() string { return e.loginType }

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config { return cloneConfig(e.config) }

// MetricsSnapshot returns the counters of the engine's registry.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.deps.Metrics().Snapshot()
}

// ListenerDropped returns the events an asynchronous listener dropped on a
// full queue. It is 0 for synchronous listeners.
func (e *Engine) ListenerDropped() uint64 {
	if a, ok := e.deps.Listener().(*AsyncListener); ok {
		return a.Dropped()
	}
	return 0
}

/*
====================================
KEYS
====================================
*/

func (e *Engine) tokenKey(tok string) string       { return e.loginType + ":token:" + tok }
func (e *Engine) sessionKey(id string) string       { return e.loginType + ":session:" + id }
func (e *Engine) tokenSessionKey(tok string) string { return e.loginType + ":token-session:" + tok }
func (e *Engine) activityKey(tok string) string     { return e.loginType + ":last-activity:" + tok }

func (e *Engine) disableKey(id, realm string) string {
	k := e.loginType + ":disable:" + id
	if realm != "" {
		k += ":" + realm
	}
	return k
}

func (e *Engine) safeKey(tok, realm string) string {
	k := e.loginType + ":safe:" + tok
	if realm != "" {
		k += ":" + realm
	}
	return k
}

/*
====================================
HELPERS
====================================
*/

func (e *Engine) store() store.Store { return e.deps.Store() }

func (e *Engine) sessions() *session.Manager {
	return session.NewManager(e.deps.Store(), engineObserver{e})
}

func (e *Engine) metricInc(id MetricID) {
	e.deps.Metrics().Inc(id)
}

// storeErr counts err when it is a store failure and returns it unchanged.
func (e *Engine) storeErr(err error) error {
	if err != nil {
		e.metricInc(MetricStoreError)
	}
	return err
}

// logBestEffort logs a failure on a path whose outcome is already decided.
func (e *Engine) logBestEffort(err error, msg string) {
	if err == nil {
		return
	}
	e.metricInc(MetricStoreError)
	logger := e.deps.Logger()
	logger.Warn().Err(err).Str("login_type", e.loginType).Msg(msg)
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	ev.LoginType = e.loginType
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	safeDeliver(ctx, e.deps.Listener(), ev, e.deps.Logger(), e.deps.Metrics())
}

func (e *Engine) notLogin(tok string, reason error) *NotLoginError {
	return &NotLoginError{LoginType: e.loginType, Reason: reason, Token: tok}
}

func isMarker(v string) bool {
	return v == markerTokenTimeout || v == markerBeReplaced || v == markerBeKickedOut
}

func markerReason(v string) error {
	switch v {
	case markerTokenTimeout:
		return ErrTokenTimeout
	case markerBeReplaced:
		return ErrBeReplaced
	case markerBeKickedOut:
		return ErrBeKickedOut
	}
	return ErrNotLoginToken
}

func validLoginID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidLoginID
	}
	switch id {
	case "-1", "-2", markerTokenTimeout, markerBeReplaced, markerBeKickedOut:
		return ErrInvalidLoginID
	}
	return nil
}

// wellFormed reports whether tok could have been issued by any generator.
func wellFormed(tok string) bool {
	if len(tok) > maxTokenLength {
		return false
	}
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == '~', c == '+', c == '/', c == '=':
		default:
			return false
		}
	}
	return true
}

type engineObserver struct{ e *Engine }

func (o engineObserver) OnSessionCreate(ctx context.Context, id string) {
	o.e.metricInc(MetricSessionCreated)
	o.e.emit(ctx, Event{Type: EventSessionCreate, SessionID: id})
}

func (o engineObserver) OnSessionDestroy(ctx context.Context, id string) {
	o.e.metricInc(MetricSessionDestroyed)
	o.e.emit(ctx, Event{Type: EventSessionDestroy, SessionID: id})
}
