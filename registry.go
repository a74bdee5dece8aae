package goToken

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goToken/permission"
	"github.com/MrEthical07/goToken/store"
	"github.com/MrEthical07/goToken/temp"
	"github.com/rs/zerolog"
)

// lazy holds a value that is constructed at most once on first read unless
// it was set explicitly before.
type lazy[T any] struct {
	p atomic.Pointer[T]
}

func (l *lazy[T]) load() (T, bool) {
	if p := l.p.Load(); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

func (l *lazy[T]) set(v T) { l.p.Store(&v) }

func (l *lazy[T]) reset() { l.p.Store(nil) }

// get returns the held value or builds it under mu. Steady-state reads never
// take the lock. build runs with mu held and must not call other getters.
func (l *lazy[T]) get(mu *sync.Mutex, build func() (T, error)) (T, error) {
	if v, ok := l.load(); ok {
		return v, nil
	}
	mu.Lock()
	defer mu.Unlock()
	if v, ok := l.load(); ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		return v, err
	}
	l.set(v)
	return v, nil
}

// Registry wires the shared components of every login type: store,
// authorization provider, listener, temp tokens and the engines themselves.
// Getters construct defaults on first use; explicit setters always win.
// A Registry implements Components for the engines it creates.
type Registry struct {
	mu     sync.Mutex
	closed atomic.Bool

	config   lazy[Config]
	logger   lazy[zerolog.Logger]
	metrics  lazy[*Metrics]
	store    lazy[store.Store]
	provider lazy[permission.Provider]
	listener lazy[Listener]
	temp     lazy[*temp.Manager]
	engines  atomic.Pointer[map[string]*Engine]

	// defaults the registry constructed and therefore releases
	ownedStore    io.Closer
	ownedListener *AsyncListener
	lazyDefault   bool

	now        func() time.Time
	engineOpts []EngineOption
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger instead of deriving one from Config.IsLog.
func WithLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.logger.set(l) }
}

// WithClock sets the time source of the default store, temp tokens and engines.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithEngineOptions applies opts to every engine the registry creates.
func WithEngineOptions(opts ...EngineOption) RegistryOption {
	return func(r *Registry) { r.engineOpts = append(r.engineOpts, opts...) }
}

// NewRegistry creates an empty registry. Nothing is constructed until used.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{now: time.Now}
	empty := map[string]*Engine{}
	r.engines.Store(&empty)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

/*
====================================
CONFIG
====================================
*/

// Config returns the configuration of the default login type.
func (r *Registry) Config() Config {
	cfg, _ := r.config.get(&r.mu, func() (Config, error) {
		return DefaultConfig(), nil
	})
	return cloneConfig(cfg)
}

// SetConfig validates and installs cfg. Components that were already
// constructed keep their settings, except a lazily created default engine,
// which is rebuilt on next use.
func (r *Registry) SetConfig(cfg Config) error {
	cfg = cloneConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.set(cfg)
	if r.lazyDefault {
		r.putEngineLocked(DefaultLoginType, nil)
		r.lazyDefault = false
	}
	return nil
}

/*
====================================
COMPONENTS
====================================
*/

// Logger returns the registry logger. Without WithLogger it writes to
// stderr when Config.IsLog is set and is disabled otherwise.
func (r *Registry) Logger() zerolog.Logger {
	cfg := r.Config()
	l, _ := r.logger.get(&r.mu, func() (zerolog.Logger, error) {
		if !cfg.IsLog {
			return zerolog.Nop(), nil
		}
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().
			Timestamp().
			Str("component", "gotoken").
			Logger(), nil
	})
	return l
}

// Metrics returns the counters shared by all engines of the registry.
func (r *Registry) Metrics() *Metrics {
	cfg := r.Config()
	m, _ := r.metrics.get(&r.mu, func() (*Metrics, error) {
		return NewMetrics(cfg.Metrics), nil
	})
	return m
}

// Store returns the store, creating an in-memory one on first use whose
// sweep interval is Config.DataRefreshPeriod.
func (r *Registry) Store() store.Store {
	cfg := r.Config()
	s, _ := r.store.get(&r.mu, func() (store.Store, error) {
		m := store.NewMemory(
			store.WithSweepInterval(cfg.DataRefreshPeriod),
			store.WithClock(r.now),
		)
		r.ownedStore = m
		return m, nil
	})
	return s
}

// SetStore replaces the store. A default store created by the registry is
// closed, stopping its background sweep. The temp token manager is rebuilt
// over the new store on next use.
func (r *Registry) SetStore(s store.Store) error {
	if s == nil {
		return errors.New("gotoken: nil store")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.ownedStore != nil {
		err = r.ownedStore.Close()
		r.ownedStore = nil
	}
	r.store.set(s)
	r.temp.reset()
	return err
}

// AuthProvider returns the authorization provider. The default grants nothing.
func (r *Registry) AuthProvider() permission.Provider {
	p, _ := r.provider.get(&r.mu, func() (permission.Provider, error) {
		return permission.Empty{}, nil
	})
	return p
}

// SetAuthProvider replaces the authorization provider.
func (r *Registry) SetAuthProvider(p permission.Provider) {
	if p == nil {
		p = permission.Empty{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provider.set(p)
}

// Listener returns the event listener. The default is a LogListener over the
// registry logger, delivered from a background goroutine when
// Config.Listener.Async is set.
func (r *Registry) Listener() Listener {
	cfg := r.Config()
	logger := r.Logger()
	metrics := r.Metrics()
	l, _ := r.listener.get(&r.mu, func() (Listener, error) {
		var l Listener = NopListener{}
		if cfg.IsLog {
			l = LogListener{Logger: logger}
		}
		if cfg.Listener.Async {
			a := NewAsyncListener(l, cfg.Listener, logger, metrics)
			r.ownedListener = a
			return a, nil
		}
		return l, nil
	})
	return l
}

// SetListener replaces the listener. A default async listener is drained
// and stopped first.
func (r *Registry) SetListener(l Listener) error {
	if l == nil {
		l = NopListener{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.ownedListener != nil {
		err = r.ownedListener.Close()
		r.ownedListener = nil
	}
	r.listener.set(l)
	return err
}

// adoptListener installs a listener the registry must close.
func (r *Registry) adoptListener(a *AsyncListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ownedListener = a
	r.listener.set(a)
}

// TempTokens returns the temp token manager over the current store.
func (r *Registry) TempTokens() (*temp.Manager, error) {
	cfg := r.Config()
	st := r.Store()
	logger := r.Logger()
	return r.temp.get(&r.mu, func() (*temp.Manager, error) {
		return temp.NewManager(st, temp.Config{
			Namespace: cfg.TempToken.Namespace,
			Secret:    cfg.TempToken.Secret,
			Logger:    logger,
		}, temp.WithClock(r.now))
	})
}

/*
====================================
ENGINES
====================================
*/

// Engine returns the engine of loginType. The DefaultLoginType engine is
// created from Config on first use; any other type must be registered.
func (r *Registry) Engine(loginType string) (*Engine, error) {
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}
	if loginType == "" {
		loginType = DefaultLoginType
	}
	if e := (*r.engines.Load())[loginType]; e != nil {
		return e, nil
	}
	if loginType != DefaultLoginType {
		return nil, &NoSuchLoginTypeError{LoginType: loginType}
	}

	cfg := r.Config()
	r.Logger()

	r.mu.Lock()
	defer r.mu.Unlock()
	if e := (*r.engines.Load())[loginType]; e != nil {
		return e, nil
	}
	e, err := NewEngine(loginType, cfg, r, r.engineOptions()...)
	if err != nil {
		return nil, err
	}
	r.putEngineLocked(loginType, e)
	r.lazyDefault = true
	return e, nil
}

// MustEngine is Engine for callers that registered loginType at startup.
func (r *Registry) MustEngine(loginType string) *Engine {
	e, err := r.Engine(loginType)
	if err != nil {
		panic(err)
	}
	return e
}

// Register creates the engine of loginType with its own cfg and replaces any
// engine registered under that name.
func (r *Registry) Register(loginType string, cfg Config) (*Engine, error) {
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}
	if loginType == "" {
		loginType = DefaultLoginType
	}
	r.Logger()
	e, err := NewEngine(loginType, cfg, r, r.engineOptions()...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.putEngineLocked(loginType, e)
	if loginType == DefaultLoginType {
		r.lazyDefault = false
	}
	return e, nil
}

// LoginTypes lists the engines created so far.
func (r *Registry) LoginTypes() []string {
	m := *r.engines.Load()
	out := make([]string, 0, len(m))
	for lt := range m {
		out = append(out, lt)
	}
	return out
}

func (r *Registry) engineOptions() []EngineOption {
	opts := make([]EngineOption, 0, len(r.engineOpts)+1)
	opts = append(opts, WithEngineClock(r.now))
	return append(opts, r.engineOpts...)
}

// putEngineLocked installs e (or removes loginType when e is nil) with a
// copy-on-write swap so readers never lock.
func (r *Registry) putEngineLocked(loginType string, e *Engine) {
	old := *r.engines.Load()
	next := make(map[string]*Engine, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	if e == nil {
		delete(next, loginType)
	} else {
		next[loginType] = e
	}
	r.engines.Store(&next)
}

// Close releases what the registry constructed: the default store's sweep
// and the default async listener. Engine lookups fail afterwards.
func (r *Registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.ownedListener != nil {
		errs = append(errs, r.ownedListener.Close())
		r.ownedListener = nil
	}
	if r.ownedStore != nil {
		errs = append(errs, r.ownedStore.Close())
		r.ownedStore = nil
	}
	return errors.Join(errs...)
}
