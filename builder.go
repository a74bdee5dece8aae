package goToken

import (
	"errors"
	"time"

	"github.com/MrEthical07/goToken/permission"
	"github.com/MrEthical07/goToken/store"
	"github.com/MrEthical07/goToken/token"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles a fully wired Registry.
//
// Builder instances are intended to be configured during initialization and then discarded after Build.
type Builder struct {
	config Config

	redis       redis.UniversalClient
	redisPrefix string
	store       store.Store

	provider    permission.Provider
	roles       map[string][]string
	assignments []roleAssignment

	listener  Listener
	logger    *zerolog.Logger
	rule      permission.Rule
	generator EngineOption
	now       func() time.Time

	loginTypes map[string]Config

	built bool
}

type roleAssignment struct {
	loginType string
	loginID   string
	roles     []string
}

// New starts a Builder from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig replaces the configuration of the default login type. The value is cloned.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis stores all login state in Redis under prefix. WithStore takes precedence.
func (b *Builder) WithRedis(client redis.UniversalClient, prefix string) *Builder {
	b.redis = client
	b.redisPrefix = prefix
	return b
}

// WithStore describes the withstore operation and its observable behavior.
//
// WithStore installs a custom store.Store implementation.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithAuthProvider describes the withauthprovider operation and its observable behavior.
//
// WithAuthProvider installs the application's permission and role source.
func (b *Builder) WithAuthProvider(p permission.Provider) *Builder {
	b.provider = p
	return b
}

// WithRoles describes the withroles operation and its observable behavior.
//
// WithRoles defines static roles served by an in-memory permission.RoleManager.
// It cannot be combined with WithAuthProvider.
func (b *Builder) WithRoles(roles map[string][]string) *Builder {
	b.roles = roles
	return b
}

// WithRoleAssignment grants roles defined through WithRoles to one account.
func (b *Builder) WithRoleAssignment(loginType, loginID string, roles ...string) *Builder {
	b.assignments = append(b.assignments, roleAssignment{
		loginType: loginType,
		loginID:   loginID,
		roles:     roles,
	})
	return b
}

// WithListener describes the withlistener operation and its observable behavior.
//
// WithListener receives lifecycle events. With Config.Listener.Async it is
// wrapped in an AsyncListener owned by the registry.
func (b *Builder) WithListener(l Listener) *Builder {
	b.listener = l
	return b
}

// WithLogger sets the registry logger.
func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = &l
	return b
}

// WithLoginType registers an additional login type with its own configuration.
func (b *Builder) WithLoginType(loginType string, cfg Config) *Builder {
	if b.loginTypes == nil {
		b.loginTypes = make(map[string]Config)
	}
	b.loginTypes[loginType] = cloneConfig(cfg)
	return b
}

// WithMatchRule sets the permission and role matching rule of every engine.
func (b *Builder) WithMatchRule(rule permission.Rule) *Builder {
	b.rule = rule
	return b
}

// WithTokenGenerator replaces the style-derived generator of every engine.
func (b *Builder) WithTokenGenerator(g token.Generator) *Builder {
	b.generator = WithTokenGenerator(g)
	return b
}

// WithClock overrides the time source of the registry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled toggles the in-process counters exposed by MetricsSnapshot.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms records CheckLogin latency. It requires metrics to be enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when configuration validation or role wiring fails.
// The default login type engine and every WithLoginType engine are created eagerly.
func (b *Builder) Build() (*Registry, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.provider != nil && len(b.roles) > 0 {
		return nil, errors.New("WithRoles and WithAuthProvider are mutually exclusive")
	}
	if len(b.assignments) > 0 && len(b.roles) == 0 {
		return nil, errors.New("role assignments require WithRoles")
	}

	var opts []RegistryOption
	if b.logger != nil {
		opts = append(opts, WithLogger(*b.logger))
	}
	if b.now != nil {
		opts = append(opts, WithClock(b.now))
	}
	if b.rule != nil {
		opts = append(opts, WithEngineOptions(WithMatchRule(b.rule)))
	}
	if b.generator != nil {
		opts = append(opts, WithEngineOptions(b.generator))
	}
	r := NewRegistry(opts...)
	if err := r.SetConfig(cfg); err != nil {
		return nil, err
	}

	// -------- STORE --------
	switch {
	case b.store != nil:
		r.store.set(b.store)
	case b.redis != nil:
		r.store.set(store.NewRedis(b.redis, b.redisPrefix))
	}

	// -------- AUTHORIZATION --------
	if b.provider != nil {
		r.SetAuthProvider(b.provider)
	}
	if len(b.roles) > 0 {
		rm := permission.NewRoleManager()
		for role, perms := range b.roles {
			if err := rm.RegisterRole(role, perms); err != nil {
				return nil, err
			}
		}
		for _, a := range b.assignments {
			if err := rm.Assign(a.loginType, a.loginID, a.roles...); err != nil {
				return nil, err
			}
		}
		rm.Freeze()
		r.SetAuthProvider(rm)
	}

	// -------- LISTENER --------
	if b.listener != nil {
		if cfg.Listener.Async {
			r.adoptListener(NewAsyncListener(b.listener, cfg.Listener, r.Logger(), r.Metrics()))
		} else {
			r.listener.set(b.listener)
		}
	}

	// -------- ENGINES --------
	if _, err := r.Register(DefaultLoginType, cfg); err != nil {
		_ = r.Close()
		return nil, err
	}
	for lt, ltCfg := range b.loginTypes {
		if _, err := r.Register(lt, ltCfg); err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	return r, nil
}
