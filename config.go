package goToken

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goToken/store"
	"github.com/MrEthical07/goToken/token"
	validation "github.com/go-ozzo/ozzo-validation"
)

// Config is the immutable configuration of one login type. Build it from
// DefaultConfig, edit fields, and hand it to a Builder or Registry.Register.
// The value is cloned on entry; later edits to the caller's copy have no effect.
//
// Durations are whole seconds. -1 means "never" for Timeout and "disabled"
// for ActivityTimeout and DataRefreshPeriod.
type Config struct {
	// TokenName is the header, cookie and form field the token is read from.
	TokenName string
	// Timeout is the absolute token lifetime.
	Timeout int64
	// ActivityTimeout is the idle limit between two requests of a token.
	ActivityTimeout int64
	// AllowConcurrentLogin keeps earlier tokens of an account alive on login.
	AllowConcurrentLogin bool
	// IsShare reuses a live token of the same account and device on login.
	// Only effective with AllowConcurrentLogin.
	IsShare bool

	IsReadBody   bool
	IsReadHeader bool
	IsReadCookie bool

	// TokenStyle selects the token format. Unknown styles degrade to uuid.
	TokenStyle token.Style
	// DataRefreshPeriod is the sweep interval of the default memory store.
	DataRefreshPeriod int64
	// AutoRenew refreshes activity and token TTLs while a token is in use.
	AutoRenew bool
	// CookieDomain is written into the token cookie when set.
	CookieDomain string
	// TokenPrefix, when set, must precede the token in the header ("Bearer").
	TokenPrefix string
	// TokenSessionCheckLogin makes TokenSession require a live login. When
	// false a token session can be read or created for any token value.
	TokenSessionCheckLogin bool
	// IsLog enables the console logger and the logging listener.
	IsLog bool
	// IsPrint logs a configuration summary when an engine is created.
	IsPrint bool

	// RenewDebounce is the minimum gap between two absolute-TTL renewals
	// triggered by request activity.
	RenewDebounce int64
	// ReasonMarkerTimeout bounds how long a kicked, replaced or timed-out
	// token keeps reporting why it ended.
	ReasonMarkerTimeout int64

	Cookie    CookieConfig
	TempToken TempTokenConfig
	Listener  ListenerConfig
	Metrics   MetricsConfig
}

/*
====================================
NESTED CONFIG
====================================
*/

// CookieConfig holds the attributes of the token cookie.
type CookieConfig struct {
	Path     string
	Secure   bool
	HttpOnly bool
	// SameSite is "", "Strict", "Lax" or "None".
	SameSite string
}

// Validate implements validation.Validatable.
func (c CookieConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SameSite, validation.In("Strict", "Lax", "None")),
	)
}

// TempTokenConfig configures the temp token manager owned by a Registry.
type TempTokenConfig struct {
	Namespace string
	Secret    []byte
}

// ListenerConfig controls asynchronous event delivery.
type ListenerConfig struct {
	// Async delivers events from a background goroutine instead of inline.
	Async      bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is full.
	DropIfFull bool
}

// Validate implements validation.Validatable.
func (c ListenerConfig) Validate() error {
	if !c.Async {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.BufferSize, validation.Required, validation.Min(1)),
	)
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration every login type starts from.
func DefaultConfig() Config {
	return Config{
		TokenName:            "satoken",
		Timeout:              30 * 24 * 60 * 60,
		ActivityTimeout:      -1,
		AllowConcurrentLogin: true,
		IsShare:              true,
		IsReadBody:           true,
		IsReadHeader:         true,
		IsReadCookie:         true,
		TokenStyle:           token.StyleUUID,
		DataRefreshPeriod:    30,
		AutoRenew:            true,
		IsPrint:              true,

		TokenSessionCheckLogin: true,
		RenewDebounce:        60,
		ReasonMarkerTimeout:  24 * 60 * 60,
		Cookie: CookieConfig{
			Path:     "/",
			HttpOnly: true,
			SameSite: "Lax",
		},
		TempToken: TempTokenConfig{
			Namespace: "satemp",
		},
		Listener: ListenerConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.TempToken.Secret) > 0 {
		out.TempToken.Secret = append([]byte(nil), cfg.TempToken.Secret...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

func seconds(value interface{}) error {
	v, _ := value.(int64)
	if v == 0 || v < store.NeverExpire {
		return errors.New("must be positive or -1")
	}
	return nil
}

func tokenName(value interface{}) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, " \t\r\n;=,") {
		return errors.New("must not contain whitespace or separators")
	}
	return nil
}

// Validate checks the configuration once, before any engine uses it. The
// returned error wraps ErrInvalidConfiguration.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.TokenName, validation.Required, validation.By(tokenName)),
		validation.Field(&c.Timeout, validation.By(seconds)),
		validation.Field(&c.ActivityTimeout, validation.By(seconds)),
		validation.Field(&c.DataRefreshPeriod, validation.By(seconds)),
		validation.Field(&c.RenewDebounce, validation.Min(int64(0))),
		validation.Field(&c.ReasonMarkerTimeout, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.Cookie),
		validation.Field(&c.Listener),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a configuration smell that is legal but probably unintended.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

// Lint reports legal but contradictory settings. Engines log these at
// construction; they never block startup.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	if c.ActivityTimeout > 0 && c.Timeout > 0 && c.ActivityTimeout > c.Timeout {
		ws = append(ws, LintWarning{
			Code:    "activity_timeout_exceeds_timeout",
			Message: "ActivityTimeout is greater than Timeout, the idle check can never fire before absolute expiry",
		})
	}
	if c.ActivityTimeout > 0 && !c.AutoRenew {
		ws = append(ws, LintWarning{
			Code:    "activity_timeout_without_auto_renew",
			Message: "ActivityTimeout without AutoRenew expires every token ActivityTimeout seconds after login",
		})
	}
	if c.IsShare && !c.AllowConcurrentLogin {
		ws = append(ws, LintWarning{
			Code:    "share_without_concurrent_login",
			Message: "IsShare has no effect when AllowConcurrentLogin is false",
		})
	}
	if !c.IsReadBody && !c.IsReadHeader && !c.IsReadCookie {
		ws = append(ws, LintWarning{
			Code:    "no_token_source",
			Message: "token extraction is disabled for body, header and cookie",
		})
	}
	if !c.TokenStyle.Valid() {
		ws = append(ws, LintWarning{
			Code:    "unknown_token_style",
			Message: fmt.Sprintf("token style %q is unknown, falling back to uuid", c.TokenStyle),
		})
	}
	if len(c.TempToken.Secret) == 0 {
		ws = append(ws, LintWarning{
			Code:    "temp_token_secret_missing",
			Message: "temp tokens are signed with a random per-process key",
		})
	}
	return ws
}
