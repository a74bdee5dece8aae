package goToken

import (
	"errors"
	"testing"

	"github.com/MrEthical07/goToken/store"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "permanent timeout valid",
			mutate: func(c *Config) {
				c.Timeout = store.NeverExpire
			},
			wantValid: true,
		},
		{
			name: "zero timeout invalid",
			mutate: func(c *Config) {
				c.Timeout = 0
			},
			wantValid: false,
		},
		{
			name: "negative timeout invalid",
			mutate: func(c *Config) {
				c.Timeout = -5
			},
			wantValid: false,
		},
		{
			name: "activity timeout valid",
			mutate: func(c *Config) {
				c.ActivityTimeout = 1800
			},
			wantValid: true,
		},
		{
			name: "activity timeout zero invalid",
			mutate: func(c *Config) {
				c.ActivityTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "token name required",
			mutate: func(c *Config) {
				c.TokenName = ""
			},
			wantValid: false,
		},
		{
			name: "token name with separator invalid",
			mutate: func(c *Config) {
				c.TokenName = "sa;token"
			},
			wantValid: false,
		},
		{
			name: "token name with space invalid",
			mutate: func(c *Config) {
				c.TokenName = "sa token"
			},
			wantValid: false,
		},
		{
			name: "sweep disabled valid",
			mutate: func(c *Config) {
				c.DataRefreshPeriod = store.NeverExpire
			},
			wantValid: true,
		},
		{
			name: "renew debounce negative invalid",
			mutate: func(c *Config) {
				c.RenewDebounce = -1
			},
			wantValid: false,
		},
		{
			name: "reason marker timeout required",
			mutate: func(c *Config) {
				c.ReasonMarkerTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "cookie same site valid",
			mutate: func(c *Config) {
				c.Cookie.SameSite = "None"
			},
			wantValid: true,
		},
		{
			name: "cookie same site invalid",
			mutate: func(c *Config) {
				c.Cookie.SameSite = "Loose"
			},
			wantValid: false,
		},
		{
			name: "async listener buffer invalid",
			mutate: func(c *Config) {
				c.Listener.Async = true
				c.Listener.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "sync listener ignores buffer",
			mutate: func(c *Config) {
				c.Listener.BufferSize = 0
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid {
				if err == nil {
					t.Fatal("expected invalid config, got nil")
				}
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
				}
			}
		})
	}
}

func TestCloneConfigCopiesSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempToken.Secret = []byte("secret")

	clone := cloneConfig(cfg)
	clone.TempToken.Secret[0] = 'X'

	if string(cfg.TempToken.Secret) != "secret" {
		t.Fatalf("clone shares the secret slice: %q", cfg.TempToken.Secret)
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	if _, err := NewEngine(DefaultLoginType, cfg, NewRegistry()); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}
