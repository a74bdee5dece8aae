// Package token mints opaque bearer token values.
//
// A Generator only guarantees the format of a value and overwhelming
// uniqueness. Detecting a collision with a token that is still indexed live
// is the caller's job.
package token

import (
	"strings"

	"github.com/MrEthical07/goToken/internal"
	"github.com/google/uuid"
)

// Style selects the token format.
type Style string

const (
	// StyleUUID is a hyphenated random UUID, e.g. 623368f0-ae5e-4475-a53f-93e4225f16ae.
	StyleUUID Style = "uuid"
	// StyleSimpleUUID is a random UUID without hyphens.
	StyleSimpleUUID Style = "simple-uuid"
	// StyleRandom32 is 32 random alphanumerics.
	StyleRandom32 Style = "random-32"
	// StyleRandom64 is 64 random alphanumerics.
	StyleRandom64 Style = "random-64"
	// StyleRandom128 is 128 random alphanumerics.
	StyleRandom128 Style = "random-128"
	// StyleTik is the fixed three part layout "2_14_16__", e.g.
	// gr_SwoIN0MC1ewxHX_vfCW3BothWDZMMtP__.
	StyleTik Style = "tik"
)

// Valid reports whether s is a recognized style.
func (s Style) Valid() bool {
	switch s {
	case StyleUUID, StyleSimpleUUID, StyleRandom32, StyleRandom64, StyleRandom128, StyleTik:
		return true
	}
	return false
}

// Generator produces a fresh token value for an account of a login type.
type Generator interface {
	Create(loginID, loginType string) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(loginID, loginType string) (string, error)

// Create implements Generator.
func (f GeneratorFunc) Create(loginID, loginType string) (string, error) {
	return f(loginID, loginType)
}

// NewGenerator returns the generator for style. Unknown styles fall back to
// StyleUUID.
func NewGenerator(style Style) Generator {
	switch style {
	case StyleSimpleUUID:
		return GeneratorFunc(simpleUUID)
	case StyleRandom32:
		return randomN(32)
	case StyleRandom64:
		return randomN(64)
	case StyleRandom128:
		return randomN(128)
	case StyleTik:
		return GeneratorFunc(tik)
	default:
		return GeneratorFunc(hyphenatedUUID)
	}
}

func hyphenatedUUID(string, string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func simpleUUID(loginID, loginType string) (string, error) {
	v, err := hyphenatedUUID(loginID, loginType)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(v, "-", ""), nil
}

func randomN(n int) Generator {
	return GeneratorFunc(func(string, string) (string, error) {
		return internal.RandomString(n)
	})
}

func tik(string, string) (string, error) {
	raw, err := internal.RandomString(2 + 14 + 16)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(36)
	b.WriteString(raw[:2])
	b.WriteByte('_')
	b.WriteString(raw[2:16])
	b.WriteByte('_')
	b.WriteString(raw[16:])
	b.WriteString("__")
	return b.String(), nil
}
