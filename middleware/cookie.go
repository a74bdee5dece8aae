package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	// ErrCookieName is returned for a cookie without a name.
	ErrCookieName = errors.New("cookie name required")
	// ErrCookieValue is returned for a cookie value containing ';'.
	ErrCookieValue = errors.New("cookie value must not contain ';'")
)

// Cookie is a Set-Cookie header in the making.
type Cookie struct {
	Name  string
	Value string
	// MaxAge in seconds. Negative omits Max-Age and Expires (session cookie);
	// 0 expires the cookie immediately.
	MaxAge   int64
	Domain   string
	Path     string
	Secure   bool
	HttpOnly bool
	SameSite string
}

// Validate implements validation.Validatable.
func (c Cookie) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required.Error(ErrCookieName.Error())),
		validation.Field(&c.Value, validation.By(func(v interface{}) error {
			if s, _ := v.(string); strings.Contains(s, ";") {
				return ErrCookieValue
			}
			return nil
		})),
		validation.Field(&c.SameSite, validation.In("Strict", "Lax", "None")),
	)
}

// HeaderValue renders the cookie as a Set-Cookie header value, e.g.
//
//	satoken=abc; Max-Age=3600; Expires=Mon, 02 Jan 2006 16:04:05 GMT; Path=/; HttpOnly; SameSite=Lax
//
// Expires is computed from now; a zero MaxAge yields the Unix epoch. Path
// defaults to "/".
func (c Cookie) HeaderValue(now time.Time) (string, error) {
	if c.Name == "" {
		return "", ErrCookieName
	}
	if err := c.Validate(); err != nil {
		if strings.Contains(c.Value, ";") {
			return "", ErrCookieValue
		}
		return "", err
	}
	if c.Path == "" {
		c.Path = "/"
	}

	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)

	if c.MaxAge >= 0 {
		expires := time.Unix(0, 0)
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.FormatInt(c.MaxAge, 10))
		b.WriteString("; Expires=")
		b.WriteString(expires.UTC().Format(http.TimeFormat))
	}
	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	b.WriteString("; Path=")
	b.WriteString(c.Path)
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	if c.SameSite != "" {
		b.WriteString("; SameSite=")
		b.WriteString(c.SameSite)
	}
	return b.String(), nil
}
