package middleware

import (
	"net/http"
	"strings"
	"time"

	goToken "github.com/MrEthical07/goToken"
)

// TokenFromRequest returns the token of r, looking at the form (query and
// body), the header and the cookie named cfg.TokenName, in that order and as
// enabled by cfg. With cfg.TokenPrefix set, only values of the form
// "<prefix> <token>" count and the prefix is stripped. The result is "" when
// no token is present.
func TokenFromRequest(r *http.Request, cfg goToken.Config) string {
	if r == nil || cfg.TokenName == "" {
		return ""
	}

	var tok string
	if cfg.IsReadBody {
		tok = r.FormValue(cfg.TokenName)
	}
	if tok == "" && cfg.IsReadHeader {
		tok = r.Header.Get(cfg.TokenName)
	}
	if tok == "" && cfg.IsReadCookie {
		if c, err := r.Cookie(cfg.TokenName); err == nil {
			tok = c.Value
		}
	}

	if cfg.TokenPrefix == "" || tok == "" {
		return tok
	}
	rest, ok := strings.CutPrefix(tok, cfg.TokenPrefix+" ")
	if !ok {
		return ""
	}
	return rest
}

// WriteToken hands tok back to the client: as a cookie when the engine reads
// cookies and as a response header when it reads headers. maxAge follows
// goToken.LoginParams.CookieMaxAge, -1 being a browser-session cookie.
func WriteToken(w http.ResponseWriter, cfg goToken.Config, tok string, maxAge int64) error {
	if cfg.IsReadCookie {
		c := Cookie{
			Name:     cfg.TokenName,
			Value:    tok,
			MaxAge:   maxAge,
			Domain:   cfg.CookieDomain,
			Path:     cfg.Cookie.Path,
			Secure:   cfg.Cookie.Secure,
			HttpOnly: cfg.Cookie.HttpOnly,
			SameSite: cfg.Cookie.SameSite,
		}
		v, err := c.HeaderValue(time.Now())
		if err != nil {
			return err
		}
		w.Header().Add("Set-Cookie", v)
	}
	if cfg.IsReadHeader {
		w.Header().Set(cfg.TokenName, tok)
		w.Header().Add("Access-Control-Expose-Headers", cfg.TokenName)
	}
	return nil
}

// ClearToken expires the token cookie on the client.
func ClearToken(w http.ResponseWriter, cfg goToken.Config) error {
	if !cfg.IsReadCookie {
		return nil
	}
	c := Cookie{
		Name:   cfg.TokenName,
		MaxAge: 0,
		Domain: cfg.CookieDomain,
		Path:   cfg.Cookie.Path,
	}
	v, err := c.HeaderValue(time.Now())
	if err != nil {
		return err
	}
	w.Header().Add("Set-Cookie", v)
	return nil
}
