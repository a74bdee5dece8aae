package goToken

import (
	"context"
	"strings"

	"github.com/MrEthical07/goToken/session"
	"github.com/MrEthical07/goToken/store"
)

// Session returns the account session of loginID. When it does not exist
// and create is false, nil is returned without an error.
func (e *Engine) Session(ctx context.Context, loginID string, create bool) (*session.Session, error) {
	s, err := e.sessions().Get(ctx, e.sessionKey(loginID), create, e.config.Timeout)
	return s, e.storeErr(err)
}

// SessionByToken returns the account session of the login behind tok.
func (e *Engine) SessionByToken(ctx context.Context, tok string, create bool) (*session.Session, error) {
	id, reason, err := e.resolve(ctx, tok, true)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		return nil, e.notLogin(tok, reason)
	}
	return e.Session(ctx, id, create)
}

// TokenSession returns the session scoped to tok. With
// Config.TokenSessionCheckLogin the token must be live; otherwise only an
// empty token is rejected. A created token session expires together with the
// token, or after Config.Timeout when the token is not indexed.
func (e *Engine) TokenSession(ctx context.Context, tok string, create bool) (*session.Session, error) {
	if e.config.TokenSessionCheckLogin {
		_, reason, err := e.resolve(ctx, tok, true)
		if err != nil {
			return nil, err
		}
		if reason != nil {
			return nil, e.notLogin(tok, reason)
		}
	} else if tok == "" {
		return nil, e.notLogin(tok, ErrNotLoginToken)
	}
	ttl, err := e.TokenTimeout(ctx, tok)
	if err != nil {
		return nil, err
	}
	if ttl == store.NotValueExpire {
		ttl = e.config.Timeout
	}
	s, err := e.sessions().Get(ctx, e.tokenSessionKey(tok), create, ttl)
	return s, e.storeErr(err)
}

// Extra returns a value stored with WithExtra at login, or nil.
func (e *Engine) Extra(ctx context.Context, tok, key string) (any, error) {
	s, err := e.TokenSession(ctx, tok, false)
	if err != nil || s == nil {
		return nil, err
	}
	return s.Get(key), nil
}

// SearchTokenValue pages through live token values containing keyword.
// Tokens that now only report why they ended are skipped before paging.
// size == -1 returns everything from start on.
func (e *Engine) SearchTokenValue(ctx context.Context, keyword string, start, size int) ([]string, error) {
	values, err := e.search(ctx, e.tokenKey(""), keyword, 0, -1)
	if err != nil {
		return nil, err
	}
	live := values[:0]
	for _, tok := range values {
		v, ok, err := e.store().Get(ctx, e.tokenKey(tok))
		if err != nil {
			return nil, e.storeErr(err)
		}
		if ok && !isMarker(v) {
			live = append(live, tok)
		}
	}
	return store.Page(live, start, size), nil
}

// SearchSessionID pages through login ids that own an account session.
func (e *Engine) SearchSessionID(ctx context.Context, keyword string, start, size int) ([]string, error) {
	return e.search(ctx, e.sessionKey(""), keyword, start, size)
}

// SearchTokenSessionID pages through token values that own a token session.
func (e *Engine) SearchTokenSessionID(ctx context.Context, keyword string, start, size int) ([]string, error) {
	return e.search(ctx, e.tokenSessionKey(""), keyword, start, size)
}

func (e *Engine) search(ctx context.Context, prefix, keyword string, start, size int) ([]string, error) {
	keys, err := e.store().SearchKeys(ctx, prefix, keyword, start, size)
	if err != nil {
		return nil, e.storeErr(err)
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = strings.TrimPrefix(k, prefix)
	}
	return out, nil
}
