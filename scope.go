package goToken

import (
	"context"
	"sync"
)

type requestScopeKey struct{}

// requestScope holds state that lives for exactly one logical request:
// identity-switch overrides and the tokens whose activity was already checked.
type requestScope struct {
	mu       sync.Mutex
	switched map[string]string   // login type -> overriding login id
	checked  map[string]struct{} // login type + token
}

// WithRequestScope attaches a fresh request scope to ctx. Call it once per
// inbound request, before any engine call. Nested calls keep the outer scope.
func WithRequestScope(ctx context.Context) context.Context {
	if scopeFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, requestScopeKey{}, &requestScope{})
}

func scopeFrom(ctx context.Context) *requestScope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(requestScopeKey{}).(*requestScope)
	return s
}

func (s *requestScope) switchTo(loginType, loginID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.switched == nil {
		s.switched = make(map[string]string)
	}
	s.switched[loginType] = loginID
}

func (s *requestScope) endSwitch(loginType string) {
	s.mu.Lock()
	delete(s.switched, loginType)
	s.mu.Unlock()
}

func (s *requestScope) switchedTo(loginType string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.switched[loginType]
	return id, ok
}

// markChecked reports whether this is the first activity check of token in
// the request and records it.
func (s *requestScope) markChecked(loginType, token string) bool {
	if s == nil {
		return true
	}
	k := loginType + "\x00" + token
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checked[k]; ok {
		return false
	}
	if s.checked == nil {
		s.checked = make(map[string]struct{})
	}
	s.checked[k] = struct{}{}
	return true
}

func (s *requestScope) clearChecked(loginType, token string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.checked, loginType+"\x00"+token)
	s.mu.Unlock()
}
