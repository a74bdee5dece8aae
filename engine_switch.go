package goToken

import "context"

// SwitchTo makes loginID the effective identity of this login type for the
// rest of the request scope. A second call replaces the override; nothing is
// persisted.
func (e *Engine) SwitchTo(ctx context.Context, loginID string) error {
	s := scopeFrom(ctx)
	if s == nil {
		return ErrNoRequestScope
	}
	if err := validLoginID(loginID); err != nil {
		return err
	}
	s.switchTo(e.loginType, loginID)
	return nil
}

// EndSwitch clears the override set by SwitchTo.
func (e *Engine) EndSwitch(ctx context.Context) {
	if s := scopeFrom(ctx); s != nil {
		s.endSwitch(e.loginType)
	}
}

// IsSwitch reports whether an override is active in the request scope.
func (e *Engine) IsSwitch(ctx context.Context) bool {
	_, ok := scopeFrom(ctx).switchedTo(e.loginType)
	return ok
}

// SwitchDo runs fn with loginID as the effective identity and always ends
// the switch afterwards, even when fn panics.
func (e *Engine) SwitchDo(ctx context.Context, loginID string, fn func(context.Context) error) error {
	if err := e.SwitchTo(ctx, loginID); err != nil {
		return err
	}
	defer e.EndSwitch(ctx)
	return fn(ctx)
}
