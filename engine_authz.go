package goToken

import (
	"context"

	"github.com/MrEthical07/goToken/permission"
)

// PermissionList returns the permission codes the provider grants loginID.
func (e *Engine) PermissionList(ctx context.Context, loginID string) ([]string, error) {
	return e.deps.AuthProvider().PermissionList(ctx, loginID, e.loginType)
}

// RoleList returns the roles the provider grants loginID.
func (e *Engine) RoleList(ctx context.Context, loginID string) ([]string, error) {
	return e.deps.AuthProvider().RoleList(ctx, loginID, e.loginType)
}

// HasPermission reports whether loginID holds code under the match rule.
func (e *Engine) HasPermission(ctx context.Context, loginID, code string) (bool, error) {
	return e.HasPermissionAnd(ctx, loginID, code)
}

// HasPermissionAnd reports whether loginID holds every code.
func (e *Engine) HasPermissionAnd(ctx context.Context, loginID string, codes ...string) (bool, error) {
	list, err := e.PermissionList(ctx, loginID)
	if err != nil {
		return false, err
	}
	_, ok := e.missing(list, codes)
	return ok, nil
}

// HasPermissionOr reports whether loginID holds at least one code. An empty
// code list is satisfied.
func (e *Engine) HasPermissionOr(ctx context.Context, loginID string, codes ...string) (bool, error) {
	list, err := e.PermissionList(ctx, loginID)
	if err != nil {
		return false, err
	}
	return e.anyOf(list, codes), nil
}

// CheckPermission requires the login behind tok to hold every code. It fails
// with *NotLoginError or *NotPermissionError naming the first missing code.
func (e *Engine) CheckPermission(ctx context.Context, tok string, codes ...string) error {
	id, err := e.CheckLogin(ctx, tok)
	if err != nil {
		return err
	}
	list, err := e.PermissionList(ctx, id)
	if err != nil {
		return err
	}
	if code, ok := e.missing(list, codes); !ok {
		e.metricInc(MetricPermissionDenied)
		return &NotPermissionError{LoginType: e.loginType, Code: code}
	}
	return nil
}

// CheckPermissionOr requires at least one code. The error names the first code.
func (e *Engine) CheckPermissionOr(ctx context.Context, tok string, codes ...string) error {
	id, err := e.CheckLogin(ctx, tok)
	if err != nil {
		return err
	}
	list, err := e.PermissionList(ctx, id)
	if err != nil {
		return err
	}
	if !e.anyOf(list, codes) {
		e.metricInc(MetricPermissionDenied)
		return &NotPermissionError{LoginType: e.loginType, Code: codes[0]}
	}
	return nil
}

// HasRole reports whether loginID holds role under the match rule.
func (e *Engine) HasRole(ctx context.Context, loginID, role string) (bool, error) {
	return e.HasRoleAnd(ctx, loginID, role)
}

// HasRoleAnd reports whether loginID holds every role.
func (e *Engine) HasRoleAnd(ctx context.Context, loginID string, roles ...string) (bool, error) {
	list, err := e.RoleList(ctx, loginID)
	if err != nil {
		return false, err
	}
	_, ok := e.missing(list, roles)
	return ok, nil
}

// HasRoleOr reports whether loginID holds at least one role.
func (e *Engine) HasRoleOr(ctx context.Context, loginID string, roles ...string) (bool, error) {
	list, err := e.RoleList(ctx, loginID)
	if err != nil {
		return false, err
	}
	return e.anyOf(list, roles), nil
}

// CheckRole requires the login behind tok to hold every role.
func (e *Engine) CheckRole(ctx context.Context, tok string, roles ...string) error {
	id, err := e.CheckLogin(ctx, tok)
	if err != nil {
		return err
	}
	list, err := e.RoleList(ctx, id)
	if err != nil {
		return err
	}
	if role, ok := e.missing(list, roles); !ok {
		e.metricInc(MetricRoleDenied)
		return &NotRoleError{LoginType: e.loginType, Role: role}
	}
	return nil
}

// CheckRoleOr requires at least one role.
func (e *Engine) CheckRoleOr(ctx context.Context, tok string, roles ...string) error {
	id, err := e.CheckLogin(ctx, tok)
	if err != nil {
		return err
	}
	list, err := e.RoleList(ctx, id)
	if err != nil {
		return err
	}
	if !e.anyOf(list, roles) {
		e.metricInc(MetricRoleDenied)
		return &NotRoleError{LoginType: e.loginType, Role: roles[0]}
	}
	return nil
}

// missing returns the first wanted element not covered by list.
func (e *Engine) missing(list, wanted []string) (string, bool) {
	for _, w := range wanted {
		if !permission.HasElement(list, w, e.rule) {
			return w, false
		}
	}
	return "", true
}

func (e *Engine) anyOf(list, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if permission.HasElement(list, w, e.rule) {
			return true
		}
	}
	return false
}
