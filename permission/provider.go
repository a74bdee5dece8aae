package permission

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Provider supplies the permission and role codes of an account. It is
// called on every authorization check and should cache on its own side.
type Provider interface {
	PermissionList(ctx context.Context, loginID, loginType string) ([]string, error)
	RoleList(ctx context.Context, loginID, loginType string) ([]string, error)
}

// Empty is a Provider granting nothing.
type Empty struct{}

// PermissionList implements Provider.
func (Empty) PermissionList(context.Context, string, string) ([]string, error) { return nil, nil }

// RoleList implements Provider.
func (Empty) RoleList(context.Context, string, string) ([]string, error) { return nil, nil }

// RoleManager is an in-memory Provider. Roles map to permission codes and
// accounts are assigned roles per login type. Once frozen it is read-only.
type RoleManager struct {
	mu       sync.RWMutex
	roles    map[string][]string
	accounts map[string][]string // loginType + "\x00" + loginID -> roles
	frozen   bool
}

// NewRoleManager creates an empty RoleManager.
func NewRoleManager() *RoleManager {
	return &RoleManager{
		roles:    make(map[string][]string),
		accounts: make(map[string][]string),
	}
}

func accountKey(loginType, loginID string) string {
	return loginType + "\x00" + loginID
}

// RegisterRole defines role with its permission codes.
func (rm *RoleManager) RegisterRole(role string, permissions []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if role == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[role]; exists {
		return errors.New("role already registered")
	}
	rm.roles[role] = append([]string(nil), permissions...)
	return nil
}

// Assign grants roles to an account of loginType.
func (rm *RoleManager) Assign(loginType, loginID string, roles ...string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	for _, r := range roles {
		if _, ok := rm.roles[r]; !ok {
			return errors.New("role not registered: " + r)
		}
	}
	k := accountKey(loginType, loginID)
	rm.accounts[k] = appendUnique(rm.accounts[k], roles...)
	return nil
}

// Freeze makes the manager read-only.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	rm.frozen = true
	rm.mu.Unlock()
}

// RoleList implements Provider.
func (rm *RoleManager) RoleList(_ context.Context, loginID, loginType string) ([]string, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return append([]string(nil), rm.accounts[accountKey(loginType, loginID)]...), nil
}

// PermissionList implements Provider. It is the sorted union of the
// permissions of every assigned role.
func (rm *RoleManager) PermissionList(_ context.Context, loginID, loginType string) ([]string, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	var out []string
	for _, role := range rm.accounts[accountKey(loginType, loginID)] {
		out = appendUnique(out, rm.roles[role]...)
	}
	sort.Strings(out)
	return out, nil
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
