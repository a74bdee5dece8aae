package goToken

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goToken/store"
	"github.com/MrEthical07/goToken/temp"
)

var (
	// ErrNotLogin matches every *NotLoginError regardless of reason.
	ErrNotLogin = errors.New("not logged in")
	// ErrNotLoginToken is the reason when no token was supplied or it is unknown.
	ErrNotLoginToken = errors.New("token not found")
	// ErrInvalidToken is the reason when the token is malformed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenTimeout is the reason when the token expired or went idle.
	ErrTokenTimeout = errors.New("token timed out")
	// ErrBeReplaced is the reason when a newer login superseded the token.
	ErrBeReplaced = errors.New("token replaced by a newer login")
	// ErrBeKickedOut is the reason when the token was forcibly removed.
	ErrBeKickedOut = errors.New("token kicked out")

	// ErrAccountBanned matches every *AccountBannedError.
	ErrAccountBanned = errors.New("account banned")
	// ErrNotPermission matches every *NotPermissionError.
	ErrNotPermission = errors.New("permission denied")
	// ErrNotRole matches every *NotRoleError.
	ErrNotRole = errors.New("role denied")
	// ErrNotSafe matches every *NotSafeError.
	ErrNotSafe = errors.New("safe mode required")
	// ErrNoSuchLoginType matches every *NoSuchLoginTypeError.
	ErrNoSuchLoginType = errors.New("no such login type")

	// ErrStoreUnavailable wraps store backend failures.
	ErrStoreUnavailable = store.ErrUnavailable
	// ErrInvalidConfiguration wraps Config.Validate failures.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrTokenCollision is returned when a freshly generated token is already live.
	ErrTokenCollision = errors.New("generated token collides with a live token")
	// ErrInvalidLoginID is returned for empty or reserved login ids.
	ErrInvalidLoginID = errors.New("invalid login id")
	// ErrNoRequestScope is returned by identity switching outside WithRequestScope.
	ErrNoRequestScope = errors.New("no request scope in context")
	// ErrRegistryClosed is returned by a Registry after Close.
	ErrRegistryClosed = errors.New("registry closed")

	// ErrTempTokenInvalid and ErrTempTokenExpired are the temp token failures.
	ErrTempTokenInvalid = temp.ErrInvalid
	ErrTempTokenExpired = temp.ErrExpired
)

// NotLoginError reports why a token does not name a live login. Reason is
// one of ErrNotLoginToken, ErrInvalidToken, ErrTokenTimeout, ErrBeReplaced
// or ErrBeKickedOut; errors.Is matches both ErrNotLogin and the reason.
type NotLoginError struct {
	LoginType string
	Reason    error
	Token     string
}

func (e *NotLoginError) Error() string {
	return fmt.Sprintf("%s: %v (login type %q)", ErrNotLogin, e.Reason, e.LoginType)
}

// Is implements errors.Is matching.
func (e *NotLoginError) Is(target error) bool {
	return target == ErrNotLogin || (e.Reason != nil && target == e.Reason)
}

// AccountBannedError is returned when a banned account tries to log in.
// Remaining is the ban time left in seconds, -1 for permanent.
type AccountBannedError struct {
	LoginType string
	LoginID   string
	Realm     string
	Remaining int64
}

func (e *AccountBannedError) Error() string {
	if e.Remaining == store.NeverExpire {
		return fmt.Sprintf("%s: %q in realm %q permanently", ErrAccountBanned, e.LoginID, e.Realm)
	}
	return fmt.Sprintf("%s: %q in realm %q for %ds", ErrAccountBanned, e.LoginID, e.Realm, e.Remaining)
}

// Is implements errors.Is matching.
func (e *AccountBannedError) Is(target error) bool {
	return target == ErrAccountBanned
}

// NotPermissionError names the permission code an account lacks.
type NotPermissionError struct {
	LoginType string
	Code      string
}

func (e *NotPermissionError) Error() string {
	return fmt.Sprintf("%s: %q", ErrNotPermission, e.Code)
}

// Is implements errors.Is matching.
func (e *NotPermissionError) Is(target error) bool {
	return target == ErrNotPermission
}

// NotRoleError names the role an account lacks.
type NotRoleError struct {
	LoginType string
	Role      string
}

func (e *NotRoleError) Error() string {
	return fmt.Sprintf("%s: %q", ErrNotRole, e.Role)
}

// Is implements errors.Is matching.
func (e *NotRoleError) Is(target error) bool {
	return target == ErrNotRole
}

// NotSafeError names the safe-mode realm that is not open.
type NotSafeError struct {
	LoginType string
	Realm     string
}

func (e *NotSafeError) Error() string {
	return fmt.Sprintf("%s: realm %q", ErrNotSafe, e.Realm)
}

// Is implements errors.Is matching.
func (e *NotSafeError) Is(target error) bool {
	return target == ErrNotSafe
}

// NoSuchLoginTypeError names a login type no engine is registered for.
type NoSuchLoginTypeError struct {
	LoginType string
}

func (e *NoSuchLoginTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrNoSuchLoginType, e.LoginType)
}

// Is implements errors.Is matching.
func (e *NoSuchLoginTypeError) Is(target error) bool {
	return target == ErrNoSuchLoginType
}
