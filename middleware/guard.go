package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/router"
)

type loginIDContextKey struct{}
type tokenContextKey struct{}

// LoginIDFromContext returns the effective login id a guard stored.
func LoginIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(loginIDContextKey{}).(string)
	return id, ok
}

// TokenFromContext returns the token a guard read from the request.
func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenContextKey{}).(string)
	return tok, ok
}

// Mode combines the elements of a permission or role list.
type Mode uint8

const (
	// And requires every element.
	And Mode = iota
	// Or requires at least one element.
	Or
)

// Rule declares what a route requires. Permissions or Roles imply Login.
type Rule struct {
	Login          bool
	Permissions    []string
	PermissionMode Mode
	Roles          []string
	RoleMode       Mode
	// Safe requires an open safe-mode window of SafeRealm.
	Safe      bool
	SafeRealm string
}

type check func(ctx context.Context, e *goToken.Engine, tok string) error

// compile resolves r into the ordered list of engine checks once, at
// registration time.
func (r Rule) compile() []check {
	var checks []check
	if r.Login || r.Safe || len(r.Permissions) > 0 || len(r.Roles) > 0 {
		checks = append(checks, func(ctx context.Context, e *goToken.Engine, tok string) error {
			_, err := e.CheckLogin(ctx, tok)
			return err
		})
	}
	if perms := append([]string(nil), r.Permissions...); len(perms) > 0 {
		fn := (*goToken.Engine).CheckPermission
		if r.PermissionMode == Or {
			fn = (*goToken.Engine).CheckPermissionOr
		}
		checks = append(checks, func(ctx context.Context, e *goToken.Engine, tok string) error {
			return fn(e, ctx, tok, perms...)
		})
	}
	if roles := append([]string(nil), r.Roles...); len(roles) > 0 {
		fn := (*goToken.Engine).CheckRole
		if r.RoleMode == Or {
			fn = (*goToken.Engine).CheckRoleOr
		}
		checks = append(checks, func(ctx context.Context, e *goToken.Engine, tok string) error {
			return fn(e, ctx, tok, roles...)
		})
	}
	if r.Safe {
		realm := r.SafeRealm
		checks = append(checks, func(ctx context.Context, e *goToken.Engine, tok string) error {
			return e.CheckSafe(ctx, tok, realm)
		})
	}
	return checks
}

// Guard returns middleware enforcing rule with engine. Rejections are
// written with the status of StatusFor.
func Guard(engine *goToken.Engine, rule Rule) func(http.Handler) http.Handler {
	checks := rule.compile()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := goToken.WithRequestScope(r.Context())
			tok := TokenFromRequest(r, engine.Config())
			for _, c := range checks {
				if err := c(ctx, engine, tok); err != nil {
					writeError(w, err)
					return
				}
			}

			ctx = context.WithValue(ctx, tokenContextKey{}, tok)
			if id, ok, err := engine.LoginID(ctx, tok); err == nil && ok {
				ctx = context.WithValue(ctx, loginIDContextKey{}, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireLogin rejects requests without a live token.
func RequireLogin(engine *goToken.Engine) func(http.Handler) http.Handler {
	return Guard(engine, Rule{Login: true})
}

// RequirePermission rejects requests whose login lacks any of codes.
func RequirePermission(engine *goToken.Engine, codes ...string) func(http.Handler) http.Handler {
	return Guard(engine, Rule{Permissions: codes})
}

// RequireRole rejects requests whose login lacks any of roles.
func RequireRole(engine *goToken.Engine, roles ...string) func(http.Handler) http.Handler {
	return Guard(engine, Rule{Roles: roles})
}

// Chain evaluates steps against the request method and path. Each step sees
// a request scope carrying the token read with engine's configuration, so
// checks can call TokenFromContext(req.Ctx()). A check error rejects the
// request; router.RespondWith answers with the link's value as JSON; any
// other outcome passes the request on with the same context.
func Chain(engine *goToken.Engine, steps ...router.Step) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := goToken.WithRequestScope(r.Context())
			if engine != nil {
				ctx = context.WithValue(ctx, tokenContextKey{}, TokenFromRequest(r, engine.Config()))
			}
			out, err := router.Run(router.Request{Method: r.Method, Path: r.URL.Path, Context: ctx}, steps...)
			if err != nil {
				writeError(w, err)
				return
			}
			if out.Signal == router.RespondWith {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(out.Value)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, goToken.ErrNotLogin):
		return http.StatusUnauthorized
	case errors.Is(err, goToken.ErrNotPermission),
		errors.Is(err, goToken.ErrNotRole),
		errors.Is(err, goToken.ErrNotSafe),
		errors.Is(err, goToken.ErrAccountBanned):
		return http.StatusForbidden
	case errors.Is(err, goToken.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	http.Error(w, http.StatusText(status), status)
}
