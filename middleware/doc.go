// Package middleware adapts goToken engines to net/http.
//
// # Guards
//
//   - [Guard] enforces a declarative [Rule] (login, permissions, roles, safe mode).
//   - [RequireLogin], [RequirePermission] and [RequireRole] are shorthands.
//   - [Chain] runs router steps against the request path and method.
//
// Every guard attaches a goToken request scope to the request context, reads
// the token with [TokenFromRequest] and stores the effective login id for
// [LoginIDFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement login-state logic itself; every decision is delegated to the
// engine.
//
// # What this package must NOT do
//
//   - Access the store directly (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from the engine.
package middleware
