// Package goToken is a login-state authority: it issues opaque tokens for
// logged-in accounts and answers who a token belongs to, whether it is still
// live and what the account may do.
//
// Every piece of state (token index, account and token sessions, activity
// records, bans, safe-mode windows) lives in a [store.Store] under keys
// namespaced by login type, so several independent account systems can share
// one backend. The in-memory store is the default; [Builder.WithRedis] moves
// everything to Redis without changing behavior.
//
// # Architecture boundaries
//
// [Engine] implements the operations of one login type. A [Registry] wires the
// components engines share: store, authorization provider, listener, metrics
// and temp tokens. Build one with [New] and [Builder.Build], or use
// [NewRegistry] and its setters. Engine methods are safe for concurrent use.
//
// Request-scoped behavior (identity switching, the once-per-request idle
// check) needs a context from [WithRequestScope]; the middleware package
// installs one per HTTP request.
//
// # Errors
//
// Failed checks return typed errors (*NotLoginError, *NotPermissionError,
// *NotRoleError, *NotSafeError, *AccountBannedError) that also match their
// sentinel with errors.Is. A *NotLoginError additionally matches the reason,
// such as ErrBeReplaced or ErrTokenTimeout.
//
// # What this package must NOT do
//
//   - Authenticate credentials. Callers decide who logs in.
//   - Expose store encodings or key layouts in its public API.
//   - Import a sub-package that re-imports goToken.
package goToken
