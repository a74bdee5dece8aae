// Package session provides store-backed attribute bags bound to an id.
//
// # Kinds
//
// The login-state engine keeps two kinds of session: an account session
// (one per login id, also carrying the account's live token signs) and a
// token session (one per token value). Both are plain [Session] values; the
// kind is only a matter of which key the engine hands to [Manager.Get].
//
// # Persistence
//
// A Session is loaded once by [Manager.Get] and written through on every
// mutation with store.Store.UpdateObject, so the entry's TTL is never
// changed by an attribute write. There is no buffering across calls.
//
// # What this package must NOT do
//
//   - Import the root goToken package (no upward imports).
//   - Decide login state. Token signs are bookkeeping owned by the engine.
package session
