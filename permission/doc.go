// Package permission provides fuzzy permission/role code matching and the
// authorization provider contract used by goToken authorization checks.
//
// # Matching
//
// [HasElement] performs an exact membership check first and only then asks a
// [Rule] whether any listed code covers the requested one. Rules are plain
// values composed with [Any]; [DefaultRule] treats "*" as a wildcard and a
// listed "user" as covering "user-add" or "user:list" but not "get-user".
//
// # Providers
//
// A [Provider] returns the full permission and role lists of an account.
// [RoleManager] is an in-memory provider built from role definitions and
// account assignments; applications usually supply their own.
//
// # What this package must NOT do
//
//   - Access a store, database, or the network.
//   - Import goToken or session.
package permission
