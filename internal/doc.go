// Package internal contains helpers that are private to goToken, currently
// secure random generation shared by token generators and temp tokens.
//
// # What this package must NOT do
//
//   - Export types that appear in the public goToken API.
//   - Be imported by any package outside the goToken module.
package internal
