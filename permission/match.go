package permission

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// Rule decides whether a listed code (pattern) covers a requested code.
type Rule interface {
	Covers(pattern, code string) bool
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(pattern, code string) bool

// Covers implements Rule.
func (f RuleFunc) Covers(pattern, code string) bool {
	return f(pattern, code)
}

type globRule struct {
	cache sync.Map // string -> glob.Glob
}

// Glob returns a rule where "*" in a listed code matches any run of
// characters, so "user*" covers "user-add" and "*" covers everything.
// Listed codes without "*" only cover themselves.
func Glob() Rule {
	return &globRule{}
}

func (r *globRule) Covers(pattern, code string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == code
	}
	if g, ok := r.cache.Load(pattern); ok {
		return g.(glob.Glob).Match(code)
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return false
	}
	r.cache.Store(pattern, g)
	return g.Match(code)
}

// SegmentPrefix returns a rule where a listed code covers every code that
// extends it after one of seps. With seps "-:", "user" covers "user-add" and
// "user:list" but neither "username" nor "get-user".
func SegmentPrefix(seps string) Rule {
	return RuleFunc(func(pattern, code string) bool {
		if pattern == "" || len(code) <= len(pattern) || !strings.HasPrefix(code, pattern) {
			return false
		}
		return strings.IndexByte(seps, code[len(pattern)]) >= 0
	})
}

// Any returns a rule that covers when any of rules covers.
func Any(rules ...Rule) Rule {
	return RuleFunc(func(pattern, code string) bool {
		for _, r := range rules {
			if r != nil && r.Covers(pattern, code) {
				return true
			}
		}
		return false
	})
}

// Exact is the rule that only accepts equality.
var Exact Rule = RuleFunc(func(pattern, code string) bool { return pattern == code })

// DefaultRule is Any(Glob(), SegmentPrefix("-:")).
var DefaultRule = Any(Glob(), SegmentPrefix("-:"))

// HasElement reports whether list grants element: exact membership first,
// then rule per listed entry. A nil rule means exact matching only.
func HasElement(list []string, element string, rule Rule) bool {
	for _, v := range list {
		if v == element {
			return true
		}
	}
	if rule == nil {
		return false
	}
	for _, v := range list {
		if rule.Covers(v, element) {
			return true
		}
	}
	return false
}
