package router

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

var patterns sync.Map // string -> glob.Glob

func compile(pattern string) glob.Glob {
	if g, ok := patterns.Load(pattern); ok {
		return g.(glob.Glob)
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		// unparsable patterns only match themselves
		g = literal(pattern)
	}
	actual, _ := patterns.LoadOrStore(pattern, g)
	return actual.(glob.Glob)
}

type literal string

func (l literal) Match(s string) bool { return string(l) == s }

// IsMatch reports whether path matches pattern. "*" matches within one path
// segment, "**" matches any depth. A trailing "/**" also matches the bare
// prefix, so "/user/**" matches "/user".
func IsMatch(pattern, path string) bool {
	if pattern == path {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok && path == prefix {
		return true
	}
	return compile(pattern).Match(path)
}

// IsMatchAny reports whether path matches any of patterns.
func IsMatchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if IsMatch(p, path) {
			return true
		}
	}
	return false
}

// IsMatchMethod reports whether method is one of methods. "*" and "ALL"
// match every method. Comparison is case-insensitive.
func IsMatchMethod(methods []string, method string) bool {
	for _, m := range methods {
		if m == "*" || strings.EqualFold(m, "ALL") || strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}
