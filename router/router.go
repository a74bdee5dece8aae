// Package router evaluates ordered authorization chains against a request
// path and method.
//
// Each link of a chain is a [Staff]: a sequence of match predicates followed
// by a check or a control signal. A chain ends early on the first error, on
// [Staff.Stop] (remaining links are skipped, the chain succeeds) or on
// [Staff.Back] (the chain succeeds and yields a value to respond with).
// Signals are ordinary return values and never errors.
package router

import "context"

// Request is the part of an inbound call the router inspects. Context is
// the call's request-scoped context, which checks pass on to the engine.
type Request struct {
	Method  string
	Path    string
	Context context.Context
}

// Ctx returns the request context, or context.Background when none was set.
func (r Request) Ctx() context.Context {
	if r.Context == nil {
		return context.Background()
	}
	return r.Context
}

// Signal tells the chain executor how to proceed after a link.
type Signal uint8

const (
	// Continue evaluates the next link.
	Continue Signal = iota
	// StopRemaining skips every remaining link.
	StopRemaining
	// RespondWith skips every remaining link and yields Outcome.Value.
	RespondWith
)

func (s Signal) String() string {
	switch s {
	case Continue:
		return "continue"
	case StopRemaining:
		return "stop"
	case RespondWith:
		return "respond"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of a link or a chain.
type Outcome struct {
	Signal Signal
	Value  any
}

// Staff accumulates match state for one link. Once a link has failed to
// match, errored or signalled, further calls are no-ops.
type Staff struct {
	req     Request
	hit     bool
	outcome Outcome
	err     error
}

// For starts a link for req. A link with no predicates always matches.
func For(req Request) *Staff {
	return &Staff{req: req, hit: true}
}

func (s *Staff) live() bool {
	return s.hit && s.err == nil && s.outcome.Signal == Continue
}

// IsHit reports whether every predicate so far matched.
func (s *Staff) IsHit() bool {
	return s.hit
}

// Match requires the path to match one of patterns.
func (s *Staff) Match(patterns ...string) *Staff {
	if s.live() {
		s.hit = IsMatchAny(patterns, s.req.Path)
	}
	return s
}

// NotMatch requires the path to match none of patterns.
func (s *Staff) NotMatch(patterns ...string) *Staff {
	if s.live() {
		s.hit = !IsMatchAny(patterns, s.req.Path)
	}
	return s
}

// MatchMethod requires the method to be one of methods.
func (s *Staff) MatchMethod(methods ...string) *Staff {
	if s.live() {
		s.hit = IsMatchMethod(methods, s.req.Method)
	}
	return s
}

// NotMatchMethod requires the method to be none of methods.
func (s *Staff) NotMatchMethod(methods ...string) *Staff {
	if s.live() {
		s.hit = !IsMatchMethod(methods, s.req.Method)
	}
	return s
}

// MatchIf requires cond.
func (s *Staff) MatchIf(cond bool) *Staff {
	if s.live() {
		s.hit = cond
	}
	return s
}

// NotMatchIf requires !cond.
func (s *Staff) NotMatchIf(cond bool) *Staff {
	return s.MatchIf(!cond)
}

// MatchFunc requires fn(req).
func (s *Staff) MatchFunc(fn func(Request) bool) *Staff {
	if s.live() {
		s.hit = fn(s.req)
	}
	return s
}

// NotMatchFunc requires !fn(req).
func (s *Staff) NotMatchFunc(fn func(Request) bool) *Staff {
	if s.live() {
		s.hit = !fn(s.req)
	}
	return s
}

// Check runs fn when the link matched. Its error aborts the chain.
func (s *Staff) Check(fn func() error) *Staff {
	if s.live() {
		s.err = fn()
	}
	return s
}

// Stop ends the chain successfully when the link matched.
func (s *Staff) Stop() *Staff {
	if s.live() {
		s.outcome = Outcome{Signal: StopRemaining}
	}
	return s
}

// Back ends the chain when the link matched, yielding value.
func (s *Staff) Back(value any) *Staff {
	if s.live() {
		s.outcome = Outcome{Signal: RespondWith, Value: value}
	}
	return s
}

// Result returns the link's outcome and check error.
func (s *Staff) Result() (Outcome, error) {
	return s.outcome, s.err
}

// Step builds one link of a chain.
type Step func(req Request) *Staff

// Run evaluates steps in order. The first check error aborts the chain and is
// returned. StopRemaining and RespondWith end the chain with a nil error.
func Run(req Request, steps ...Step) (Outcome, error) {
	for _, step := range steps {
		if step == nil {
			continue
		}
		out, err := step(req).Result()
		if err != nil {
			return Outcome{}, err
		}
		if out.Signal != Continue {
			return out, nil
		}
	}
	return Outcome{Signal: Continue}, nil
}
