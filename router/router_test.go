package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatch(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/user/login", "/user/login", true},
		{"/user/*", "/user/login", true},
		{"/user/*", "/user/a/b", false},
		{"/user/**", "/user/a/b", true},
		{"/user/**", "/user", true},
		{"/user/**", "/username", false},
		{"/**", "/anything/at/all", true},
		{"/*.html", "/index.html", true},
		{"/admin/*/edit", "/admin/7/edit", true},
		{"/admin/*/edit", "/admin/7/view", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsMatch(tc.pattern, tc.path), "%s vs %s", tc.pattern, tc.path)
	}
}

func TestIsMatchMethod(t *testing.T) {
	assert.True(t, IsMatchMethod([]string{"get", "POST"}, "GET"))
	assert.True(t, IsMatchMethod([]string{"*"}, "DELETE"))
	assert.True(t, IsMatchMethod([]string{"ALL"}, "PATCH"))
	assert.False(t, IsMatchMethod([]string{"GET"}, "POST"))
	assert.False(t, IsMatchMethod(nil, "GET"))
}

func TestStaffPredicatesShortCircuit(t *testing.T) {
	req := Request{Method: "GET", Path: "/user/info"}

	called := false
	_, err := For(req).Match("/admin/**").Check(func() error {
		called = true
		return nil
	}).Result()
	require.NoError(t, err)
	assert.False(t, called)

	assert.True(t, For(req).Match("/user/**").NotMatch("/user/login").MatchMethod("GET").IsHit())
	assert.False(t, For(req).Match("/user/**").NotMatchMethod("GET").IsHit())
	assert.False(t, For(req).MatchIf(true).NotMatchIf(true).IsHit())
	assert.True(t, For(req).MatchFunc(func(r Request) bool { return r.Path == "/user/info" }).IsHit())
	assert.False(t, For(req).NotMatchFunc(func(Request) bool { return true }).IsHit())
}

func TestRunChain(t *testing.T) {
	errNotLogin := errors.New("not login")
	checks := 0

	chain := []Step{
		func(r Request) *Staff {
			return For(r).Match("/public/**").Stop()
		},
		func(r Request) *Staff {
			return For(r).Match("/health").Back("ok")
		},
		func(r Request) *Staff {
			return For(r).Match("/**").NotMatch("/login").Check(func() error {
				checks++
				if r.Path == "/secret" {
					return errNotLogin
				}
				return nil
			})
		},
	}

	out, err := Run(Request{Path: "/public/logo.png"}, chain...)
	require.NoError(t, err)
	assert.Equal(t, StopRemaining, out.Signal)
	assert.Zero(t, checks)

	out, err = Run(Request{Path: "/health"}, chain...)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Signal: RespondWith, Value: "ok"}, out)

	out, err = Run(Request{Path: "/login"}, chain...)
	require.NoError(t, err)
	assert.Equal(t, Continue, out.Signal)
	assert.Zero(t, checks)

	_, err = Run(Request{Path: "/secret"}, chain...)
	require.ErrorIs(t, err, errNotLogin)
	assert.Equal(t, 1, checks)
}

func TestSignalsAfterStopAreIgnored(t *testing.T) {
	s := For(Request{Path: "/x"}).Stop().Back("late").Check(func() error { return errors.New("late") })
	out, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, Outcome{Signal: StopRemaining}, out)
	assert.Equal(t, "stop", out.Signal.String())
}

type ctxKey struct{}

func TestRequestCarriesContextToChecks(t *testing.T) {
	assert.NotNil(t, Request{Path: "/x"}.Ctx())

	ctx := context.WithValue(context.Background(), ctxKey{}, "tok-1")
	var got any
	_, err := Run(Request{Path: "/orders", Context: ctx}, func(req Request) *Staff {
		return For(req).Match("/**").Check(func() error {
			got = req.Ctx().Value(ctxKey{})
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)
}
