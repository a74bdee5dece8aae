package internaldefs

import (
	goToken "github.com/MrEthical07/goToken"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: goToken.MetricLogin, Name: "gotoken_login_total", Help: "Successful logins, including shared-token reuse."},
	{ID: goToken.MetricLoginShared, Name: "gotoken_login_shared_total", Help: "Logins answered with an existing token."},
	{ID: goToken.MetricLoginBanned, Name: "gotoken_login_banned_total", Help: "Logins rejected by an active ban."},
	{ID: goToken.MetricLogout, Name: "gotoken_logout_total", Help: "Single-token logouts."},
	{ID: goToken.MetricKickout, Name: "gotoken_kickout_total", Help: "Tokens forcibly removed."},
	{ID: goToken.MetricReplaced, Name: "gotoken_replaced_total", Help: "Tokens superseded by an exclusive login."},
	{ID: goToken.MetricActivityTimeout, Name: "gotoken_activity_timeout_total", Help: "Tokens expired by the idle check."},
	{ID: goToken.MetricCheckLoginSuccess, Name: "gotoken_check_login_success_total", Help: "Token checks that resolved a login id."},
	{ID: goToken.MetricCheckLoginFailure, Name: "gotoken_check_login_failure_total", Help: "Token checks that failed."},
	{ID: goToken.MetricRenew, Name: "gotoken_renew_total", Help: "Absolute token lifetime renewals."},
	{ID: goToken.MetricDisable, Name: "gotoken_disable_total", Help: "Account bans placed."},
	{ID: goToken.MetricUntieDisable, Name: "gotoken_untie_disable_total", Help: "Account bans lifted."},
	{ID: goToken.MetricSessionCreated, Name: "gotoken_session_created_total", Help: "Sessions created."},
	{ID: goToken.MetricSessionDestroyed, Name: "gotoken_session_destroyed_total", Help: "Sessions destroyed."},
	{ID: goToken.MetricSafeOpened, Name: "gotoken_safe_opened_total", Help: "Safe-mode windows opened."},
	{ID: goToken.MetricPermissionDenied, Name: "gotoken_permission_denied_total", Help: "Failed permission checks."},
	{ID: goToken.MetricRoleDenied, Name: "gotoken_role_denied_total", Help: "Failed role checks."},
	{ID: goToken.MetricListenerPanic, Name: "gotoken_listener_panic_total", Help: "Recovered listener panics."},
	{ID: goToken.MetricStoreError, Name: "gotoken_store_error_total", Help: "Store failures seen by the engine."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: goToken.MetricCheckLoginLatency, Name: "gotoken_check_login_latency_seconds", Help: "CheckLogin latency histogram."},
}

// ListenerDroppedName is the counter of events dropped by an async listener.
const ListenerDroppedName = "gotoken_listener_dropped_total"

// ListenerDroppedHelp describes ListenerDroppedName.
const ListenerDroppedHelp = "Listener events dropped due to queue backpressure."

// HistogramBounds are the upper bounds of the latency buckets in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundValues are HistogramBounds without the +Inf bucket.
var HistogramBoundValues = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix are HistogramBounds usable in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
