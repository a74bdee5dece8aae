package goToken

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	// MetricLogin counts successful logins, including shared-token reuse.
	MetricLogin MetricID = iota
	// MetricLoginShared counts logins answered with an existing token.
	MetricLoginShared
	// MetricLoginBanned counts logins rejected by an active ban.
	MetricLoginBanned
	// MetricLogout counts logouts of a single token.
	MetricLogout
	// MetricKickout counts tokens forcibly removed.
	MetricKickout
	// MetricReplaced counts tokens superseded by an exclusive login.
	MetricReplaced
	// MetricActivityTimeout counts tokens expired by the idle check.
	MetricActivityTimeout
	// MetricCheckLoginSuccess counts token checks that resolved a login id.
	MetricCheckLoginSuccess
	// MetricCheckLoginFailure counts token checks that failed.
	MetricCheckLoginFailure
	// MetricRenew counts absolute TTL renewals.
	MetricRenew
	// MetricDisable counts bans placed.
	MetricDisable
	// MetricUntieDisable counts bans lifted.
	MetricUntieDisable
	// MetricSessionCreated counts sessions created.
	MetricSessionCreated
	// MetricSessionDestroyed counts sessions destroyed.
	MetricSessionDestroyed
	// MetricSafeOpened counts safe-mode windows opened.
	MetricSafeOpened
	// MetricPermissionDenied counts failed permission checks.
	MetricPermissionDenied
	// MetricRoleDenied counts failed role checks.
	MetricRoleDenied
	// MetricListenerPanic counts recovered listener panics.
	MetricListenerPanic
	// MetricStoreError counts store failures surfaced or swallowed by the engine.
	MetricStoreError
	// MetricCheckLoginLatency is the only histogram: CheckLogin latency.
	MetricCheckLoginLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free set of padded atomic counters plus one latency
// histogram. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a Metrics set from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram of id. Only MetricCheckLoginLatency
// carries a histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricCheckLoginLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricCheckLoginLatency].buckets[i])
		}
		s.Histograms[MetricCheckLoginLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
