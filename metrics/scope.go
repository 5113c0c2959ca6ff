// Package metrics is the relay's stats plumbing. A Scope carries a dotted
// name prefix and lazily registers Prometheus collectors under it, so the
// store, verifier, and wire layer can record stats ("store.accepted",
// "verifier.outcomes.valid", "relay.messages_in") without every call site
// declaring and registering its own collector.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scope records stats under a dotted name prefix. Child scopes extend the
// prefix, so each component sees only its own corner of the namespace.
type Scope interface {
	NewScope(scopes ...string) Scope

	Inc(stat string, value int64)
	Gauge(stat string, value int64)
	GaugeDelta(stat string, value int64)
	SetInt(stat string, value int64)
	TimingDuration(stat string, d time.Duration)
}

// promScope is a Scope backed by lazily registered Prometheus collectors.
// Child scopes share their parent's autoRegisterer, so a stat name is
// registered at most once per process no matter which scope touches it
// first.
type promScope struct {
	*autoRegisterer
	prefix string
}

var _ Scope = &promScope{}

// NewPromScope returns a Scope recording to registerer under the given
// scope names joined by periods.
func NewPromScope(registerer prometheus.Registerer, scopes ...string) Scope {
	return &promScope{
		autoRegisterer: newAutoRegisterer(registerer),
		prefix:         joinPrefix("", scopes),
	}
}

// NewScope derives a child Scope whose prefix extends this one's.
func (s *promScope) NewScope(scopes ...string) Scope {
	return &promScope{
		autoRegisterer: s.autoRegisterer,
		prefix:         joinPrefix(s.prefix, scopes),
	}
}

func joinPrefix(parent string, scopes []string) string {
	if len(scopes) == 0 {
		return parent
	}
	return parent + strings.Join(scopes, ".") + "."
}

// Inc adds value to the named counter.
func (s *promScope) Inc(stat string, value int64) {
	s.autoCounter(s.prefix + stat).Add(float64(value))
}

// Gauge sets the named gauge to value.
func (s *promScope) Gauge(stat string, value int64) {
	s.autoGauge(s.prefix + stat).Set(float64(value))
}

// GaugeDelta adds value (which may be negative) to the named gauge.
func (s *promScope) GaugeDelta(stat string, value int64) {
	s.autoGauge(s.prefix + stat).Add(float64(value))
}

// SetInt sets the named gauge to an integer value.
func (s *promScope) SetInt(stat string, value int64) {
	s.autoGauge(s.prefix + stat).Set(float64(value))
}

// TimingDuration observes d on the named summary, in seconds.
func (s *promScope) TimingDuration(stat string, d time.Duration) {
	s.autoSummary(s.prefix + stat + "_seconds").Observe(d.Seconds())
}

// noopScope records nothing; tests use it to satisfy constructors without
// wiring a registry.
type noopScope struct{}

// NewNoopScope returns a Scope that discards everything recorded on it.
func NewNoopScope() Scope {
	return noopScope{}
}

func (n noopScope) NewScope(scopes ...string) Scope { return n }

func (noopScope) Inc(stat string, value int64)                {}
func (noopScope) Gauge(stat string, value int64)              {}
func (noopScope) GaugeDelta(stat string, value int64)         {}
func (noopScope) SetInt(stat string, value int64)             {}
func (noopScope) TimingDuration(stat string, d time.Duration) {}
