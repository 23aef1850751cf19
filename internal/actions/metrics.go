package actions

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "github_pin"

// Lookup endpoints as recorded in metrics.
const (
	endpointRef    = "ref"
	endpointTag    = "tag"
	endpointCommit = "commit"
)

// Outcome labels shared by lookup and resolution metrics.
const (
	OutcomeFound       = "found"
	OutcomeNotFound    = "not_found"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Metrics holds the resolver's prometheus collectors.
type Metrics struct {
	Lookups     *prometheus.CounterVec // [endpoint, outcome]
	Resolutions *prometheus.CounterVec // [outcome]
	CacheEvents *prometheus.CounterVec // [event]
}

// NewMetrics creates the resolver collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "lookup",
			Name:      "requests_total",
			Help:      "Number of GitHub lookups by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Number of completed lookup chains by outcome.",
		}, []string{"outcome"}),
		CacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Number of resolution requests by cache event (hit, miss, share).",
		}, []string{"event"}),
	}
	if reg != nil {
		reg.MustRegister(m.Lookups, m.Resolutions, m.CacheEvents)
	}
	return m
}

// outcomeOf returns the outcome label for a lookup error.
func outcomeOf(err error) string {
	var rateErr *RateLimitError
	switch {
	case err == nil:
		return OutcomeFound
	case errors.As(err, &rateErr):
		return OutcomeRateLimited
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
