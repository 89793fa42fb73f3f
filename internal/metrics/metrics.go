// Package metrics exposes the broker's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the broker's collectors. All collectors are registered on
// the registry passed to New, never on the global default registry, so tests
// get fresh state.
type Metrics struct {
	ExchangesTotal   *prometheus.CounterVec
	CacheHitsTotal   prometheus.Counter
	CacheClearsTotal prometheus.Counter
	RateLimitedTotal *prometheus.CounterVec
	CacheSize        prometheus.GaugeFunc
}

// New registers and returns the broker collectors. sizeFn reports the
// current cache entry count.
func New(reg prometheus.Registerer, sizeFn func() int) *Metrics {
	m := &Metrics{
		ExchangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenbroker_exchanges_total",
			Help: "Credential exchange calls to the identity provider, by outcome.",
		}, []string{"outcome"}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tokenbroker_cache_hits_total",
			Help: "Token requests served from the encrypted cache.",
		}),
		CacheClearsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tokenbroker_cache_clears_total",
			Help: "Administrative cache clear operations.",
		}),
		RateLimitedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenbroker_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by endpoint class.",
		}, []string{"endpoint"}),
		CacheSize: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tokenbroker_cache_entries",
			Help: "Entries currently held by the token cache.",
		}, func() float64 { return float64(sizeFn()) }),
	}

	reg.MustRegister(
		m.ExchangesTotal,
		m.CacheHitsTotal,
		m.CacheClearsTotal,
		m.RateLimitedTotal,
		m.CacheSize,
	)
	return m
}
