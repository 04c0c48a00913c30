// Package obsmetrics holds the dispatch core's Prometheus series beyond
// the generic resilience/database ones: matching-cycle outcomes and the
// offer-expiry loop. Exposed on /metrics alongside the default registry.
package obsmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchingCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_matching_cycle_duration_seconds",
		Help:    "Duration of a single find-and-offer matching cycle",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	matchingCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_matching_cycles_total",
		Help: "Matching cycles by outcome (offered, no_candidates, no_drivers, error)",
	}, []string{"outcome"})

	offersIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_issued_total",
		Help: "Total ride offers issued to drivers",
	})

	offersExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_expired_total",
		Help: "Total pending offers expired by the expiry loop",
	})

	expiryPollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_expiry_poll_errors_total",
		Help: "Total errors while polling or processing the offer expiry queue",
	})

	geoSearchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_geo_search_failures_total",
		Help: "Total candidate searches that failed against the location index",
	})
)

// Matching cycle outcomes.
const (
	OutcomeOffered      = "offered"
	OutcomeNoCandidates = "no_candidates"
	OutcomeNoDrivers    = "no_drivers"
	OutcomeError        = "error"
)

// RecordMatchingCycle records one find-and-offer cycle with its outcome.
func RecordMatchingCycle(outcome string, duration time.Duration) {
	matchingCyclesTotal.WithLabelValues(outcome).Inc()
	matchingCycleDuration.Observe(duration.Seconds())
}

// RecordOfferIssued counts a successfully committed offer.
func RecordOfferIssued() {
	offersIssuedTotal.Inc()
}

// RecordOfferExpired counts an offer the expiry loop moved to expired.
func RecordOfferExpired() {
	offersExpiredTotal.Inc()
}

// RecordExpiryPollError counts a failed expiry-queue poll or a failed
// per-offer expiry handling attempt.
func RecordExpiryPollError() {
	expiryPollErrorsTotal.Inc()
}

// RecordGeoSearchFailure counts a candidate search the location index
// could not serve.
func RecordGeoSearchFailure() {
	geoSearchFailuresTotal.Inc()
}
