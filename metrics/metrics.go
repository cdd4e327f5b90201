// Package metrics exposes Prometheus counters for contributions, top-ups and
// HTTP traffic. A Metrics value satisfies gifting.Observer and
// wallet.TopUpObserver.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/gifting"
)

const namespace = "giftledger"

type Metrics struct {
	Contributions      *prometheus.CounterVec
	ContributedAmount  prometheus.Counter
	GiftsFunded        prometheus.Counter
	ConflictRetries    prometheus.Counter
	Compensations      prometheus.Counter
	TopUps             *prometheus.CounterVec
	ToppedUpAmount     prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contributions_total",
			Help:      "Contribution attempts by outcome.",
		}, []string{"outcome"}),
		ContributedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contributed_amount_total",
			Help:      "Sum of committed contributions in currency units.",
		}),
		GiftsFunded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gifts_funded_total",
			Help:      "Gifts that reached full funding.",
		}),
		ConflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contribution_conflict_retries_total",
			Help:      "Contribution attempts retried after a lock conflict.",
		}),
		Compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contribution_compensations_total",
			Help:      "Wallet debits reversed because the gift update failed.",
		}),
		TopUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topups_total",
			Help:      "Wallet top-ups by outcome.",
		}, []string{"outcome"}),
		ToppedUpAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topped_up_amount_total",
			Help:      "Sum of credited top-ups in currency units.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.Contributions,
		m.ContributedAmount,
		m.GiftsFunded,
		m.ConflictRetries,
		m.Compensations,
		m.TopUps,
		m.ToppedUpAmount,
		m.HTTPRequests,
		m.HTTPRequestSeconds,
	)
	return m
}

// =============================================================================
// gifting.Observer
// =============================================================================

func (m *Metrics) ContributionCommitted(amount generic.Amount, completedGift bool) {
	m.Contributions.WithLabelValues("committed").Inc()
	m.ContributedAmount.Add(amount.Value.InexactFloat64())
	if completedGift {
		m.GiftsFunded.Inc()
	}
}

func (m *Metrics) ContributionRejected(kind gifting.Kind) {
	m.Contributions.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) ConflictRetried() { m.ConflictRetries.Inc() }

func (m *Metrics) Compensated() { m.Compensations.Inc() }

// =============================================================================
// wallet.TopUpObserver
// =============================================================================

func (m *Metrics) TopUpCompleted(amount generic.Amount) {
	m.TopUps.WithLabelValues("completed").Inc()
	m.ToppedUpAmount.Add(amount.Value.InexactFloat64())
}

func (m *Metrics) TopUpFailed(reason string) {
	m.TopUps.WithLabelValues(reason).Inc()
}

// =============================================================================
// HTTP
// =============================================================================

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.HTTPRequestSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
