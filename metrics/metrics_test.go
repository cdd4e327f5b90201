package metrics_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/gifting"
	"github.com/smartgifter/giftledger/metrics"
)

func TestMetrics_Contributions(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ContributionCommitted(generic.MustAmount("40.00", generic.USD), false)
	m.ContributionCommitted(generic.MustAmount("60.00", generic.USD), true)
	m.ContributionRejected(gifting.KindInsufficientFunds)
	m.ConflictRetried()
	m.Compensated()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Contributions.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Contributions.WithLabelValues("INSUFFICIENT_FUNDS")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.ContributedAmount))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GiftsFunded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConflictRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compensations))
}

func TestMetrics_TopUps(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.TopUpCompleted(generic.MustAmount("25.00", generic.USD))
	m.TopUpFailed("declined")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TopUps.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TopUps.WithLabelValues("declined")))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.ToppedUpAmount))
}

func TestMetrics_RequestsByStatusClass(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveRequest(http.MethodPost, "/api/gifts/{id}/contributions", http.StatusCreated, 5*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/api/gifts/{id}/contributions", http.StatusConflict, time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/api/gifts/{id}/contributions", http.StatusUnprocessableEntity, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/gifts/{id}/contributions", "2xx")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/gifts/{id}/contributions", "4xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestSeconds))
}
