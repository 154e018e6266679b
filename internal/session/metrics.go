package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes, used as the result label.
const (
	resultSuccess = "success"
	resultShared  = "shared"
	resultFailure = "failure"
	resultInvalid = "invalid_response"
	resultNoToken = "no_token"
)

type Metrics struct {
	refreshes *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		refreshes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "petition_web",
			Name:      "token_refresh_total",
			Help:      "Access token refresh attempts by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) observeRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}
