/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsSubsystem = "restapi"

	metricsLabelResponseErrorDomain = "domain"
	metricsLabelResponseErrorCode   = "code"
)

// ResponseErrorsMetrics counts errors sent by RespondError.
type ResponseErrorsMetrics struct {
	ResponseErrors *prometheus.CounterVec
}

var responseErrorsMetrics atomic.Pointer[ResponseErrorsMetrics]

// NewResponseErrorsMetrics creates a new ResponseErrorsMetrics.
func NewResponseErrorsMetrics(namespace string) *ResponseErrorsMetrics {
	return &ResponseErrorsMetrics{
		ResponseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "response_errors_total",
			Help:      "The total number of REST API errors that were respond.",
		}, []string{metricsLabelResponseErrorDomain, metricsLabelResponseErrorCode}),
	}
}

// MustRegister registers the collectors in the Prometheus default registry
// and makes RespondError report to them.
func (m *ResponseErrorsMetrics) MustRegister() {
	prometheus.MustRegister(m.ResponseErrors)
	responseErrorsMetrics.Store(m)
}

// Unregister cancels registration of the collectors.
func (m *ResponseErrorsMetrics) Unregister() {
	responseErrorsMetrics.CompareAndSwap(m, nil)
	prometheus.Unregister(m.ResponseErrors)
}

func (m *ResponseErrorsMetrics) incResponseError(domain, code string) {
	m.ResponseErrors.With(prometheus.Labels{
		metricsLabelResponseErrorDomain: domain,
		metricsLabelResponseErrorCode:   code,
	}).Inc()
}
