package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics считает запросы REST API сервиса.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTPMetricsWithRegisterer регистрирует метрики HTTP-сервера с префиксом сервиса.
func NewHTTPMetricsWithRegisterer(reg prometheus.Registerer, service string) *HTTPMetrics {
	prefix := "storefront_" + service + "_http_"
	return &HTTPMetrics{
		requests: counterVec(reg, prefix+"requests_total",
			"Total number of HTTP requests by status code and method", "code", "method"),
		duration: register(reg, prefix+"request_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "request_duration_seconds",
			Help:    "HTTP request latency by method",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"})),
		inFlight: gauge(reg, prefix+"requests_in_flight", "Number of HTTP requests being served"),
	}
}

// Instrument оборачивает обработчик счётчиками promhttp.
func (m *HTTPMetrics) Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(m.inFlight,
		promhttp.InstrumentHandlerDuration(m.duration,
			promhttp.InstrumentHandlerCounter(m.requests, next)))
}
