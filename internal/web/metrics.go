package web

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// prometheusNamespace is the prometheus namespace for the metrics
	prometheusNamespace = "calltrace"

	endpointLabel = "endpoint"

	requestCountMetricName   = "api_requests_total"
	loadErrorCountMetricName = "load_errors_total"
	traceLinesMetricName     = "trace_lines"
	visibleLinesMetricName   = "visible_lines"
	functionsMetricName      = "functions"
)

// metrics tracks API usage and the shape of the trace last served.
type metrics struct {
	requestCount   *prometheus.CounterVec
	loadErrorCount prometheus.Counter
	traceLines     prometheus.Gauge
	visibleLines   prometheus.Gauge
	functions      prometheus.Gauge
}

// observeSnapshot records the size of a freshly loaded snapshot.
func (m *metrics) observeSnapshot(s snapshot) {
	m.traceLines.Set(float64(s.summary.Lines))
	m.visibleLines.Set(float64(len(s.lines)))
	m.functions.Set(float64(s.info.Len()))
}

// registerMetrics registers the server metrics with reg.
func registerMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      requestCountMetricName,
			Help:      "Number of API requests served, by endpoint.",
		}, []string{endpointLabel}),
		loadErrorCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      loadErrorCountMetricName,
			Help:      "Number of failed trace or visibility loads.",
		}),
		traceLines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      traceLinesMetricName,
			Help:      "Number of lines in the trace file at the last load.",
		}),
		visibleLines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      visibleLinesMetricName,
			Help:      "Number of lines shown under the persisted visibility at the last load.",
		}),
		functions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      functionsMetricName,
			Help:      "Number of distinct functions in the trace at the last load.",
		}),
	}

	reg.MustRegister(m.requestCount)
	reg.MustRegister(m.loadErrorCount)
	reg.MustRegister(m.traceLines)
	reg.MustRegister(m.visibleLines)
	reg.MustRegister(m.functions)

	return m
}
