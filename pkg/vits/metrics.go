package vits

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	QueryTime prometheus.Histogram
	Errors    *prometheus.CounterVec
}

var metrics = &Metrics{
	QueryTime: prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: "vits",
		Name:      "request_seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}),
	Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "vits",
		Name:      "errors_total",
	}, []string{"endpoint", "err_code"}),
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.QueryTime)
	reg.MustRegister(metrics.Errors)
}
