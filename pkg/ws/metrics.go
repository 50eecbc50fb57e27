package ws

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	WebSocketConnections prometheus.Gauge
}

var metrics = &Metrics{
	WebSocketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "panel",
		Name:      "ws_conns",
		Help:      "Open settings panel and host websocket connections.",
	}),
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.WebSocketConnections)
}
