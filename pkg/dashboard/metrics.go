package dashboard

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hbagdi/tracepulse/pkg/tracer"
)

type metrics struct {
	phaseDuration *prometheus.HistogramVec
	traceCounter  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "tracepulse_phase_duration_seconds",
				Help: "Duration of request phases in seconds",
				Buckets: []float64{
					0.001, 0.005, 0.01, 0.025, 0.05, 0.1,
					0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
				},
			},
			[]string{"phase", "method", "url", "code", "status"},
		),
		traceCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepulse_traces_total",
				Help: "Total number of traces recorded",
			},
			[]string{"method", "url", "code", "status"},
		),
	}
	reg.MustRegister(m.phaseDuration, m.traceCounter)
	return m
}

func (m *metrics) observe(b *tracer.TimingBreakdown) {
	status := "success"
	if b.Failed() {
		status = "error"
	}
	labels := prometheus.Labels{
		"method": b.Method,
		"url":    b.URL,
		"code":   strconv.Itoa(b.StatusCode),
		"status": status,
	}
	m.traceCounter.With(labels).Inc()

	phases := map[string]float64{
		"dns":      b.DNSMs,
		"connect":  b.TCPConnectMs,
		"tls":      b.TLSHandshakeMs,
		"server":   b.ServerProcessingMs,
		"transfer": b.ContentTransferMs,
		"total":    b.TotalMs,
	}
	for phase, ms := range phases {
		if ms <= 0 && phase != "total" {
			continue
		}
		m.phaseDuration.With(prometheus.Labels{
			"phase":  phase,
			"method": b.Method,
			"url":    b.URL,
			"code":   labels["code"],
			"status": status,
		}).Observe(ms / 1000)
	}
}
