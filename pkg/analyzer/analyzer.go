// Package analyzer detects latency regressions by comparing recent traces
// against a historical baseline.
package analyzer

import (
	"fmt"

	"github.com/hbagdi/tracepulse/pkg/db"
)

// Regression describes one phase whose recent mean exceeds its baseline.
type Regression struct {
	URL        string
	Phase      string
	BaselineMs float64
	CurrentMs  float64
	ChangePct  float64
	Severity   string
	Message    string
}

const (
	DefaultRecentCount  = 5
	DefaultThresholdPct = 20.0

	// minBaseline is the minimum sample surplus beyond the recent window
	// before a comparison is meaningful.
	minBaseline = 3
)

type phaseField struct {
	name  string
	value func(db.Trace) float64
}

var phaseFields = []phaseField{
	{"DNS Lookup", func(t db.Trace) float64 { return t.DNSMs }},
	{"TCP Connect", func(t db.Trace) float64 { return t.TCPConnectMs }},
	{"TLS Handshake", func(t db.Trace) float64 { return t.TLSHandshakeMs }},
	{"Server Processing", func(t db.Trace) float64 { return t.ServerProcessingMs }},
	{"Content Transfer", func(t db.Trace) float64 { return t.ContentTransferMs }},
	{"Total Latency", func(t db.Trace) float64 { return t.TotalMs }},
}

// DetectRegressions compares the recentCount newest traces against the
// remainder of the list (the baseline). Traces must be ordered newest
// first, as ListTraces returns them. A phase regresses when its recent
// mean exceeds the baseline mean by more than thresholdPct percent.
func DetectRegressions(traces []db.Trace, recentCount int, thresholdPct float64) []Regression {
	if recentCount <= 0 {
		recentCount = DefaultRecentCount
	}
	if thresholdPct <= 0 {
		thresholdPct = DefaultThresholdPct
	}
	if len(traces) < recentCount+minBaseline {
		return nil
	}
	recent := traces[:recentCount]
	baseline := traces[recentCount:]

	url := traces[0].URL
	var res []Regression
	for _, f := range phaseFields {
		baselineAvg := mean(baseline, f.value)
		recentAvg := mean(recent, f.value)
		if baselineAvg == 0 {
			continue
		}
		changePct := (recentAvg - baselineAvg) / baselineAvg * 100
		if changePct <= thresholdPct {
			continue
		}
		res = append(res, Regression{
			URL:        url,
			Phase:      f.name,
			BaselineMs: baselineAvg,
			CurrentMs:  recentAvg,
			ChangePct:  changePct,
			Severity:   severityFromPct(changePct),
			Message: fmt.Sprintf("%s increased by %.1f%% (%.1fms -> %.1fms)",
				f.name, changePct, baselineAvg, recentAvg),
		})
	}
	return res
}

func mean(traces []db.Trace, value func(db.Trace) float64) float64 {
	if len(traces) == 0 {
		return 0
	}
	var sum float64
	for _, t := range traces {
		sum += value(t)
	}
	return sum / float64(len(traces))
}

func severityFromPct(pct float64) string {
	switch {
	case pct < 20:
		return "low"
	case pct < 50:
		return "medium"
	case pct < 100:
		return "high"
	default:
		return "critical"
	}
}

// TrendPoint is one sample in a chronological latency series.
type TrendPoint struct {
	Timestamp          int64   `json:"timestamp"`
	DNSMs              float64 `json:"dns_ms"`
	TCPConnectMs       float64 `json:"tcp_connect_ms"`
	TLSHandshakeMs     float64 `json:"tls_handshake_ms"`
	ServerProcessingMs float64 `json:"server_processing_ms"`
	ContentTransferMs  float64 `json:"content_transfer_ms"`
	TotalMs            float64 `json:"total_ms"`
	StatusCode         int     `json:"status_code"`
}

// Trend converts a newest-first trace list into a chronological series.
func Trend(traces []db.Trace) []TrendPoint {
	res := make([]TrendPoint, 0, len(traces))
	for i := len(traces) - 1; i >= 0; i-- {
		t := traces[i]
		res = append(res, TrendPoint{
			Timestamp:          t.CreatedAt,
			DNSMs:              t.DNSMs,
			TCPConnectMs:       t.TCPConnectMs,
			TLSHandshakeMs:     t.TLSHandshakeMs,
			ServerProcessingMs: t.ServerProcessingMs,
			ContentTransferMs:  t.ContentTransferMs,
			TotalMs:            t.TotalMs,
			StatusCode:         t.StatusCode,
		})
	}
	return res
}
