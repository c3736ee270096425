package tracer

import (
	"encoding/json"
	"math"
)

// ErrorKind classifies a terminal probe failure.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindNameResolution    ErrorKind = "name-resolution"
	KindConnectionRefused ErrorKind = "connection-refused"
	KindTimeout           ErrorKind = "timeout"
	KindSecureChannel     ErrorKind = "secure-channel"
	KindTransport         ErrorKind = "transport"
)

// TimingBreakdown is the result of one traced request. It is written only
// by the probe that produced it and must be treated as immutable once
// returned.
type TimingBreakdown struct {
	DNSMs              float64
	TCPConnectMs       float64
	TLSHandshakeMs     float64
	ServerProcessingMs float64
	ContentTransferMs  float64
	TotalMs            float64

	URL          string
	Method       string
	StatusCode   int
	ResponseSize int64
	IPAddress    string
	TLSVersion   string

	HeadersSent     map[string]string
	HeadersReceived map[string]string
	// ResponseBody holds a truncated preview of the body, for diagnostics
	// only.
	ResponseBody string
	GeoInfo      string

	Error     string
	ErrorKind ErrorKind
}

// OverheadMs returns the time not accounted for in the five phases.
// Total is authoritative: after a redirect fold it exceeds the phase sum
// by the earlier hops' processing and transfer time.
func (t *TimingBreakdown) OverheadMs() float64 {
	accounted := t.DNSMs +
		t.TCPConnectMs +
		t.TLSHandshakeMs +
		t.ServerProcessingMs +
		t.ContentTransferMs
	return math.Max(0, t.TotalMs-accounted)
}

// Failed reports whether the probe terminated with an error.
func (t *TimingBreakdown) Failed() bool {
	return t.Error != ""
}

// MarshalJSON emits millisecond fields rounded to two decimals, the
// precision downstream consumers expect.
func (t *TimingBreakdown) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		URL                string            `json:"url"`
		Method             string            `json:"method"`
		StatusCode         int               `json:"status_code"`
		ResponseSize       int64             `json:"response_size"`
		IPAddress          string            `json:"ip_address"`
		TLSVersion         string            `json:"tls_version"`
		DNSMs              float64           `json:"dns_ms"`
		TCPConnectMs       float64           `json:"tcp_connect_ms"`
		TLSHandshakeMs     float64           `json:"tls_handshake_ms"`
		ServerProcessingMs float64           `json:"server_processing_ms"`
		ContentTransferMs  float64           `json:"content_transfer_ms"`
		TotalMs            float64           `json:"total_ms"`
		OverheadMs         float64           `json:"overhead_ms"`
		ResponseBody       string            `json:"response_body"`
		GeoInfo            string            `json:"geo_info"`
		HeadersReceived    map[string]string `json:"headers_received,omitempty"`
		Error              string            `json:"error,omitempty"`
	}{
		URL:                t.URL,
		Method:             t.Method,
		StatusCode:         t.StatusCode,
		ResponseSize:       t.ResponseSize,
		IPAddress:          t.IPAddress,
		TLSVersion:         t.TLSVersion,
		DNSMs:              RoundMs(t.DNSMs),
		TCPConnectMs:       RoundMs(t.TCPConnectMs),
		TLSHandshakeMs:     RoundMs(t.TLSHandshakeMs),
		ServerProcessingMs: RoundMs(t.ServerProcessingMs),
		ContentTransferMs:  RoundMs(t.ContentTransferMs),
		TotalMs:            RoundMs(t.TotalMs),
		OverheadMs:         RoundMs(t.OverheadMs()),
		ResponseBody:       t.ResponseBody,
		GeoInfo:            t.GeoInfo,
		HeadersReceived:    t.HeadersReceived,
		Error:              t.Error,
	})
}

// RoundMs rounds a millisecond value to two decimals.
func RoundMs(ms float64) float64 {
	return math.Round(ms*100) / 100
}
