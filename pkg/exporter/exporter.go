// Package exporter renders stored traces as CSV, JSON, or a standalone
// HTML report.
package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hbagdi/tracepulse/pkg/db"
)

// CSV renders traces as comma-separated rows with a header line. An empty
// input produces an empty string.
func CSV(traces []db.Trace) (string, error) {
	if len(traces) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"id", "url", "method", "status_code", "response_size",
		"ip_address", "tls_version", "dns_ms", "tcp_connect_ms",
		"tls_handshake_ms", "server_processing_ms", "content_transfer_ms",
		"total_ms", "error", "label", "created_at",
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %v", err)
	}
	for _, t := range traces {
		row := []string{
			strconv.FormatInt(t.ID, 10),
			t.URL,
			t.Method,
			strconv.Itoa(t.StatusCode),
			strconv.FormatInt(t.ResponseSize, 10),
			t.IPAddress,
			t.TLSVersion,
			formatMs(t.DNSMs),
			formatMs(t.TCPConnectMs),
			formatMs(t.TLSHandshakeMs),
			formatMs(t.ServerProcessingMs),
			formatMs(t.ContentTransferMs),
			formatMs(t.TotalMs),
			t.Error,
			t.Label,
			time.Unix(t.CreatedAt, 0).Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %v", err)
	}
	return buf.String(), nil
}

func formatMs(ms float64) string {
	return strconv.FormatFloat(ms, 'f', 2, 64)
}

type jsonTrace struct {
	ID                 int64             `json:"id"`
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
	Error              string            `json:"error,omitempty"`
	HeadersSent        map[string]string `json:"headers_sent,omitempty"`
	HeadersReceived    map[string]string `json:"headers_received,omitempty"`
	Label              string            `json:"label,omitempty"`
	CreatedAt          int64             `json:"created_at"`
	CreatedAtISO       string            `json:"created_at_iso"`
}

// JSON renders traces as an indented JSON array, with the stored header
// blobs decoded back into mappings.
func JSON(traces []db.Trace) (string, error) {
	out := make([]jsonTrace, 0, len(traces))
	for _, t := range traces {
		jt := jsonTrace{
			ID:                 t.ID,
			URL:                t.URL,
			Method:             t.Method,
			StatusCode:         t.StatusCode,
			ResponseSize:       t.ResponseSize,
			IPAddress:          t.IPAddress,
			TLSVersion:         t.TLSVersion,
			DNSMs:              t.DNSMs,
			TCPConnectMs:       t.TCPConnectMs,
			TLSHandshakeMs:     t.TLSHandshakeMs,
			ServerProcessingMs: t.ServerProcessingMs,
			ContentTransferMs:  t.ContentTransferMs,
			TotalMs:            t.TotalMs,
			Error:              t.Error,
			Label:              t.Label,
			CreatedAt:          t.CreatedAt,
			CreatedAtISO:       time.Unix(t.CreatedAt, 0).Format(time.RFC3339),
		}
		// Stored header blobs that fail to decode stay omitted.
		_ = json.Unmarshal([]byte(t.HeadersSent), &jt.HeadersSent)
		_ = json.Unmarshal([]byte(t.HeadersReceived), &jt.HeadersReceived)
		out = append(out, jt)
	}
	js, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal traces: %v", err)
	}
	return string(js), nil
}
