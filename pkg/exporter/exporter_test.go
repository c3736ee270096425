package exporter

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hbagdi/tracepulse/pkg/db"
)

func sampleTraces() []db.Trace {
	return []db.Trace{
		{
			ID:                 2,
			URL:                "https://b.example",
			Method:             "GET",
			StatusCode:         200,
			ResponseSize:       1024,
			IPAddress:          "10.0.0.2",
			TLSVersion:         "TLS 1.3",
			DNSMs:              5.5,
			TCPConnectMs:       10.25,
			TLSHandshakeMs:     20,
			ServerProcessingMs: 50,
			ContentTransferMs:  14.25,
			TotalMs:            100,
			HeadersSent:        `{"Accept":"*/*"}`,
			HeadersReceived:    `{"content-type":"text/html"}`,
			Label:              "nightly",
			CreatedAt:          1700000000,
		},
		{
			ID:        1,
			URL:       "https://a.example",
			Method:    "GET",
			Error:     "connection refused by a.example:443",
			CreatedAt: 1699999000,
		},
	}
}

func TestCSV(t *testing.T) {
	out, err := CSV(sampleTraces())
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "id", records[0][0])
	require.Equal(t, "url", records[0][1])
	require.Equal(t, "2", records[1][0])
	require.Equal(t, "https://b.example", records[1][1])
	require.Equal(t, "100.00", records[1][12])
	require.Equal(t, "connection refused by a.example:443", records[2][13])
}

func TestCSVEmpty(t *testing.T) {
	out, err := CSV(nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestJSON(t *testing.T) {
	out, err := JSON(sampleTraces())
	require.NoError(t, err)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)

	first := decoded[0]
	require.Equal(t, "https://b.example", first["url"])
	require.Equal(t, 100.0, first["total_ms"])
	headers, ok := first["headers_sent"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "*/*", headers["Accept"])
	require.NotEmpty(t, first["created_at_iso"])

	second := decoded[1]
	require.Equal(t, "connection refused by a.example:443", second["error"])
	require.NotContains(t, second, "headers_sent")
}

func TestJSONEmpty(t *testing.T) {
	out, err := JSON(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", out)
}

func TestHTML(t *testing.T) {
	stats := &db.Stats{
		TraceCount: 2,
		AvgTotalMs: 50,
		MinTotalMs: 0,
		MaxTotalMs: 100,
	}
	out, err := HTML(sampleTraces(), "https://b.example", stats)
	require.NoError(t, err)

	require.Contains(t, out, "<!doctype html>")
	require.Contains(t, out, "https://b.example")
	require.Contains(t, out, "2 traces")
	require.Contains(t, out, "100.00")
	require.Contains(t, out, "connection refused by a.example:443")
}

func TestHTMLWithoutStats(t *testing.T) {
	out, err := HTML(sampleTraces(), "", nil)
	require.NoError(t, err)
	require.NotContains(t, out, "class=\"summary\"")
}
