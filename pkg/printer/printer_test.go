package printer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hbagdi/tracepulse/pkg/tracer"
)

func sampleBreakdown() *tracer.TimingBreakdown {
	return &tracer.TimingBreakdown{
		URL:                "https://example.com",
		Method:             "GET",
		StatusCode:         200,
		ResponseSize:       2048,
		IPAddress:          "93.184.216.34",
		TLSVersion:         "TLS 1.3",
		DNSMs:              5,
		TCPConnectMs:       10,
		TLSHandshakeMs:     15,
		ServerProcessingMs: 60,
		ContentTransferMs:  10,
		TotalMs:            100,
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(Opts{Writer: &buf, Mode: ModeNoColor})
	require.NoError(t, p.Print(sampleBreakdown()))

	out := buf.String()
	require.Contains(t, out, "GET https://example.com")
	require.Contains(t, out, "93.184.216.34")
	require.Contains(t, out, "TLS 1.3")
	require.Contains(t, out, "200")
	require.Contains(t, out, "2.0 KB")
	for _, phase := range []string{"DNS Lookup", "TCP Connect",
		"TLS Handshake", "Server Processing", "Content Transfer", "Total"} {
		require.Contains(t, out, phase)
	}
	// Server processing is 60% of the total.
	require.Contains(t, out, "bottleneck")
}

func TestPrintNoBottleneck(t *testing.T) {
	b := sampleBreakdown()
	b.ServerProcessingMs = 20
	b.ContentTransferMs = 50
	var buf bytes.Buffer
	p := NewPrinter(Opts{Writer: &buf, Mode: ModeNoColor})
	require.NoError(t, p.Print(b))
	require.NotContains(t, buf.String(), "bottleneck")
}

func TestPrintError(t *testing.T) {
	b := &tracer.TimingBreakdown{
		URL:       "https://down.example",
		Method:    "GET",
		Error:     "connection refused by down.example:443",
		ErrorKind: tracer.KindConnectionRefused,
	}
	var buf bytes.Buffer
	p := NewPrinter(Opts{Writer: &buf, Mode: ModeNoColor})
	require.NoError(t, p.Print(b))
	require.Contains(t, buf.String(), "error(connection-refused)")
	require.Contains(t, buf.String(), "connection refused by down.example:443")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(Opts{Writer: &buf, Mode: ModeNoColor})
	require.NoError(t, p.PrintJSON(sampleBreakdown()))

	out := buf.String()
	require.Equal(t, "https://example.com", gjson.Get(out, "url").String())
	require.Equal(t, 100.0, gjson.Get(out, "total_ms").Float())
}

func TestPrintComparison(t *testing.T) {
	fast := sampleBreakdown()
	slow := sampleBreakdown()
	slow.URL = "https://slow.example"
	slow.TotalMs = 500

	var buf bytes.Buffer
	p := NewPrinter(Opts{Writer: &buf, Mode: ModeNoColor})
	require.NoError(t, p.PrintComparison(map[string]*tracer.TimingBreakdown{
		fast.URL: fast,
		slow.URL: slow,
	}))

	out := buf.String()
	require.Contains(t, out, "https://example.com")
	require.Contains(t, out, "https://slow.example")
	// The fastest line carries the marker.
	lines := bytes.Split(buf.Bytes(), []byte("\n"))
	for _, line := range lines {
		if bytes.Contains(line, []byte("fastest")) {
			require.Contains(t, string(line), "https://example.com")
		}
	}
}

func TestFormatSize(t *testing.T) {
	require.Equal(t, "10 B", formatSize(10))
	require.Equal(t, "1.5 KB", formatSize(1536))
	require.Equal(t, "2.0 MB", formatSize(2<<20))
}
