package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hbagdi/tracepulse/pkg/db"
	"github.com/hbagdi/tracepulse/pkg/log"
	"github.com/hbagdi/tracepulse/pkg/tracer"
)

func testServer(t *testing.T) (*Server, *db.Store) {
	t.Helper()
	store, err := db.NewStore(db.StoreOpts{
		Logger:   log.Logger,
		FilePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	server, err := NewServer(Opts{
		Store:    store,
		Logger:   log.Logger,
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return server, store
}

func seedTrace(t *testing.T, store *db.Store, url string, totalMs float64) {
	t.Helper()
	_, err := store.SaveTrace(context.Background(), &tracer.TimingBreakdown{
		URL:                url,
		Method:             "GET",
		StatusCode:         200,
		DNSMs:              totalMs * 0.1,
		TCPConnectMs:       totalMs * 0.1,
		TLSHandshakeMs:     totalMs * 0.2,
		ServerProcessingMs: totalMs * 0.4,
		ContentTransferMs:  totalMs * 0.2,
		TotalMs:            totalMs,
	}, "")
	require.NoError(t, err)
}

func TestAPITraces(t *testing.T) {
	server, store := testServer(t)
	seedTrace(t, store, "https://a.example", 100)
	seedTrace(t, store, "https://b.example", 200)

	srv := httptest.NewServer(server)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/traces")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var traces []db.Trace
	require.NoError(t, json.NewDecoder(res.Body).Decode(&traces))
	require.Len(t, traces, 2)

	t.Run("url filter", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/api/traces?url=https%3A%2F%2Fa.example")
		require.NoError(t, err)
		defer res.Body.Close()
		var traces []db.Trace
		require.NoError(t, json.NewDecoder(res.Body).Decode(&traces))
		require.Len(t, traces, 1)
		require.Equal(t, "https://a.example", traces[0].URL)
	})

	t.Run("empty store yields empty array", func(t *testing.T) {
		empty, _ := testServer(t)
		srv := httptest.NewServer(empty)
		defer srv.Close()

		res, err := http.Get(srv.URL + "/api/traces")
		require.NoError(t, err)
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		require.Equal(t, "[]", strings.TrimSpace(string(body)))
	})
}

func TestAPIURLs(t *testing.T) {
	server, store := testServer(t)
	seedTrace(t, store, "https://a.example", 100)
	seedTrace(t, store, "https://a.example", 110)

	srv := httptest.NewServer(server)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/urls")
	require.NoError(t, err)
	defer res.Body.Close()
	var urls []string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&urls))
	require.Equal(t, []string{"https://a.example"}, urls)
}

func TestAPIStats(t *testing.T) {
	server, store := testServer(t)
	for _, total := range []float64{100, 200, 300} {
		seedTrace(t, store, "https://a.example", total)
	}

	srv := httptest.NewServer(server)
	defer srv.Close()

	t.Run("requires url", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/api/stats")
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	res, err := http.Get(srv.URL + "/api/stats?url=https%3A%2F%2Fa.example")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, int64(3), gjson.GetBytes(body, "stats.TraceCount").Int())
	require.Equal(t, 200.0, gjson.GetBytes(body, "stats.AvgTotalMs").Float())
	require.Equal(t, int64(3), gjson.GetBytes(body, "percentiles.Count").Int())
}

func TestAPITrend(t *testing.T) {
	server, store := testServer(t)
	seedTrace(t, store, "https://a.example", 100)
	seedTrace(t, store, "https://a.example", 150)

	srv := httptest.NewServer(server)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/trend?url=https%3A%2F%2Fa.example")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, int64(2), gjson.GetBytes(body, "#").Int())
}

func TestAPITrace(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "ok")
		}))
	defer backend.Close()

	server, store := testServer(t)
	srv := httptest.NewServer(server)
	defer srv.Close()

	t.Run("requires POST", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/api/trace")
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	})

	t.Run("requires url", func(t *testing.T) {
		res, err := http.Post(srv.URL+"/api/trace", "application/json",
			strings.NewReader(`{}`))
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live"
	conn, wsRes, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if wsRes != nil {
		defer wsRes.Body.Close()
	}
	defer conn.Close()
	require.Eventually(t, func() bool {
		return server.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	res, err := http.Post(srv.URL+"/api/trace", "application/json",
		strings.NewReader(`{"url":"`+backend.URL+`"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, backend.URL, gjson.GetBytes(body, "url").String())
	require.Equal(t, int64(200), gjson.GetBytes(body, "status_code").Int())
	require.Greater(t, gjson.GetBytes(body, "total_ms").Float(), 0.0)

	// The result lands in history under the dashboard label.
	traces, err := store.ListTraces(context.Background(), db.ListOpts{})
	require.NoError(t, err)
	require.Len(t, traces, 1)
	require.Equal(t, "dashboard", traces[0].Label)

	// And on the live feed.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, backend.URL, gjson.GetBytes(msg, "url").String())
	require.Equal(t, int64(200), gjson.GetBytes(msg, "status_code").Int())
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := testServer(t)
	srv := httptest.NewServer(server)
	defer srv.Close()

	server.Broadcast(&tracer.TimingBreakdown{
		URL:        "https://a.example",
		Method:     "GET",
		StatusCode: 200,
		DNSMs:      5,
		TotalMs:    100,
	})

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "tracepulse_traces_total")
	require.Contains(t, string(body), "tracepulse_phase_duration_seconds")
}

func TestLiveWebsocket(t *testing.T) {
	server, _ := testServer(t)
	srv := httptest.NewServer(server)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if res != nil {
		defer res.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool {
		return server.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	server.Broadcast(&tracer.TimingBreakdown{
		URL:        "https://a.example",
		Method:     "GET",
		StatusCode: 200,
		TotalMs:    42,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "https://a.example", gjson.GetBytes(msg, "url").String())
	require.Equal(t, 42.0, gjson.GetBytes(msg, "total_ms").Float())
}
