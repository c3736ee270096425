package tracer

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTraceHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "hello world")
		}))
	defer srv.Close()

	tr := New()
	b := tr.Trace(context.Background(), Request{URL: srv.URL})

	require.False(t, b.Failed())
	require.Equal(t, KindNone, b.ErrorKind)
	require.Equal(t, 200, b.StatusCode)
	require.Equal(t, int64(len("hello world")), b.ResponseSize)
	require.Equal(t, "hello world", b.ResponseBody)
	require.Equal(t, "GET", b.Method)
	require.Equal(t, srv.URL, b.URL)
	require.NotEmpty(t, b.IPAddress)
	require.Empty(t, b.TLSVersion)
	require.Equal(t, "text/plain", b.HeadersReceived["content-type"])

	// Total is exactly the sum of the five phases on a single hop.
	sum := b.DNSMs + b.TCPConnectMs + b.TLSHandshakeMs +
		b.ServerProcessingMs + b.ContentTransferMs
	require.InDelta(t, sum, b.TotalMs, 0.0001)
	require.Zero(t, b.TLSHandshakeMs)
	require.GreaterOrEqual(t, b.ServerProcessingMs, 0.0)
}

func TestTraceHTTPS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "secure")
		}))
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	tr := New(WithTLSConfig(&tls.Config{RootCAs: pool}))

	b := tr.Trace(context.Background(), Request{URL: srv.URL})
	require.False(t, b.Failed(), "error: %s", b.Error)
	require.Equal(t, 200, b.StatusCode)
	require.NotEmpty(t, b.TLSVersion)
	require.Greater(t, b.TLSHandshakeMs, 0.0)
	require.Equal(t, "secure", b.ResponseBody)
}

func TestTraceChunked(t *testing.T) {
	chunks := []string{"first-", "second-", "third"}
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			flusher, ok := w.(http.Flusher)
			require.True(t, ok)
			for _, c := range chunks {
				fmt.Fprint(w, c)
				flusher.Flush()
			}
		}))
	defer srv.Close()

	tr := New()
	start := time.Now()
	b := tr.Trace(context.Background(), Request{URL: srv.URL})
	elapsed := time.Since(start)

	require.False(t, b.Failed())
	require.Equal(t, 200, b.StatusCode)
	require.Contains(t, b.HeadersReceived["transfer-encoding"], "chunked")

	var want int64
	for _, c := range chunks {
		want += int64(len(c))
	}
	require.Equal(t, want, b.ResponseSize)

	// The zero terminator ends the transfer without waiting out the idle
	// window.
	require.Less(t, elapsed, defaultIdleWindow)
}

func TestTraceIdleWindowFallback(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	// A server that sends a body with neither Content-Length nor chunked
	// framing and then holds the connection open.
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		fmt.Fprint(conn, "HTTP/1.1 200 OK\r\n"+
			"Content-Type: text/plain\r\n"+
			"\r\n"+
			"unframed body")
		time.Sleep(2 * time.Second)
	}()

	window := 150 * time.Millisecond
	tr := New(WithIdleWindow(window))
	start := time.Now()
	b := tr.Trace(context.Background(), Request{
		URL:     "http://" + l.Addr().String(),
		Timeout: 5 * time.Second,
	})
	elapsed := time.Since(start)

	// The window elapsing completes the body; it is not an error.
	require.False(t, b.Failed(), "error: %s", b.Error)
	require.Equal(t, KindNone, b.ErrorKind)
	require.Equal(t, 200, b.StatusCode)
	require.Equal(t, "unframed body", b.ResponseBody)
	require.Equal(t, int64(len("unframed body")), b.ResponseSize)

	// Completion comes from the idle window, not the peer closing.
	require.GreaterOrEqual(t, elapsed, window)
	require.Less(t, elapsed, 2*time.Second)
}

func TestTracePOSTBody(t *testing.T) {
	var gotBody string
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
			gotHeader = r.Header.Get("X-Custom")
			w.WriteHeader(http.StatusCreated)
		}))
	defer srv.Close()

	tr := New()
	b := tr.Trace(context.Background(), Request{
		URL:     srv.URL,
		Method:  "post",
		Headers: map[string]string{"X-Custom": "yes"},
		Body:    `{"k":"v"}`,
	})

	require.False(t, b.Failed())
	require.Equal(t, 201, b.StatusCode)
	require.Equal(t, "POST", b.Method)
	require.Equal(t, `{"k":"v"}`, gotBody)
	require.Equal(t, "yes", gotHeader)
}

func TestTraceRedirectFold(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/start":
				w.Header().Set("Location", "/final")
				w.WriteHeader(http.StatusMovedPermanently)
			case "/final":
				fmt.Fprint(w, "landed")
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
	defer srv.Close()

	tr := New()

	t.Run("not followed by default", func(t *testing.T) {
		b := tr.Trace(context.Background(), Request{URL: srv.URL + "/start"})
		require.False(t, b.Failed())
		require.Equal(t, 301, b.StatusCode)
	})

	t.Run("followed and folded", func(t *testing.T) {
		b := tr.Trace(context.Background(), Request{
			URL:             srv.URL + "/start",
			FollowRedirects: true,
		})
		require.False(t, b.Failed())
		require.Equal(t, 200, b.StatusCode)
		require.Equal(t, "landed", b.ResponseBody)
		// The reported URL is the one originally requested.
		require.Equal(t, srv.URL+"/start", b.URL)
		// The first hop's processing and transfer time shows up as
		// overhead after the fold.
		require.Greater(t, b.OverheadMs(), 0.0)
	})

	t.Run("budget exhaustion is a normal result", func(t *testing.T) {
		loop := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Location", "/again")
				w.WriteHeader(http.StatusFound)
			}))
		defer loop.Close()

		b := tr.Trace(context.Background(), Request{
			URL:             loop.URL,
			FollowRedirects: true,
			MaxRedirects:    2,
		})
		require.False(t, b.Failed())
		require.Equal(t, 302, b.StatusCode)
		require.Equal(t, loop.URL, b.URL)
	})
}

func TestTraceErrors(t *testing.T) {
	t.Run("invalid URL", func(t *testing.T) {
		tr := New()
		b := tr.Trace(context.Background(), Request{URL: "not a url"})
		require.True(t, b.Failed())
		require.Equal(t, KindTransport, b.ErrorKind)
	})

	t.Run("unresolvable host", func(t *testing.T) {
		tr := New()
		b := tr.Trace(context.Background(), Request{
			URL:     "http://unresolvable.invalid/",
			Timeout: 5 * time.Second,
		})
		require.True(t, b.Failed())
		require.Equal(t, KindNameResolution, b.ErrorKind)
		require.NotEmpty(t, b.Error)
	})

	t.Run("connection refused", func(t *testing.T) {
		// Grab a port that is free, then close it.
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := l.Addr().String()
		require.NoError(t, l.Close())

		tr := New()
		b := tr.Trace(context.Background(), Request{
			URL:     "http://" + addr,
			Timeout: 5 * time.Second,
		})
		require.True(t, b.Failed())
		require.Equal(t, KindConnectionRefused, b.ErrorKind)
		// Resolution succeeded before the failure.
		require.Equal(t, "127.0.0.1", b.IPAddress)
	})

	t.Run("tls handshake against plain listener", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		tr := New()
		b := tr.Trace(context.Background(), Request{
			URL:     "https" + srv.URL[len("http"):],
			Timeout: 5 * time.Second,
		})
		require.True(t, b.Failed())
		require.Equal(t, KindSecureChannel, b.ErrorKind)
	})
}

func TestTraceConcurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "ok")
		}))
	defer srv.Close()

	tr := New()
	targets := []string{srv.URL + "/a", srv.URL + "/b"}
	grouped := tr.TraceConcurrent(context.Background(), targets,
		Request{}, 3, 2)

	require.Len(t, grouped, 2)
	for _, target := range targets {
		results := grouped[target]
		require.Len(t, results, 3, "target %s", target)
		for _, b := range results {
			require.Equal(t, target, b.URL)
			require.Equal(t, 200, b.StatusCode)
		}
	}
}
