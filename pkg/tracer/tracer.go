package tracer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hbagdi/tracepulse/pkg/version"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRedirects = 10
	DefaultWorkers      = 5

	defaultIdleWindow   = 2 * time.Second
	defaultPreviewLimit = 4000
	readChunkSize       = 4096
)

// phase tags the state the probe is in, so a failure can be attributed to
// the phase that was active when it happened.
type phase int

const (
	phaseResolving phase = iota
	phaseConnecting
	phaseHandshaking
	phaseSending
	phaseAwaitingFirstByte
	phaseTransferring
	phaseComplete
)

func (p phase) String() string {
	switch p {
	case phaseResolving:
		return "resolving"
	case phaseConnecting:
		return "connecting"
	case phaseHandshaking:
		return "handshaking"
	case phaseSending:
		return "sending"
	case phaseAwaitingFirstByte:
		return "awaiting-first-byte"
	case phaseTransferring:
		return "transferring"
	case phaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Request describes one trace target.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	// Timeout bounds every transport call of the probe.
	Timeout         time.Duration
	FollowRedirects bool
	MaxRedirects    int
}

// Tracer performs phase-instrumented HTTP(S) requests over raw transport
// connections. It is safe for concurrent use.
type Tracer struct {
	clock        func() time.Time
	idleWindow   time.Duration
	tlsConfig    *tls.Config
	resolver     *net.Resolver
	previewLimit int
}

// New creates a Tracer with default settings.
func New(opts ...Option) *Tracer {
	t := &Tracer{
		clock:        time.Now,
		idleWindow:   defaultIdleWindow,
		resolver:     net.DefaultResolver,
		previewLimit: defaultPreviewLimit,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// traceOnce drives a single hop through the phase state machine:
// Resolving → Connecting → Handshaking → Sending → AwaitingFirstByte →
// Transferring → Complete. Phases are intrinsically sequential; each
// transition is timed with the monotonic clock and any failure is terminal
// for this hop.
func (t *Tracer) traceOnce(ctx context.Context, req Request) *TimingBreakdown {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = "GET"
	}
	b := &TimingBreakdown{URL: req.URL, Method: method}
	if len(req.Headers) > 0 {
		b.HeadersSent = make(map[string]string, len(req.Headers))
		for k, v := range req.Headers {
			b.HeadersSent[k] = v
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		b.ErrorKind = KindTransport
		b.Error = fmt.Sprintf("invalid target URL '%v'", req.URL)
		return b
	}
	secure := u.Scheme == "https"
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if secure {
			port = "443"
		} else {
			port = "80"
		}
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	state := phaseResolving
	fail := func(err error) *TimingBreakdown {
		b.ErrorKind, b.Error = classify(state, err, host, port, timeout)
		return b
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := t.clock()
	addrs, err := t.resolver.LookupIPAddr(ctx, host)
	b.DNSMs = t.since(start)
	if err != nil {
		return fail(err)
	}
	if len(addrs) == 0 {
		return fail(fmt.Errorf("no addresses for %s", host))
	}
	b.IPAddress = addrs[0].IP.String()

	state = phaseConnecting
	dialer := &net.Dialer{Timeout: timeout}
	start = t.clock()
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(b.IPAddress, port))
	b.TCPConnectMs = t.since(start)
	if err != nil {
		return fail(err)
	}
	defer func() {
		_ = conn.Close()
	}()

	deadline := time.Now().Add(timeout)
	_ = conn.SetDeadline(deadline)

	if secure {
		state = phaseHandshaking
		cfg := t.tlsConfig.Clone()
		if cfg == nil {
			cfg = &tls.Config{}
		}
		if cfg.ServerName == "" {
			cfg.ServerName = host
		}
		tlsConn := tls.Client(conn, cfg)
		start = t.clock()
		err = tlsConn.HandshakeContext(ctx)
		b.TLSHandshakeMs = t.since(start)
		if err != nil {
			return fail(err)
		}
		b.TLSVersion = tls.VersionName(tlsConn.ConnectionState().Version)
		conn = tlsConn
	}

	state = phaseSending
	raw := buildRequest(method, path, host, req.Headers, req.Body)
	sendStart := t.clock()
	if _, err := conn.Write(raw); err != nil {
		return fail(err)
	}

	// Server processing is measured from the instant the request bytes are
	// handed to the transport to the first response byte.
	state = phaseAwaitingFirstByte
	buf := make([]byte, readChunkSize)
	n, err := conn.Read(buf)
	if err != nil {
		return fail(err)
	}
	b.ServerProcessingMs = t.since(sendStart)
	data := append([]byte(nil), buf[:n]...)

	state = phaseTransferring
	transferStart := t.clock()
	framer := Framer{}
	for {
		if header, body, ok := splitMessage(data); ok {
			if framer.Complete(parseHeaderFields(header), body) {
				break
			}
		}
		// Reads past the first byte run under the idle window so a
		// keep-alive connection with no framing signal cannot stall the
		// probe; the overall deadline still wins when it is nearer.
		idleDeadline := time.Now().Add(t.idleWindow)
		if idleDeadline.After(deadline) {
			idleDeadline = deadline
		}
		_ = conn.SetReadDeadline(idleDeadline)
		n, err = conn.Read(buf)
		if err != nil {
			if bodyEnded(err) {
				break
			}
			b.ContentTransferMs = t.since(transferStart)
			return fail(err)
		}
		data = append(data, buf[:n]...)
	}
	b.ContentTransferMs = t.since(transferStart)

	t.finishResponse(b, data)

	b.TotalMs = b.DNSMs + b.TCPConnectMs + b.TLSHandshakeMs +
		b.ServerProcessingMs + b.ContentTransferMs
	return b
}

func (t *Tracer) since(start time.Time) float64 {
	return float64(t.clock().Sub(start)) / float64(time.Millisecond)
}

// buildRequest assembles the raw HTTP/1.1 request bytes. The minimum
// header set is always present; caller-supplied headers override defaults
// by key. A body adds a computed Content-Length.
func buildRequest(method, path, host string, extra map[string]string, body string) []byte {
	merged := map[string]string{
		"Host":       host,
		"User-Agent": "tracepulse/" + version.Version,
		"Accept":     "*/*",
	}
	keys := []string{"Host", "User-Agent", "Accept"}

	extraKeys := make([]string, 0, len(extra))
	for k := range extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		if _, ok := merged[k]; !ok {
			keys = append(keys, k)
		}
		merged[k] = extra[k]
	}

	var sb strings.Builder
	sb.WriteString(method + " " + path + " HTTP/1.1\r\n")
	for _, k := range keys {
		sb.WriteString(k + ": " + merged[k] + "\r\n")
	}
	if body != "" {
		sb.WriteString(fmt.Sprintf("Content-Length: %d\r\n", len(body)))
	}
	sb.WriteString("\r\n")
	if body != "" {
		sb.WriteString(body)
	}
	return []byte(sb.String())
}
