package tracer

import (
	"context"
	"net/url"
)

func isRedirect(code int) bool {
	switch code {
	case 301, 302, 303, 307, 308:
		return true
	}
	return false
}

// Trace performs one request and, when asked, follows redirects with a
// bounded loop, folding each hop's connection-setup cost into the final
// breakdown. It always returns a well-formed breakdown, never an error.
//
// Redirect cycles are bounded only by the hop budget, not cycle-detected:
// a two-URL ping-pong runs the budget down before stopping.
func (t *Tracer) Trace(ctx context.Context, req Request) *TimingBreakdown {
	remaining := 0
	if req.FollowRedirects {
		remaining = req.MaxRedirects
		if remaining <= 0 {
			remaining = DefaultMaxRedirects
		}
	}

	var acc hopCost
	current := req
	for {
		b := t.traceOnce(ctx, current)
		if b.Failed() || !isRedirect(b.StatusCode) || remaining <= 0 {
			return acc.apply(b, req.URL)
		}
		next := resolveLocation(b.HeadersReceived["location"], current.URL)
		if next == "" {
			// Budget left but nowhere to go; the redirect-status result is
			// a normal outcome, not an error.
			return acc.apply(b, req.URL)
		}
		acc = acc.add(b)
		remaining--
		current.URL = next
	}
}

// hopCost accumulates the timings of earlier redirect hops.
type hopCost struct {
	dnsMs   float64
	tcpMs   float64
	tlsMs   float64
	totalMs float64
}

func (c hopCost) add(b *TimingBreakdown) hopCost {
	c.dnsMs += b.DNSMs
	c.tcpMs += b.TCPConnectMs
	c.tlsMs += b.TLSHandshakeMs
	c.totalMs += b.TotalMs
	return c
}

// apply folds the accumulated hop costs into the final hop's breakdown.
// Resolution, connect and handshake are incremented so the cost of
// establishing earlier connections is preserved; processing and transfer
// stay as measured on the final hop; total grows by the earlier hops'
// totals. The reported URL is always the one originally requested.
func (c hopCost) apply(b *TimingBreakdown, originalURL string) *TimingBreakdown {
	b.DNSMs += c.dnsMs
	b.TCPConnectMs += c.tcpMs
	b.TLSHandshakeMs += c.tlsMs
	b.TotalMs += c.totalMs
	b.URL = originalURL
	return b
}

// resolveLocation resolves a possibly relative Location header against the
// URL of the hop that produced it.
func resolveLocation(location, base string) string {
	if location == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}
