package tracer

import (
	"crypto/tls"
	"net"
	"time"
)

// Option is a functional option for configuring a Tracer.
type Option func(*Tracer)

// WithClock sets a custom clock function for testing.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracer) {
		t.clock = clock
	}
}

// WithIdleWindow sets the secondary read window used when a response
// carries neither a content-length nor chunked framing. Once no bytes
// arrive within the window the body is treated as complete.
func WithIdleWindow(d time.Duration) Option {
	return func(t *Tracer) {
		t.idleWindow = d
	}
}

// WithTLSConfig sets the TLS client configuration. The default is the
// platform trust policy; tests use this to pin a local certificate.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(t *Tracer) {
		t.tlsConfig = cfg
	}
}

// WithResolver sets a custom name resolver.
func WithResolver(r *net.Resolver) Option {
	return func(t *Tracer) {
		t.resolver = r
	}
}

// WithPreviewLimit bounds the stored response body preview in bytes.
func WithPreviewLimit(n int) Option {
	return func(t *Tracer) {
		t.previewLimit = n
	}
}
