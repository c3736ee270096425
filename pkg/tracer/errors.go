package tracer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// classify maps a transport error, together with the phase that was active
// when it happened, to an error kind and a human-readable message.
func classify(state phase, err error, host, port string, timeout time.Duration) (ErrorKind, string) {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr) || state == phaseResolving:
		return KindNameResolution,
			fmt.Sprintf("name resolution failed for %s: %v", host, err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused,
			fmt.Sprintf("connection refused by %s:%s", host, port)
	case isTimeout(err):
		return KindTimeout,
			fmt.Sprintf("%s %s:%s timed out after %v", state, host, port, timeout)
	case state == phaseHandshaking:
		return KindSecureChannel,
			fmt.Sprintf("TLS handshake with %s failed: %v", host, err)
	default:
		return KindTransport,
			fmt.Sprintf("request failed while %s: %v", state, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// bodyEnded reports whether a read error marks the end of the body rather
// than a failure: the peer closing the connection, or the idle window
// elapsing with no framing signal. Neither is an error by contract.
func bodyEnded(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		isTimeout(err)
}
