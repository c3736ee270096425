package tracer

import (
	"bytes"
	"strconv"
	"strings"
)

// Framer decides, from the bytes received so far, whether a response body
// is complete. Completion is signalled either by an explicit
// Content-Length or by the chunked zero-length terminator. When neither
// signal is present Complete always returns false and the probe falls
// back to its idle-read window; that fallback is a heuristic, not a
// protocol guarantee. It can under-read a slow unterminated stream or
// over-wait briefly on an empty body.
type Framer struct{}

// Complete reports whether the body is complete given the declared header
// fields (lower-cased keys) and the body bytes observed so far.
func (Framer) Complete(header map[string]string, body []byte) bool {
	if v, ok := header["content-length"]; ok {
		expected, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err == nil {
			return int64(len(body)) >= expected
		}
	}
	if strings.Contains(strings.ToLower(header["transfer-encoding"]), "chunked") {
		return bytes.HasSuffix(body, []byte("0\r\n\r\n"))
	}
	return false
}

// ChunkedSize computes the response size of a chunked body by summing the
// declared (hex) chunk lengths, independent of how many partial reads the
// transport delivered.
func ChunkedSize(body []byte) int64 {
	var total int64
	parts := bytes.Split(body, []byte("\r\n"))
	for i := 0; i < len(parts); i++ {
		line := bytes.TrimSpace(parts[i])
		if len(line) == 0 {
			continue
		}
		size, err := strconv.ParseInt(string(line), 16, 64)
		if err != nil {
			// Not a length prefix; count the raw bytes.
			total += int64(len(parts[i]))
			continue
		}
		if size == 0 {
			break
		}
		total += size
		// Skip the chunk data line.
		i++
	}
	return total
}
