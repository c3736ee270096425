package tracer

import (
	"bytes"
	"strconv"
	"strings"
)

var headerBodySep = []byte("\r\n\r\n")

// splitMessage locates the header/body boundary in the buffered response
// bytes.
func splitMessage(data []byte) (header, body []byte, ok bool) {
	idx := bytes.Index(data, headerBodySep)
	if idx == -1 {
		return nil, nil, false
	}
	return data[:idx], data[idx+len(headerBodySep):], true
}

// parseHeaderFields parses the header section (status line included) into
// a lower-cased key/value mapping.
func parseHeaderFields(header []byte) map[string]string {
	lines := strings.Split(string(header), "\r\n")
	fields := make(map[string]string, len(lines))
	for _, line := range lines[1:] {
		k, v, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields[strings.ToLower(k)] = strings.TrimSpace(v)
	}
	return fields
}

func parseStatusLine(header []byte) int {
	line, _, _ := strings.Cut(string(header), "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return 0
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return code
}

// finishResponse fills status, headers, size and body preview from the
// buffered bytes. A malformed response leaves the zero values in place;
// framing boundaries are all the probe needs, not a full response object.
func (t *Tracer) finishResponse(b *TimingBreakdown, data []byte) {
	header, body, ok := splitMessage(data)
	if !ok {
		return
	}
	b.StatusCode = parseStatusLine(header)
	b.HeadersReceived = parseHeaderFields(header)
	b.ResponseSize = int64(len(body))
	if strings.Contains(strings.ToLower(b.HeadersReceived["transfer-encoding"]), "chunked") {
		b.ResponseSize = ChunkedSize(body)
	}
	preview := body
	if len(preview) > t.previewLimit {
		preview = preview[:t.previewLimit]
	}
	b.ResponseBody = string(preview)
}
