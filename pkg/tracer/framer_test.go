package tracer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFramerComplete(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		body   []byte
		want   bool
	}{
		{
			name:   "content-length satisfied",
			header: map[string]string{"content-length": "5"},
			body:   []byte("hello"),
			want:   true,
		},
		{
			name:   "content-length exceeded",
			header: map[string]string{"content-length": "3"},
			body:   []byte("hello"),
			want:   true,
		},
		{
			name:   "content-length short",
			header: map[string]string{"content-length": "10"},
			body:   []byte("hello"),
			want:   false,
		},
		{
			name:   "content-length zero with empty body",
			header: map[string]string{"content-length": "0"},
			body:   nil,
			want:   true,
		},
		{
			name:   "malformed content-length never completes",
			header: map[string]string{"content-length": "abc"},
			body:   []byte("hello"),
			want:   false,
		},
		{
			name:   "chunked with terminator",
			header: map[string]string{"transfer-encoding": "chunked"},
			body:   []byte("5\r\nhello\r\n0\r\n\r\n"),
			want:   true,
		},
		{
			name:   "chunked without terminator",
			header: map[string]string{"transfer-encoding": "chunked"},
			body:   []byte("5\r\nhello\r\n"),
			want:   false,
		},
		{
			name:   "chunked mixed case",
			header: map[string]string{"transfer-encoding": "Chunked"},
			body:   []byte("0\r\n\r\n"),
			want:   true,
		},
		{
			name:   "no framing signal",
			header: map[string]string{},
			body:   []byte("hello"),
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Framer{}.Complete(tt.header, tt.body)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestChunkedSize(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want int64
	}{
		{
			name: "single chunk",
			body: []byte("5\r\nhello\r\n0\r\n\r\n"),
			want: 5,
		},
		{
			name: "multiple chunks",
			body: []byte("5\r\nhello\r\na\r\n0123456789\r\n0\r\n\r\n"),
			want: 15,
		},
		{
			name: "declared size wins over delivered bytes",
			body: []byte("10\r\npartial\r\n0\r\n\r\n"),
			want: 16,
		},
		{
			name: "empty body",
			body: []byte("0\r\n\r\n"),
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ChunkedSize(tt.body))
		})
	}
}
