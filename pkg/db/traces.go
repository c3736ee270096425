package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hbagdi/tracepulse/pkg/tracer"
)

// Trace is one stored trace row.
type Trace struct {
	ID                 int64
	URL                string
	Method             string
	StatusCode         int
	ResponseSize       int64
	IPAddress          string
	TLSVersion         string
	DNSMs              float64
	TCPConnectMs       float64
	TLSHandshakeMs     float64
	ServerProcessingMs float64
	ContentTransferMs  float64
	TotalMs            float64
	Error              string
	// HeadersSent and HeadersReceived hold JSON-encoded mappings.
	HeadersSent     string
	HeadersReceived string
	Label           string
	CreatedAt       int64
}

const traceColumns = `id, url, method, status_code, response_size,
ip_address, tls_version, dns_ms, tcp_connect_ms, tls_handshake_ms,
server_processing_ms, content_transfer_ms, total_ms, error,
headers_sent, headers_received, label, created_at`

// SaveTrace appends one breakdown to history and returns the assigned row
// ID. Millisecond fields are stored at two-decimal precision.
func (s *Store) SaveTrace(ctx context.Context, b *tracer.TimingBreakdown, label string) (int64, error) {
	headersSent, err := json.Marshal(b.HeadersSent)
	if err != nil {
		return 0, fmt.Errorf("marshal sent headers: %v", err)
	}
	headersReceived, err := json.Marshal(b.HeadersReceived)
	if err != nil {
		return 0, fmt.Errorf("marshal received headers: %v", err)
	}
	res, err := s.db.ExecContext(ctx, `insert into traces(
url, method, status_code, response_size, ip_address, tls_version,
dns_ms, tcp_connect_ms, tls_handshake_ms, server_processing_ms,
content_transfer_ms, total_ms, error, headers_sent, headers_received,
label, created_at) values(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.URL, b.Method, b.StatusCode, b.ResponseSize, b.IPAddress,
		b.TLSVersion,
		tracer.RoundMs(b.DNSMs), tracer.RoundMs(b.TCPConnectMs),
		tracer.RoundMs(b.TLSHandshakeMs), tracer.RoundMs(b.ServerProcessingMs),
		tracer.RoundMs(b.ContentTransferMs), tracer.RoundMs(b.TotalMs),
		b.Error, string(headersSent), string(headersReceived),
		label, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert trace: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted trace id: %v", err)
	}
	return id, nil
}

// ListOpts filters trace listings. A zero Limit lists the latest 50 rows.
type ListOpts struct {
	URL   string
	Label string
	Limit int
}

// ListTraces returns traces newest first.
func (s *Store) ListTraces(ctx context.Context, opts ListOpts) ([]Trace, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `select ` + traceColumns + ` from traces where 1=1`
	args := []interface{}{}
	if opts.URL != "" {
		query += ` and url = ?`
		args = append(args, opts.URL)
	}
	if opts.Label != "" {
		query += ` and label = ?`
		args = append(args, opts.Label)
	}
	query += ` order by created_at desc, id desc limit ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list traces: %v", err)
	}
	defer rows.Close()

	var res []Trace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list traces rows: %v", err)
	}
	return res, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrace(row rowScanner) (Trace, error) {
	var t Trace
	err := row.Scan(&t.ID, &t.URL, &t.Method, &t.StatusCode,
		&t.ResponseSize, &t.IPAddress, &t.TLSVersion, &t.DNSMs,
		&t.TCPConnectMs, &t.TLSHandshakeMs, &t.ServerProcessingMs,
		&t.ContentTransferMs, &t.TotalMs, &t.Error, &t.HeadersSent,
		&t.HeadersReceived, &t.Label, &t.CreatedAt)
	if err != nil {
		return Trace{}, fmt.Errorf("scan trace row: %v", err)
	}
	return t, nil
}

// GetTrace fetches a single trace by ID.
func (s *Store) GetTrace(ctx context.Context, id int64) (Trace, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+traceColumns+` from traces where id = ?`, id)
	return scanTrace(row)
}

// ListURLs returns the distinct traced URLs.
func (s *Store) ListURLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select distinct url from traces order by url`)
	if err != nil {
		return nil, fmt.Errorf("list urls: %v", err)
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url row: %v", err)
		}
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list urls rows: %v", err)
	}
	return res, nil
}

// DeleteOpts filters deletions. Zero values delete everything.
type DeleteOpts struct {
	URL       string
	OlderThan time.Duration
}

// DeleteTraces removes history rows and returns the number deleted.
func (s *Store) DeleteTraces(ctx context.Context, opts DeleteOpts) (int64, error) {
	query := `delete from traces where 1=1`
	args := []interface{}{}
	if opts.URL != "" {
		query += ` and url = ?`
		args = append(args, opts.URL)
	}
	if opts.OlderThan > 0 {
		cutoff := time.Now().Add(-opts.OlderThan).Unix()
		query += ` and created_at < ?`
		args = append(args, cutoff)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete traces: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted traces: %v", err)
	}
	return n, nil
}

// Stats aggregates history for one URL.
type Stats struct {
	TraceCount    int64
	AvgTotalMs    float64
	MinTotalMs    float64
	MaxTotalMs    float64
	AvgDNSMs      float64
	AvgTCPMs      float64
	AvgTLSMs      float64
	AvgServerMs   float64
	AvgTransferMs float64
	FirstTraced   int64
	LastTraced    int64
}

func (s *Store) Stats(ctx context.Context, url string) (Stats, error) {
	row := s.db.QueryRowContext(ctx, `select
count(*),
coalesce(avg(total_ms), 0),
coalesce(min(total_ms), 0),
coalesce(max(total_ms), 0),
coalesce(avg(dns_ms), 0),
coalesce(avg(tcp_connect_ms), 0),
coalesce(avg(tls_handshake_ms), 0),
coalesce(avg(server_processing_ms), 0),
coalesce(avg(content_transfer_ms), 0),
coalesce(min(created_at), 0),
coalesce(max(created_at), 0)
from traces where url = ?`, url)

	var st Stats
	err := row.Scan(&st.TraceCount, &st.AvgTotalMs, &st.MinTotalMs,
		&st.MaxTotalMs, &st.AvgDNSMs, &st.AvgTCPMs, &st.AvgTLSMs,
		&st.AvgServerMs, &st.AvgTransferMs, &st.FirstTraced, &st.LastTraced)
	if err != nil {
		return Stats{}, fmt.Errorf("scan stats row: %v", err)
	}
	return st, nil
}

// PhasePercentiles holds p50/p95 for one phase.
type PhasePercentiles struct {
	P50 float64
	P95 float64
}

// Percentiles holds latency percentiles for one URL.
type Percentiles struct {
	Count    int
	TotalP50 float64
	TotalP95 float64
	TotalP99 float64
	DNS      PhasePercentiles
	TCP      PhasePercentiles
	TLS      PhasePercentiles
	Server   PhasePercentiles
	Transfer PhasePercentiles
}

func (s *Store) Percentiles(ctx context.Context, url string) (Percentiles, error) {
	rows, err := s.db.QueryContext(ctx, `select total_ms, dns_ms,
tcp_connect_ms, tls_handshake_ms, server_processing_ms,
content_transfer_ms from traces
where url = ? and total_ms is not null`, url)
	if err != nil {
		return Percentiles{}, fmt.Errorf("query percentiles: %v", err)
	}
	defer rows.Close()

	var total, dns, tcp, tls, server, transfer []float64
	for rows.Next() {
		var t, d, c, h, sp, tr float64
		if err := rows.Scan(&t, &d, &c, &h, &sp, &tr); err != nil {
			return Percentiles{}, fmt.Errorf("scan percentile row: %v", err)
		}
		total = append(total, t)
		dns = append(dns, d)
		tcp = append(tcp, c)
		tls = append(tls, h)
		server = append(server, sp)
		transfer = append(transfer, tr)
	}
	if err := rows.Err(); err != nil {
		return Percentiles{}, fmt.Errorf("percentile rows: %v", err)
	}
	if len(total) == 0 {
		return Percentiles{}, nil
	}

	for _, vals := range [][]float64{total, dns, tcp, tls, server, transfer} {
		sort.Float64s(vals)
	}
	return Percentiles{
		Count:    len(total),
		TotalP50: percentile(total, 50),
		TotalP95: percentile(total, 95),
		TotalP99: percentile(total, 99),
		DNS:      PhasePercentiles{percentile(dns, 50), percentile(dns, 95)},
		TCP:      PhasePercentiles{percentile(tcp, 50), percentile(tcp, 95)},
		TLS:      PhasePercentiles{percentile(tls, 50), percentile(tls, 95)},
		Server:   PhasePercentiles{percentile(server, 50), percentile(server, 95)},
		Transfer: PhasePercentiles{percentile(transfer, 50), percentile(transfer, 95)},
	}, nil
}

// percentile picks from sorted values by rank, nearest-rank truncation.
func percentile(sorted []float64, pct float64) float64 {
	idx := int(pct / 100 * float64(len(sorted)))
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
