package exporter

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/hbagdi/tracepulse/pkg/db"
)

type htmlPhase struct {
	Name    string
	Ms      float64
	Percent float64
}

type htmlRow struct {
	ID         int64
	URL        string
	Method     string
	StatusCode int
	TotalMs    float64
	Phases     []htmlPhase
	Error      string
	CreatedAt  string
}

type htmlReport struct {
	GeneratedAt string
	URL         string
	Stats       db.Stats
	HasStats    bool
	Rows        []htmlRow
}

// HTML renders a standalone report page for the given traces. When stats
// is non-nil a summary section for its URL is included.
func HTML(traces []db.Trace, url string, stats *db.Stats) (string, error) {
	report := htmlReport{
		GeneratedAt: time.Now().Format(time.RFC1123),
		URL:         url,
	}
	if stats != nil {
		report.Stats = *stats
		report.HasStats = true
	}
	for _, t := range traces {
		row := htmlRow{
			ID:         t.ID,
			URL:        t.URL,
			Method:     t.Method,
			StatusCode: t.StatusCode,
			TotalMs:    t.TotalMs,
			Error:      t.Error,
			CreatedAt:  time.Unix(t.CreatedAt, 0).Format("2006-01-02 15:04:05"),
		}
		phases := []struct {
			name string
			ms   float64
		}{
			{"DNS", t.DNSMs},
			{"TCP", t.TCPConnectMs},
			{"TLS", t.TLSHandshakeMs},
			{"Server", t.ServerProcessingMs},
			{"Transfer", t.ContentTransferMs},
		}
		for _, p := range phases {
			pct := 0.0
			if t.TotalMs > 0 {
				pct = p.ms / t.TotalMs * 100
			}
			row.Phases = append(row.Phases, htmlPhase{
				Name:    p.name,
				Ms:      p.ms,
				Percent: pct,
			})
		}
		report.Rows = append(report.Rows, row)
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, report); err != nil {
		return "", fmt.Errorf("render html report: %v", err)
	}
	return buf.String(), nil
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"ms": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"pct": func(v float64) template.CSS {
		return template.CSS(fmt.Sprintf("%.1f%%", v))
	},
}).Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>tracepulse report</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2em; color: #222; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin-top: 1em; }
th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; font-size: 0.9em; }
th { background: #f5f5f5; }
.bar { display: flex; height: 14px; width: 220px; background: #eee; }
.dns { background: #4c78a8; }
.tcp { background: #f58518; }
.tls { background: #54a24b; }
.server { background: #e45756; }
.transfer { background: #72b7b2; }
.summary { background: #f8f9fa; padding: 1em; border: 1px solid #ddd; }
.err { color: #c00; }
</style>
</head>
<body>
<h1>tracepulse report</h1>
<p>Generated {{.GeneratedAt}}</p>
{{if .HasStats}}
<div class="summary">
<strong>{{.URL}}</strong><br>
{{.Stats.TraceCount}} traces, avg {{ms .Stats.AvgTotalMs}}ms,
min {{ms .Stats.MinTotalMs}}ms, max {{ms .Stats.MaxTotalMs}}ms
</div>
{{end}}
<table>
<tr><th>When</th><th>URL</th><th>Method</th><th>Status</th><th>Total (ms)</th><th>Phases</th></tr>
{{range .Rows}}
<tr>
<td>{{.CreatedAt}}</td>
<td>{{.URL}}</td>
<td>{{.Method}}</td>
<td>{{if .Error}}<span class="err">{{.Error}}</span>{{else}}{{.StatusCode}}{{end}}</td>
<td>{{ms .TotalMs}}</td>
<td>
<div class="bar">
{{range $i, $p := .Phases}}<div class="{{if eq $i 0}}dns{{else if eq $i 1}}tcp{{else if eq $i 2}}tls{{else if eq $i 3}}server{{else}}transfer{{end}}" style="width: {{pct $p.Percent}}" title="{{$p.Name}}: {{ms $p.Ms}}ms"></div>{{end}}
</div>
</td>
</tr>
{{end}}
</table>
</body>
</html>
`))
