package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/hbagdi/tracepulse/pkg/analyzer"
	"github.com/hbagdi/tracepulse/pkg/db"
)

func executeHistory(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	url := fs.String("url", "", "filter by URL")
	label := fs.String("label", "", "filter by label")
	limit := fs.Int("n", 0, "maximum rows to list")
	asJSON := fs.Bool("json", false, "print rows as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	traces, err := store.ListTraces(ctx, db.ListOpts{
		URL:   *url,
		Label: *label,
		Limit: *limit,
	})
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(traces)
	}
	if len(traces) == 0 {
		fmt.Println("no traces recorded")
		return nil
	}

	header := color.New(color.FgCyan).SprintfFunc()
	fmt.Println(header("%-6s %-20s %-40s %-7s %10s  %s",
		"ID", "WHEN", "URL", "STATUS", "TOTAL", "LABEL"))
	for _, t := range traces {
		status := fmt.Sprintf("%d", t.StatusCode)
		if t.Error != "" {
			status = color.RedString("ERR")
		}
		fmt.Printf("%-6d %-20s %-40s %-7s %8.2fms  %s\n",
			t.ID,
			time.Unix(t.CreatedAt, 0).Format("2006-01-02 15:04:05"),
			truncate(t.URL, 40), status, t.TotalMs, t.Label)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func executeStats(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print stats as JSON")
	target, rest := splitTarget(args)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if target == "" {
		target = fs.Arg(0)
	}
	if target == "" {
		return fmt.Errorf("need a URL")
	}
	url := normalizeURL(target)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	stats, err := store.Stats(ctx, url)
	if err != nil {
		return err
	}
	if stats.TraceCount == 0 {
		return fmt.Errorf("no traces recorded for %s", url)
	}
	percentiles, err := store.Percentiles(ctx, url)
	if err != nil {
		return err
	}
	traces, err := store.ListTraces(ctx, db.ListOpts{URL: url, Limit: 100})
	if err != nil {
		return err
	}
	regressions := analyzer.DetectRegressions(traces, 0, 0)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"url":         url,
			"stats":       stats,
			"percentiles": percentiles,
			"regressions": regressions,
		})
	}

	header := color.New(color.FgCyan).SprintfFunc()
	fmt.Println(header("%s", url))
	fmt.Printf("traces: %d  (%s to %s)\n",
		stats.TraceCount,
		time.Unix(stats.FirstTraced, 0).Format("2006-01-02"),
		time.Unix(stats.LastTraced, 0).Format("2006-01-02"))
	fmt.Printf("total:  avg %.2fms  min %.2fms  max %.2fms\n",
		stats.AvgTotalMs, stats.MinTotalMs, stats.MaxTotalMs)
	fmt.Printf("        p50 %.2fms  p95 %.2fms  p99 %.2fms\n",
		percentiles.TotalP50, percentiles.TotalP95, percentiles.TotalP99)
	fmt.Println()
	fmt.Println(header("%-18s %10s %10s %10s", "PHASE", "AVG", "P50", "P95"))
	rows := []struct {
		name string
		avg  float64
		p    db.PhasePercentiles
	}{
		{"DNS Lookup", stats.AvgDNSMs, percentiles.DNS},
		{"TCP Connect", stats.AvgTCPMs, percentiles.TCP},
		{"TLS Handshake", stats.AvgTLSMs, percentiles.TLS},
		{"Server Processing", stats.AvgServerMs, percentiles.Server},
		{"Content Transfer", stats.AvgTransferMs, percentiles.Transfer},
	}
	for _, r := range rows {
		fmt.Printf("%-18s %8.2fms %8.2fms %8.2fms\n",
			r.name, r.avg, r.p.P50, r.p.P95)
	}
	if len(regressions) > 0 {
		fmt.Println()
		warn := color.New(color.FgYellow).SprintfFunc()
		for _, reg := range regressions {
			fmt.Println(warn("[%s] %s", reg.Severity, reg.Message))
		}
	}
	return nil
}

func executeClean(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	url := fs.String("url", "", "only delete traces for this URL")
	olderThan := fs.Duration("older-than", 0,
		"only delete traces older than this duration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	target := *url
	if target != "" {
		target = normalizeURL(target)
	}
	n, err := store.DeleteTraces(ctx, db.DeleteOpts{
		URL:       target,
		OlderThan: *olderThan,
	})
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d traces\n", n)
	return nil
}
