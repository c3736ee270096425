package cmd

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/hbagdi/tracepulse/pkg/analyzer"
	"github.com/hbagdi/tracepulse/pkg/db"
)

// executeWatch traces a target on a fixed interval, appends every result
// to history, and prints an alert when a phase regresses against the
// stored baseline. It runs until the context is canceled.
func executeWatch(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	req := requestFromConfig(cfg)

	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("i", 30*time.Second, "trace interval")
	threshold := fs.Float64("a", analyzer.DefaultThresholdPct,
		"alert threshold in percent over baseline")
	label := fs.String("label", "watch", "label stored with the traces")

	target, rest := splitTarget(args)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if target == "" {
		target = fs.Arg(0)
	}
	if target == "" {
		return fmt.Errorf("need a URL or @preset to watch")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	if err := resolveTarget(ctx, store, target, &req); err != nil {
		return err
	}

	fmt.Printf("watching %s every %s (ctrl-c to stop)\n", req.URL, *interval)
	t := newTracer(cfg)
	warn := color.New(color.FgYellow).SprintfFunc()
	errc := color.New(color.FgRed).SprintfFunc()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		b, err := traceAndSave(ctx, t, store, req, *label)
		if err != nil {
			return err
		}
		now := time.Now().Format("15:04:05")
		if b.Failed() {
			fmt.Println(errc("%s  error(%s): %s", now, b.ErrorKind, b.Error))
		} else {
			fmt.Printf("%s  %d  %8.2fms  dns=%.1f tcp=%.1f tls=%.1f srv=%.1f xfer=%.1f\n",
				now, b.StatusCode, b.TotalMs, b.DNSMs, b.TCPConnectMs,
				b.TLSHandshakeMs, b.ServerProcessingMs, b.ContentTransferMs)
		}

		traces, err := store.ListTraces(ctx, db.ListOpts{
			URL:   req.URL,
			Limit: 100,
		})
		if err != nil {
			return err
		}
		for _, reg := range analyzer.DetectRegressions(traces, 0, *threshold) {
			fmt.Println(warn("  alert[%s]: %s", reg.Severity, reg.Message))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
