package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hbagdi/tracepulse/pkg/printer"
	"github.com/hbagdi/tracepulse/pkg/tracer"
)

// splitTargets pulls the leading positional targets off args; targets may
// precede the flags, mirroring splitTarget for the multi-target case.
func splitTargets(args []string) ([]string, []string) {
	var targets []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		targets = append(targets, args[0])
		args = args[1:]
	}
	return targets, args
}

func executeCompare(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	req := requestFromConfig(cfg)

	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	repetitions := fs.Int("n", 3, "traces per target")
	workers := fs.Int("workers", cfg.Workers, "concurrent trace workers")
	label := fs.String("label", "compare", "label stored with the traces")
	save := fs.Bool("save", true, "store the traces in history")

	targets, args := splitTargets(args)
	if err := fs.Parse(args); err != nil {
		return err
	}
	targets = append(targets, fs.Args()...)
	if len(targets) < 2 {
		return fmt.Errorf("need at least two URLs to compare")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	for i, target := range targets {
		r := req
		if err := resolveTarget(ctx, store, target, &r); err != nil {
			return err
		}
		targets[i] = r.URL
	}

	t := newTracer(cfg)
	grouped := t.TraceConcurrent(ctx, targets, req, *repetitions, *workers)

	averages := make(map[string]*tracer.TimingBreakdown, len(grouped))
	for target, results := range grouped {
		averages[target] = tracer.Average(results)
	}

	p := printer.NewPrinter(printer.Opts{
		Writer: os.Stdout,
		Mode:   printerMode(),
	})
	if err := p.PrintComparison(averages); err != nil {
		return err
	}

	if *save {
		urls := make([]string, 0, len(grouped))
		for u := range grouped {
			urls = append(urls, u)
		}
		sort.Strings(urls)
		for _, u := range urls {
			for _, r := range grouped[u] {
				if _, err := store.SaveTrace(ctx, r, *label); err != nil {
					return fmt.Errorf("save trace: %v", err)
				}
			}
		}
	}
	return nil
}
