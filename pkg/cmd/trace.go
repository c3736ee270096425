package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/hbagdi/tracepulse/pkg/geo"
	"github.com/hbagdi/tracepulse/pkg/log"
	"github.com/hbagdi/tracepulse/pkg/printer"
	"github.com/hbagdi/tracepulse/pkg/tracer"
)

func executeTrace(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	req := requestFromConfig(cfg)
	headers := headersFlag(req.Headers)

	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	fs.StringVar(&req.Method, "m", req.Method, "HTTP method")
	fs.Var(headers, "H", "request header 'Name: value' (repeatable)")
	fs.StringVar(&req.Body, "d", "", "request body")
	repetitions := fs.Int("n", cfg.Repetitions, "number of traces to run")
	workers := fs.Int("workers", cfg.Workers, "concurrent trace workers")
	timeout := fs.Duration("timeout", req.Timeout, "per-trace timeout")
	label := fs.String("label", "", "label stored with the trace")
	save := fs.Bool("save", true, "store the trace in history")
	asJSON := fs.Bool("json", false, "print the breakdown as JSON")
	withGeo := fs.Bool("geo", cfg.GeoLookup, "annotate the peer address with location data")
	fs.BoolVar(&req.FollowRedirects, "follow", req.FollowRedirects,
		"follow redirects and fold them into the breakdown")
	fs.IntVar(&req.MaxRedirects, "max-redirects", req.MaxRedirects,
		"redirect budget when following")

	target, rest := splitTarget(args)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if target == "" {
		target = fs.Arg(0)
	}
	if target == "" {
		return fmt.Errorf("need a URL or @preset to trace")
	}
	req.Timeout = *timeout
	req.Method = strings.ToUpper(req.Method)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	if err := resolveTarget(ctx, store, target, &req); err != nil {
		return err
	}

	t := newTracer(cfg)
	results := t.TraceConcurrent(ctx, []string{req.URL}, req,
		*repetitions, *workers)[req.URL]

	b := results[0]
	if len(results) > 1 {
		b = tracer.Average(results)
	}
	if *withGeo && b.IPAddress != "" {
		geoClient := geo.NewClient(geo.Opts{Logger: log.Logger})
		b.GeoInfo = geoClient.Lookup(ctx, b.IPAddress)
	}

	p := printer.NewPrinter(printer.Opts{
		Writer: os.Stdout,
		Mode:   printerMode(),
	})
	if *asJSON {
		if err := p.PrintJSON(b); err != nil {
			return err
		}
	} else {
		if len(results) > 1 {
			fmt.Printf("average of %d traces\n\n", len(results))
		}
		if err := p.Print(b); err != nil {
			return err
		}
	}

	if *save {
		for _, r := range results {
			if _, err := store.SaveTrace(ctx, r, *label); err != nil {
				return fmt.Errorf("save trace: %v", err)
			}
		}
	}
	maybePrintUpdateNudge()
	return nil
}

// splitTarget lets the target precede the flags, since the flag package
// stops parsing at the first non-flag argument.
func splitTarget(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func printerMode() printer.Mode {
	if os.Getenv("NO_COLOR") != "" {
		return printer.ModeNoColor
	}
	return printer.ModeColorConsole
}

// traceAndSave runs one trace and persists it. Shared by watch mode.
func traceAndSave(ctx context.Context, t *tracer.Tracer, store storeSaver, req tracer.Request, label string) (*tracer.TimingBreakdown, error) {
	b := t.Trace(ctx, req)
	if _, err := store.SaveTrace(ctx, b, label); err != nil {
		return nil, fmt.Errorf("save trace: %v", err)
	}
	return b, nil
}

type storeSaver interface {
	SaveTrace(ctx context.Context, b *tracer.TimingBreakdown, label string) (int64, error)
}
