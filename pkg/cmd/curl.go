package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/hbagdi/tracepulse/pkg/geo"
	"github.com/hbagdi/tracepulse/pkg/log"
	"github.com/hbagdi/tracepulse/pkg/parser"
	"github.com/hbagdi/tracepulse/pkg/printer"
)

// executeCurl traces the request described by a curl command, passed as
// arguments or read from the clipboard.
func executeCurl(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("curl", flag.ContinueOnError)
	fromClipboard := fs.Bool("clipboard", false,
		"read the curl command from the clipboard")
	label := fs.String("label", "curl", "label stored with the trace")
	save := fs.Bool("save", true, "store the trace in history")
	asJSON := fs.Bool("json", false, "print the breakdown as JSON")
	withGeo := fs.Bool("geo", cfg.GeoLookup,
		"annotate the peer address with location data")
	if err := fs.Parse(args); err != nil {
		return err
	}

	command := strings.Join(fs.Args(), " ")
	if *fromClipboard {
		command, err = clipboard.ReadAll()
		if err != nil {
			return fmt.Errorf("read clipboard: %v", err)
		}
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return fmt.Errorf("need a curl command")
	}

	req, err := parser.ParseCurl(command)
	if err != nil {
		return fmt.Errorf("parse curl command: %v", err)
	}
	defaults := requestFromConfig(cfg)
	req.Timeout = defaults.Timeout
	if req.FollowRedirects {
		req.MaxRedirects = defaults.MaxRedirects
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	t := newTracer(cfg)
	b := t.Trace(ctx, req)
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
	} else if err := p.Print(b); err != nil {
		return err
	}

	if *save {
		if _, err := store.SaveTrace(ctx, b, *label); err != nil {
			return fmt.Errorf("save trace: %v", err)
		}
	}
	return nil
}
