package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/hbagdi/tracepulse/pkg/db"
	"github.com/hbagdi/tracepulse/pkg/exporter"
)

func executeExport(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("f", "json", "export format: csv, json, or html")
	output := fs.String("o", "", "output file (stdout when empty)")
	url := fs.String("url", "", "filter by URL")
	label := fs.String("label", "", "filter by label")
	limit := fs.Int("n", 1000, "maximum rows to export")
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

	var content string
	switch *format {
	case "csv":
		content, err = exporter.CSV(traces)
	case "json":
		content, err = exporter.JSON(traces)
	case "html":
		var stats *db.Stats
		if *url != "" {
			s, statsErr := store.Stats(ctx, *url)
			if statsErr != nil {
				return statsErr
			}
			stats = &s
		}
		content, err = exporter.HTML(traces, *url, stats)
	default:
		return fmt.Errorf("unknown format '%s'", *format)
	}
	if err != nil {
		return err
	}

	if *output == "" {
		fmt.Print(content)
		return nil
	}
	const fileMode = 0o0600
	if err := os.WriteFile(*output, []byte(content), fileMode); err != nil {
		return fmt.Errorf("write export: %v", err)
	}
	fmt.Printf("exported %d traces to %s\n", len(traces), *output)
	return nil
}
