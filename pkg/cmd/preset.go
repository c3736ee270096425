package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/hbagdi/tracepulse/pkg/db"
)

func executePreset(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: preset <save|list|delete>")
	}
	switch args[0] {
	case "save":
		return executePresetSave(ctx, args[1:])
	case "list":
		return executePresetList(ctx)
	case "delete":
		return executePresetDelete(ctx, args[1:])
	default:
		return fmt.Errorf("unknown preset command '%s'", args[0])
	}
}

func executePresetSave(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("preset save", flag.ContinueOnError)
	headers := headersFlag{}
	method := fs.String("m", "GET", "HTTP method")
	fs.Var(headers, "H", "request header 'Name: value' (repeatable)")
	body := fs.String("d", "", "request body")

	var positional []string
	for len(args) > 0 && args[0][0] != '-' {
		positional = append(positional, args[0])
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	positional = append(positional, fs.Args()...)
	if len(positional) != 2 {
		return fmt.Errorf("usage: preset save <name> <url> [flags]")
	}
	name, url := positional[0], positional[1]

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	err = store.SavePreset(ctx, db.Preset{
		Name:    name,
		URL:     normalizeURL(url),
		Method:  *method,
		Headers: headers,
		Body:    *body,
	})
	if err != nil {
		return err
	}
	fmt.Printf("saved preset '@%s'\n", name)
	return nil
}

func executePresetList(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	presets, err := store.ListPresets(ctx)
	if err != nil {
		return err
	}
	if len(presets) == 0 {
		fmt.Println("no presets saved")
		return nil
	}
	for _, p := range presets {
		fmt.Printf("@%-20s %-6s %s\n", p.Name, p.Method, p.URL)
	}
	return nil
}

func executePresetDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: preset delete <name>")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	deleted, err := store.DeletePreset(ctx, args[0])
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("preset '%s' not found", args[0])
	}
	fmt.Printf("deleted preset '@%s'\n", args[0])
	return nil
}
