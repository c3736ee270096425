package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hbagdi/tracepulse/pkg/config"
	"github.com/hbagdi/tracepulse/pkg/db"
	"github.com/hbagdi/tracepulse/pkg/log"
	"github.com/hbagdi/tracepulse/pkg/tracer"
)

// headersFlag collects repeated -H "Name: value" flags.
type headersFlag map[string]string

func (h headersFlag) String() string {
	parts := make([]string, 0, len(h))
	for k, v := range h {
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, ", ")
}

func (h headersFlag) Set(value string) error {
	name, val, found := strings.Cut(value, ":")
	if !found {
		return fmt.Errorf("header must be 'Name: value'")
	}
	h[strings.TrimSpace(name)] = strings.TrimSpace(val)
	return nil
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load("")
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %v", err)
	}
	return cfg, nil
}

func openStore(cfg config.Config) (*db.Store, error) {
	store, err := db.NewStore(db.StoreOpts{
		Logger:   log.Logger,
		FilePath: cfg.DatabasePath,
	})
	if err != nil {
		return nil, fmt.Errorf("set up DB: %v", err)
	}
	return store, nil
}

func closeStore(store *db.Store) {
	err := store.Close()
	if err != nil {
		log.Logger.Sugar().Errorf("failed to close store: %v", err)
	}
}

// resolveTarget expands @preset references against the store and defaults
// bare hosts to https.
func resolveTarget(ctx context.Context, store *db.Store, target string, req *tracer.Request) error {
	if strings.HasPrefix(target, "@") {
		preset, err := store.GetPreset(ctx, target[1:])
		if err != nil {
			return fmt.Errorf("preset '%s': %v", target[1:], err)
		}
		req.URL = preset.URL
		if req.Method == "" || req.Method == "GET" {
			req.Method = preset.Method
		}
		if req.Body == "" {
			req.Body = preset.Body
		}
		for k, v := range preset.Headers {
			if _, ok := req.Headers[k]; !ok {
				req.Headers[k] = v
			}
		}
		req.URL = normalizeURL(req.URL)
		return nil
	}
	req.URL = normalizeURL(target)
	return nil
}

func normalizeURL(target string) string {
	if !strings.Contains(target, "://") {
		return "https://" + target
	}
	return target
}

// requestFromConfig seeds a Request with configured defaults.
func requestFromConfig(cfg config.Config) tracer.Request {
	return tracer.Request{
		Method:          "GET",
		Headers:         headersFlag{},
		Timeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
		FollowRedirects: cfg.FollowRedirects,
		MaxRedirects:    cfg.MaxRedirects,
	}
}

func newTracer(cfg config.Config) *tracer.Tracer {
	return tracer.New(tracer.WithIdleWindow(
		time.Duration(cfg.IdleWindowMs) * time.Millisecond))
}
