package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/skratchdot/open-golang/open"
	"go.uber.org/zap"

	"github.com/hbagdi/tracepulse/pkg/dashboard"
	"github.com/hbagdi/tracepulse/pkg/log"
)

func executeDashboard(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	addr := fs.String("addr", cfg.DashboardAddr, "listen address")
	openBrowser := fs.Bool("open", false, "open the dashboard in a browser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	server, err := dashboard.NewServer(dashboard.Opts{
		Store:  store,
		Tracer: newTracer(cfg),
		Logger: log.Logger,
	})
	if err != nil {
		return fmt.Errorf("set up dashboard: %v", err)
	}

	fmt.Printf("dashboard on http://%s (ctrl-c to stop)\n", *addr)
	if *openBrowser {
		if err := open.Run("http://" + *addr); err != nil {
			log.Logger.Debug("failed to open browser", zap.Error(err))
		}
	}
	return server.Run(ctx, *addr)
}
