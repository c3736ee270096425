// Package cmd wires the command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hbagdi/tracepulse/pkg/util"
)

const minArgs = 2

// Run dispatches os.Args to a subcommand. A bare URL argument is treated
// as shorthand for the trace command.
func Run(ctx context.Context) error {
	args := os.Args
	if len(args) < minArgs {
		printUsage()
		return fmt.Errorf("need a command")
	}
	util.EnsureCacheDirs()
	cmd := args[1]
	rest := args[2:]

	switch cmd {
	case "trace":
		return executeTrace(ctx, rest)
	case "compare":
		return executeCompare(ctx, rest)
	case "history":
		return executeHistory(ctx, rest)
	case "stats":
		return executeStats(ctx, rest)
	case "preset":
		return executePreset(ctx, rest)
	case "export":
		return executeExport(ctx, rest)
	case "clean":
		return executeClean(ctx, rest)
	case "curl":
		return executeCurl(ctx, rest)
	case "watch":
		return executeWatch(ctx, rest)
	case "browse":
		return executeBrowse(ctx)
	case "dashboard":
		return executeDashboard(ctx, rest)
	case "version":
		return executeVersion()
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		if strings.Contains(cmd, "://") || strings.Contains(cmd, ".") ||
			strings.HasPrefix(cmd, "@") {
			return executeTrace(ctx, args[1:])
		}
		printUsage()
		return fmt.Errorf("unknown command '%s'", cmd)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: tracepulse <command> [flags]

commands:
  trace <url|@preset>    trace one target and print the phase breakdown
  compare <url> <url>..  trace multiple targets and compare averages
  watch <url|@preset>    trace a target on an interval and flag regressions
  curl <curl command>    trace the request described by a curl command
  history                list stored traces
  stats <url>            aggregate statistics for one URL
  export                 export stored traces as csv, json, or html
  preset                 manage named targets (save, list, delete)
  clean                  delete stored traces
  browse                 browse stored traces in the terminal
  dashboard              serve the web dashboard
  version                print version information
`)
}
