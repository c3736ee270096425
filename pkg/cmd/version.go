package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/hbagdi/tracepulse/pkg/version"
)

func executeVersion() error {
	fmt.Printf("%s (commit: %s)\n", version.Version, version.CommitHash)
	maybePrintUpdateNudge()
	return nil
}

// maybePrintUpdateNudge prints a one-line hint when a newer release is
// known. Failures stay silent: the nudge must never break a command.
func maybePrintUpdateNudge() {
	latest, err := version.LoadLatestVersion()
	if err != nil {
		return
	}
	if version.UpdateAvailable(version.Version, latest) {
		nudge := color.New(color.FgYellow).SprintfFunc()
		fmt.Fprintln(os.Stderr, nudge(
			"a newer version (%s) is available", latest))
	}
}
