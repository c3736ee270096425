// Package log holds the process-wide logger handed to stores, clients,
// and servers via their Opts.
package log

import (
	"fmt"

	"go.uber.org/zap"
)

var Logger *zap.Logger

func init() {
	base, err := zap.NewDevelopment()
	if err != nil {
		panic(fmt.Sprintf("failed to init default logger: %v", err))
	}
	Logger = base.Named("tracepulse")
}
