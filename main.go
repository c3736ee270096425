package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hbagdi/tracepulse/pkg/cmd"
)

func main() {
	ctx := context.Background()
	if err := cmd.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
