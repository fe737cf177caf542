package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"polyalert/internal/app"
	"polyalert/internal/clock"
	"polyalert/internal/config"
)

// run wires the service from CLI flags and blocks until shutdown.
// Params: none beyond the process arguments.
// Returns: startup or runtime error.
func run() error {
	configFile := flag.String("config-file", "", "single TOML config snapshot")
	configDir := flag.String("config-dir", "", "directory of TOML config fragments, merged in filename order")
	flag.Parse()

	source, err := config.FromCLI(*configFile, *configDir)
	if err != nil {
		return err
	}

	service, err := app.NewService(source, clock.RealClock{})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return service.Run(context.Background())
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "polyalert:", err.Error())
		os.Exit(1)
	}
}
