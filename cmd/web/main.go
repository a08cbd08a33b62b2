// Command web serves the price index HTTP API.
package main

import (
	"flag"
	"log/slog"
	"os"

	"priceindex/internal/app"
	"priceindex/internal/config"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to PINDEX_CONFIG_FILE or ./priceindex.yaml)")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg, nil)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
