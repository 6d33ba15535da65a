package main

import (
	"context"
	"fmt"
	"os"

	"github.com/quantmind-br/ipkg/internal/cmd"
	"github.com/quantmind-br/ipkg/internal/config"
	"github.com/quantmind-br/ipkg/internal/logging"
	"github.com/quantmind-br/ipkg/internal/paths"
	"github.com/quantmind-br/ipkg/internal/ui"
)

var version = "dev"

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Initialize colors and logger
	if cfg.Logging.Color == "never" {
		ui.DisableColors()
	} else {
		ui.InitColors()
	}

	layout := paths.NewResolver(cfg)
	log := logging.NewLogger(logging.Config{
		Level:   cfg.Logging.Level,
		LogFile: layout.LogFile(),
		Color:   cfg.Logging.Color,
	})

	// Execute root command
	rootCmd := cmd.NewRootCmd(cfg, log, version)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
