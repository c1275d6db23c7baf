package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/queryward/queryward/cmd"
	"github.com/queryward/queryward/pkg/config"
	"github.com/queryward/queryward/pkg/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	deps := &cmd.Deps{
		FS:     afero.NewOsFs(),
		Cfg:    cfg,
		Logger: logger,
	}
	if err := cmd.NewRootCommand(deps).Execute(); err != nil {
		os.Exit(1)
	}
}
