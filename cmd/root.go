package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"factoryops/config"
	"factoryops/pkg/logger"

	"github.com/spf13/cobra"
)

var configPath string

// NewRootCommand is the factoryops CLI; without a subcommand it serves
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "factoryops",
		Short:         "Intent-driven command execution for factory records",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newRulesCommand(),
		newTokensCommand(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on error
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// setup loads the config and initializes logging
func setup() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Log, cfg.App.Env); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	app, err := NewBuilder(cfg).Build(cmd.Context())
	if err != nil {
		return err
	}
	return app.Run(cmd.Context())
}
