package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thyroid-risk-assessor/internal/config"
	"github.com/thyroid-risk-assessor/internal/domain"
	"github.com/thyroid-risk-assessor/internal/logging"
)

var version = "dev"

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "thyrisk",
		Short: "Thyroid cancer risk assessment toolkit",
		Long: `thyrisk runs thyroid cancer risk assessments against a trained model bundle.

It assesses patient records from files or stdin, checks model bundles, manages
the feedback database schema, moves clinician feedback in and out of the store,
and registers the MCP server with desktop clients.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Configuration file (default: ./config.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(newAssessCommand(opts))
	cmd.AddCommand(newValidateBundleCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newFeedbackCommand(opts))
	cmd.AddCommand(newSetupCommand())

	return cmd
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCommand().ExecuteContext(ctx)
}

// load reads the configuration and builds a logger that writes to stderr.
func (o *rootOptions) load(cmd *cobra.Command) (*domain.Config, *logrus.Logger, error) {
	manager, err := config.NewManagerFromFile(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	cfg := manager.GetConfig()

	logCfg := cfg.Logging
	logCfg.Output = "stderr"
	if o.logLevel != "" {
		logCfg.Level = o.logLevel
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, err
	}
	logger.SetOutput(cmd.ErrOrStderr())
	return cfg, logger, nil
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var bundleErr *bundleError
	if domain.IsClientError(err) || errors.As(err, &bundleErr) {
		return ExitInvalid
	}
	return ExitError
}
