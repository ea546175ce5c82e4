package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/bpmonitor/internal/auditstore"
	"github.com/pitabwire/bpmonitor/internal/config"
	"github.com/pitabwire/bpmonitor/internal/history"
	"github.com/pitabwire/bpmonitor/internal/observability"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "bpmonitor",
		Short: "Bitrix24 business-process history monitor",
		Long: `bpmonitor reads the Bitrix24 business-process audit tables and reports
every workflow instance with a consolidated status (running, completed,
error) derived from its state and tracking events.

Run "bpmonitor serve" for the HTTP API used by the dashboard, or query the
audit store directly with the history, counts and show commands.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}
	cmd.SetVersionTemplate("bpmonitor {{.Version}} (" + commit + ")\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to configuration file (defaults only when empty)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newServeCmd(opts),
		newHistoryCmd(opts),
		newCountsCmd(opts),
		newShowCmd(opts),
		newInitDBCmd(opts),
	)
	return cmd
}

// session is the audit store and history service used by a one-shot
// command.
type session struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *auditstore.Store
	history *history.Service
}

// openSession loads configuration and connects to the audit store. Logs go
// to stderr so command output stays parseable.
func openSession(ctx context.Context, opts *rootOptions) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewCLILogger(cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	store, err := auditstore.Open(ctx, cfg.AuditStore)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		history: history.NewService(store, cfg.History, nil, logger),
	}, nil
}

func (s *session) Close() {
	s.store.Close()
	_ = s.logger.Sync()
}
