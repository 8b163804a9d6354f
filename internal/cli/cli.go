// Package cli defines the outreach command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"outreach/internal/app"
	"outreach/internal/config"
	"outreach/internal/logging"
	"outreach/internal/models"
	"outreach/internal/service"
)

// NewRootCommand builds the root command with serve, migrate and merge.
func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "outreach",
		Short:         "Audience export and conversation inbox backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (defaults plus environment when empty)")

	load := func() (config.Config, error) {
		return config.Load(configPath)
	}

	root.AddCommand(newServeCommand(load), newMigrateCommand(load), newMergeCommand(load))
	return root
}

func newServeCommand(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fx.New(app.Options(cfg)).Run()
			return nil
		},
	}
}

func newMigrateCommand(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, closeLog, err := logging.New(cfg.Log.Level, cfg.Log.File)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			db, err := app.OpenDB(cfg, logger)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

func newMergeCommand(load func() (config.Config, error)) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge duplicate conversations by customer email",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, closeLog, err := logging.New(cfg.Log.Level, cfg.Log.File)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			db, err := app.OpenDB(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := service.NewMergeService(db, service.MergeOptions{
				Concurrency: cfg.Merge.Concurrency,
				BatchSize:   cfg.Merge.BatchSize,
			}, logger)
			return runMerge(cmd, svc, email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "merge only this email (all duplicated emails when empty)")
	return cmd
}

func runMerge(cmd *cobra.Command, svc *service.MergeService, email string) error {
	ctx := cmd.Context()
	if email != "" {
		r, err := svc.MergeEmail(ctx, email)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), models.MergeResponse{
			ConversationsMerged: r.ConversationsMerged,
			MessagesMoved:       r.MessagesMoved,
		})
	}
	r, err := svc.MergeAll(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), models.BulkMergeResponse{
		EmailsProcessed:     r.EmailsProcessed,
		ConversationsMerged: r.ConversationsMerged,
		MessagesMoved:       r.MessagesMoved,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
