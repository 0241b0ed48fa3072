package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/billsense/billsense/internal/engine"
	"github.com/billsense/billsense/internal/llm"
	"github.com/billsense/billsense/internal/server"
	"github.com/billsense/billsense/internal/storage"
	"github.com/billsense/billsense/internal/tasks"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP classification service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := slog.Default()

			classifier, err := llm.NewClassifier(llm.Config{
				APIKey:     cfg.Gemini.APIKey,
				Model:      cfg.Gemini.Model,
				Timeout:    cfg.Gemini.Timeout,
				RateLimit:  cfg.Gemini.RateLimit,
				MaxRetries: cfg.Gemini.MaxRetries,
				CacheTTL:   cfg.Gemini.CacheTTL,
			}, logger)
			if err != nil {
				return fmt.Errorf("failed to create classifier: %w", err)
			}
			defer classifier.Close()

			if !classifier.IsConfigured() {
				logger.Warn("gemini API key not configured; classification requests will fail")
			}

			records, err := storage.NewSQLiteRecordStore(cfg.Database.Path, logger)
			if err != nil {
				return fmt.Errorf("failed to open record store: %w", err)
			}
			defer func() { _ = records.Close() }()

			store := tasks.NewStore(logger)
			eng := engine.New(classifier, records, store, logger)

			// Periodic sweep keeps the in-memory registry bounded; the
			// shutdown path sweeps the remainder.
			maxAge := time.Duration(cfg.Tasks.MaxAgeHours) * time.Hour
			go func() {
				ticker := time.NewTicker(time.Hour)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						store.SweepOlderThan(maxAge)
					}
				}
			}()

			return server.New(eng, cfg, logger, version).Run(ctx)
		},
	}
}
