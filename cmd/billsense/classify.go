package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/billsense/billsense/internal/common"
	"github.com/billsense/billsense/internal/engine"
	"github.com/billsense/billsense/internal/llm"
	"github.com/billsense/billsense/internal/storage"
	"github.com/billsense/billsense/internal/tasks"
)

func classifyCmd() *cobra.Command {
	var recordID string

	cmd := &cobra.Command{
		Use:   "classify <image-file>",
		Short: "Classify a local bill or receipt image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := slog.Default()

			content, err := os.ReadFile(args[0])
			if err != nil {
				return common.NewUserError(fmt.Sprintf("cannot read %s", args[0]), err)
			}

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

			var eng *engine.Engine
			if recordID != "" {
				records, serr := storage.NewSQLiteRecordStore(cfg.Database.Path, logger)
				if serr != nil {
					return fmt.Errorf("failed to open record store: %w", serr)
				}
				defer func() { _ = records.Close() }()
				eng = engine.New(classifier, records, tasks.NewStore(logger), logger)

				result, decision, rerr := eng.ClassifyAndReconcile(ctx, recordID, content, args[0])
				if rerr != nil {
					return rerr
				}
				return printJSON(map[string]any{
					"result":   result,
					"category": decision.Category,
					"status":   decision.Status,
				})
			}

			eng = engine.New(classifier, nil, tasks.NewStore(logger), logger)
			result, err := eng.ClassifySynchronously(ctx, content, args[0])
			if err != nil {
				return err
			}

			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&recordID, "record", "", "reconcile the result against this record id")

	return cmd
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
