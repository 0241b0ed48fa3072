package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/billsense/billsense/internal/storage"
)

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect and seed transaction records",
	}

	cmd.AddCommand(recordsShowCmd())
	cmd.AddCommand(recordsSetCmd())

	return cmd
}

func recordsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <record-id>",
		Short: "Print a transaction record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := storage.NewSQLiteRecordStore(cfg.Database.Path, slog.Default())
			if err != nil {
				return fmt.Errorf("failed to open record store: %w", err)
			}
			defer func() { _ = records.Close() }()

			record, ok := records.GetRecord(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("record %q not found", args[0])
			}

			return printJSON(record)
		},
	}
}

func recordsSetCmd() *cobra.Command {
	var (
		category string
		amount   float64
		vendor   string
		currency string
	)

	cmd := &cobra.Command{
		Use:   "set <record-id>",
		Short: "Create or update a transaction record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := storage.NewSQLiteRecordStore(cfg.Database.Path, slog.Default())
			if err != nil {
				return fmt.Errorf("failed to open record store: %w", err)
			}
			defer func() { _ = records.Close() }()

			fields := map[string]any{}
			if cmd.Flags().Changed("category") {
				fields["category"] = category
			}
			if cmd.Flags().Changed("amount") {
				fields["amount"] = amount
			}
			if cmd.Flags().Changed("vendor") {
				fields["vendor"] = vendor
			}
			if cmd.Flags().Changed("currency") {
				fields["currency"] = currency
			}

			if !records.SetRecord(context.Background(), args[0], fields, true) {
				return fmt.Errorf("failed to write record %q", args[0])
			}

			record, _ := records.GetRecord(cmd.Context(), args[0])
			return printJSON(record)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "record category")
	cmd.Flags().Float64Var(&amount, "amount", 0, "record amount")
	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor name")
	cmd.Flags().StringVar(&currency, "currency", "", "currency code")

	return cmd
}
