// Package storage implements the transaction record store on SQLite.
//
// The store follows the collaborator contract of the engine: it never
// returns errors upward. Failures are logged and reported as false or an
// absent record, so a broken store degrades reconciliation without taking
// down classification.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/billsense/billsense/internal/model"
)

// recordFields are the columns UpdateRecord and SetRecord accept. Unknown
// keys in a field map are ignored.
var recordFields = map[string]bool{
	"category": true,
	"status":   true,
	"amount":   true,
	"vendor":   true,
	"currency": true,
}

// SQLiteRecordStore implements the engine's RecordStore contract.
type SQLiteRecordStore struct {
	db     *sql.DB
	logger *slog.Logger
	dbPath string
}

// NewSQLiteRecordStore opens (creating if needed) the record database.
func NewSQLiteRecordStore(dbPath string, logger *slog.Logger) (*SQLiteRecordStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteRecordStore{
		db:     db,
		logger: logger,
		dbPath: dbPath,
	}

	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteRecordStore) Close() error {
	return s.db.Close()
}

// GetRecord returns the record with the given id, or absent when the id is
// unknown or the read fails.
func (s *SQLiteRecordStore) GetRecord(ctx context.Context, id string) (*model.TransactionRecord, bool) {
	var record model.TransactionRecord
	var updatedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, category, status, amount, vendor, currency, updated_at
		FROM transaction_records WHERE id = ?
	`, id).Scan(&record.ID, &record.Category, (*string)(&record.Status),
		&record.Amount, &record.Vendor, &record.Currency, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.logger.Error("record get failed", "record_id", id, "error", err.Error())
		return nil, false
	}

	if updatedAt.Valid {
		record.UpdatedAt = updatedAt.Time
	}

	return &record, true
}

// UpdateRecord applies the given fields to an existing record. Updating an
// unknown record reports false.
func (s *SQLiteRecordStore) UpdateRecord(ctx context.Context, id string, fields map[string]any) bool {
	columns, args := filterFields(fields)
	if len(columns) == 0 {
		s.logger.Warn("record update with no usable fields", "record_id", id)
		return false
	}

	assignments := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		assignments = append(assignments, col+" = ?")
	}
	assignments = append(assignments, "updated_at = ?")
	args = append(args, time.Now(), id)

	query := fmt.Sprintf("UPDATE transaction_records SET %s WHERE id = ?", strings.Join(assignments, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("record update failed", "record_id", id, "error", err.Error())
		return false
	}

	affected, err := result.RowsAffected()
	if err != nil || affected == 0 {
		s.logger.Warn("record update matched nothing", "record_id", id)
		return false
	}

	s.logger.Info("record updated", "record_id", id, "fields", columns)
	return true
}

// SetRecord creates or replaces a record. With merge, existing column
// values not named in fields are kept; without it the record is rewritten
// from defaults.
func (s *SQLiteRecordStore) SetRecord(ctx context.Context, id string, fields map[string]any, merge bool) bool {
	columns, args := filterFields(fields)

	if !merge {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM transaction_records WHERE id = ?", id); err != nil {
			s.logger.Error("record set failed", "record_id", id, "error", err.Error())
			return false
		}
	}

	insertCols := append([]string{"id"}, columns...)
	insertCols = append(insertCols, "updated_at")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(insertCols)), ", ")

	updates := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	updates = append(updates, "updated_at = excluded.updated_at")

	query := fmt.Sprintf(
		"INSERT INTO transaction_records (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		strings.Join(insertCols, ", "), placeholders, strings.Join(updates, ", "))

	insertArgs := append([]any{id}, args...)
	insertArgs = append(insertArgs, time.Now())

	if _, err := s.db.ExecContext(ctx, query, insertArgs...); err != nil {
		s.logger.Error("record set failed", "record_id", id, "error", err.Error())
		return false
	}

	s.logger.Info("record set", "record_id", id, "merge", merge)
	return true
}

// CheckHealth reports whether the database answers a trivial query.
func (s *SQLiteRecordStore) CheckHealth(ctx context.Context) bool {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		s.logger.Warn("record store health check failed", "error", err.Error())
		return false
	}
	return true
}

// filterFields keeps only known columns, in deterministic order.
func filterFields(fields map[string]any) ([]string, []any) {
	columns := make([]string, 0, len(fields))
	for key := range fields {
		if recordFields[key] {
			columns = append(columns, key)
		}
	}
	sort.Strings(columns)

	args := make([]any, 0, len(columns))
	for _, col := range columns {
		args = append(args, fields[col])
	}
	return columns, args
}
