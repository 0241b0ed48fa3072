package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billsense/billsense/internal/model"
)

func createTestStore(t *testing.T) *SQLiteRecordStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "records.db")
	store, err := NewSQLiteRecordStore(dbPath, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSetAndGetRecord(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	ok := store.SetRecord(ctx, "txn-1", map[string]any{
		"category": "food",
		"status":   "approved",
		"amount":   540.5,
		"vendor":   "Corner Store",
	}, false)
	require.True(t, ok)

	record, found := store.GetRecord(ctx, "txn-1")
	require.True(t, found)
	assert.Equal(t, "txn-1", record.ID)
	assert.Equal(t, "food", record.Category)
	assert.Equal(t, model.StatusApproved, record.Status)
	assert.InDelta(t, 540.5, record.Amount, 1e-9)
	assert.Equal(t, "Corner Store", record.Vendor)
	assert.Equal(t, "INR", record.Currency)
	assert.False(t, record.UpdatedAt.IsZero())
}

func TestGetRecordUnknown(t *testing.T) {
	store := createTestStore(t)

	record, found := store.GetRecord(context.Background(), "no-such-record")
	assert.False(t, found)
	assert.Nil(t, record)
}

func TestUpdateRecord(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		id       string
		fields   map[string]any
		wantOK   bool
		validate func(t *testing.T, store *SQLiteRecordStore)
	}{
		{
			name:   "partial update keeps other columns",
			id:     "txn-1",
			fields: map[string]any{"category": "fuel", "status": "flagged"},
			wantOK: true,
			validate: func(t *testing.T, store *SQLiteRecordStore) {
				record, found := store.GetRecord(ctx, "txn-1")
				require.True(t, found)
				assert.Equal(t, "fuel", record.Category)
				assert.Equal(t, model.StatusFlagged, record.Status)
				assert.InDelta(t, 100, record.Amount, 1e-9)
			},
		},
		{
			name:   "unknown record reports false",
			id:     "missing",
			fields: map[string]any{"category": "fuel"},
			wantOK: false,
		},
		{
			name:   "unknown columns ignored",
			id:     "txn-1",
			fields: map[string]any{"category": "medical", "nonsense": "x", "id": "evil"},
			wantOK: true,
			validate: func(t *testing.T, store *SQLiteRecordStore) {
				record, _ := store.GetRecord(ctx, "txn-1")
				assert.Equal(t, "medical", record.Category)
				assert.Equal(t, "txn-1", record.ID)
			},
		},
		{
			name:   "no usable fields reports false",
			id:     "txn-1",
			fields: map[string]any{"nonsense": "x"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := createTestStore(t)
			require.True(t, store.SetRecord(ctx, "txn-1", map[string]any{
				"category": "food",
				"amount":   100.0,
			}, false))

			ok := store.UpdateRecord(ctx, tt.id, tt.fields)
			assert.Equal(t, tt.wantOK, ok)

			if tt.validate != nil {
				tt.validate(t, store)
			}
		})
	}
}

func TestSetRecordMerge(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	require.True(t, store.SetRecord(ctx, "txn-1", map[string]any{
		"category": "food",
		"vendor":   "Corner Store",
	}, false))

	t.Run("merge keeps unnamed columns", func(t *testing.T) {
		require.True(t, store.SetRecord(ctx, "txn-1", map[string]any{"category": "fuel"}, true))

		record, _ := store.GetRecord(ctx, "txn-1")
		assert.Equal(t, "fuel", record.Category)
		assert.Equal(t, "Corner Store", record.Vendor)
	})

	t.Run("overwrite resets unnamed columns", func(t *testing.T) {
		require.True(t, store.SetRecord(ctx, "txn-1", map[string]any{"category": "medical"}, false))

		record, _ := store.GetRecord(ctx, "txn-1")
		assert.Equal(t, "medical", record.Category)
		assert.Empty(t, record.Vendor)
		assert.Equal(t, "INR", record.Currency)
	})
}

func TestCheckHealth(t *testing.T) {
	store := createTestStore(t)
	assert.True(t, store.CheckHealth(context.Background()))

	require.NoError(t, store.Close())
	assert.False(t, store.CheckHealth(context.Background()))
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "records.db")
	ctx := context.Background()

	store, err := NewSQLiteRecordStore(dbPath, slog.Default())
	require.NoError(t, err)
	require.True(t, store.SetRecord(ctx, "txn-1", map[string]any{"category": "food"}, false))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteRecordStore(dbPath, slog.Default())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	record, found := reopened.GetRecord(ctx, "txn-1")
	require.True(t, found)
	assert.Equal(t, "food", record.Category)
}

func TestNewSQLiteRecordStoreValidation(t *testing.T) {
	_, err := NewSQLiteRecordStore("", slog.Default())
	assert.Error(t, err)
}
