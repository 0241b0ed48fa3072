package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billsense/billsense/internal/common"
	"github.com/billsense/billsense/internal/model"
	"github.com/billsense/billsense/internal/tasks"
)

// Text content sidesteps image sniffing in tests; the payload decoder
// passes plain text through unchanged.
var testContent = []byte("receipt: 2x milk 60, bread 45")

func newTestEngine(classifier Classifier, records RecordStore) *Engine {
	return New(classifier, records, tasks.NewStore(slog.Default()), slog.Default())
}

func TestClassifySynchronously(t *testing.T) {
	classifier := &MockClassifier{
		Response:   `{"categories":[{"name":"food","confidence":0.9}],"summary":"groceries"}`,
		Configured: true,
	}
	e := newTestEngine(classifier, nil)

	result, err := e.ClassifySynchronously(context.Background(), testContent, "receipt.txt")
	require.NoError(t, err)

	assert.Equal(t, "receipt.txt", result.Filename)
	assert.Equal(t, "food", result.PrimaryCategory)
	assert.True(t, result.CategoryMatched)
	assert.Equal(t, "groceries", result.RawSummary)
	assert.Equal(t, 1, classifier.Calls())
}

func TestClassifySynchronously_Errors(t *testing.T) {
	t.Run("classifier error propagates", func(t *testing.T) {
		classifier := &MockClassifier{Err: common.ErrClassifierUnavailable, Configured: true}
		e := newTestEngine(classifier, nil)

		_, err := e.ClassifySynchronously(context.Background(), testContent, "receipt.txt")
		assert.ErrorIs(t, err, common.ErrClassifierUnavailable)
	})

	t.Run("malformed response propagates", func(t *testing.T) {
		classifier := &MockClassifier{Response: "not json", Configured: true}
		e := newTestEngine(classifier, nil)

		_, err := e.ClassifySynchronously(context.Background(), testContent, "receipt.txt")
		assert.ErrorIs(t, err, common.ErrMalformedResponse)
	})

	t.Run("unsupported content never reaches classifier", func(t *testing.T) {
		classifier := &MockClassifier{Configured: true}
		e := newTestEngine(classifier, nil)

		// A ZIP local file header is neither a supported image nor text.
		_, err := e.ClassifySynchronously(context.Background(), []byte("PK\x03\x04rest-of-archive"), "bill.zip")
		assert.ErrorIs(t, err, common.ErrUnsupportedFileType)
		assert.Equal(t, 0, classifier.Calls())
	})
}

func TestReconcileRecord(t *testing.T) {
	fresh := model.ClassificationResult{
		PrimaryCategory: "fuel",
		CategoryMatched: true,
		BillRecognised:  true,
	}
	fresh.BillDetails = model.EmptyBillDetails()
	fresh.BillDetails.TotalAmount = 3200
	fresh.BillDetails.VendorName = "Highway Fuels"

	t.Run("updates category, status, amount and vendor", func(t *testing.T) {
		records := NewMockRecordStore()
		records.Records["txn-1"] = &model.TransactionRecord{ID: "txn-1", Category: "food"}
		e := newTestEngine(&MockClassifier{Configured: true}, records)

		err := e.ReconcileRecord(context.Background(), "txn-1", fresh)
		require.NoError(t, err)

		record, ok := records.GetRecord(context.Background(), "txn-1")
		require.True(t, ok)
		assert.Equal(t, "fuel", record.Category)
		assert.Equal(t, model.StatusFlagged, record.Status)
		assert.InDelta(t, 3200, record.Amount, 1e-9)
		assert.Equal(t, "Highway Fuels", record.Vendor)
	})

	t.Run("unknown record", func(t *testing.T) {
		e := newTestEngine(&MockClassifier{Configured: true}, NewMockRecordStore())

		err := e.ReconcileRecord(context.Background(), "missing", fresh)
		assert.ErrorIs(t, err, common.ErrRecordNotFound)
	})

	t.Run("write failure", func(t *testing.T) {
		records := NewMockRecordStore()
		records.Records["txn-1"] = &model.TransactionRecord{ID: "txn-1"}
		records.FailWrites = true
		e := newTestEngine(&MockClassifier{Configured: true}, records)

		err := e.ReconcileRecord(context.Background(), "txn-1", fresh)
		assert.ErrorIs(t, err, common.ErrStoreWrite)
	})

	t.Run("no record store configured", func(t *testing.T) {
		e := newTestEngine(&MockClassifier{Configured: true}, nil)

		err := e.ReconcileRecord(context.Background(), "txn-1", fresh)
		assert.ErrorIs(t, err, common.ErrStoreWrite)
	})

	t.Run("vendor untouched when bill not recognised", func(t *testing.T) {
		records := NewMockRecordStore()
		records.Records["txn-1"] = &model.TransactionRecord{ID: "txn-1", Vendor: "Original Vendor"}
		e := newTestEngine(&MockClassifier{Configured: true}, records)

		unrecognised := model.ClassificationResult{CategoryMatched: false}
		unrecognised.BillDetails = model.EmptyBillDetails()

		err := e.ReconcileRecord(context.Background(), "txn-1", unrecognised)
		require.NoError(t, err)

		record, _ := records.GetRecord(context.Background(), "txn-1")
		assert.Equal(t, "Original Vendor", record.Vendor)
		assert.Equal(t, FallbackCategory, record.Category)
		assert.Equal(t, model.StatusDisapproved, record.Status)
	})
}

func TestClassifyAndReconcile(t *testing.T) {
	classifier := &MockClassifier{
		Response: `{
			"categories":[{"name":"food","confidence":0.92}],
			"bill_recognised":true,
			"bill_details":{"total_amount":105.5,"vendor_name":"Corner Store","items":[]}
		}`,
		Configured: true,
	}
	records := NewMockRecordStore()
	records.Records["txn-9"] = &model.TransactionRecord{ID: "txn-9", Category: "food"}
	e := newTestEngine(classifier, records)

	result, decision, err := e.ClassifyAndReconcile(context.Background(), "txn-9", testContent, "receipt.txt")
	require.NoError(t, err)

	assert.Equal(t, "food", result.PrimaryCategory)
	assert.Equal(t, model.StatusApproved, decision.Status)
	require.NotNil(t, decision.AmountOverride)
	assert.InDelta(t, 105.5, *decision.AmountOverride, 1e-9)

	record, _ := records.GetRecord(context.Background(), "txn-9")
	assert.InDelta(t, 105.5, record.Amount, 1e-9)
}

func TestClassifyAndReconcile_ClassificationErrorSkipsWrite(t *testing.T) {
	records := NewMockRecordStore()
	records.Records["txn-9"] = &model.TransactionRecord{ID: "txn-9", Category: "food"}
	e := newTestEngine(&MockClassifier{Err: errors.New("model down"), Configured: true}, records)

	_, _, err := e.ClassifyAndReconcile(context.Background(), "txn-9", testContent, "receipt.txt")
	require.Error(t, err)
	assert.Empty(t, records.Updates())
}

func TestHealth(t *testing.T) {
	t.Run("configured and reachable", func(t *testing.T) {
		e := newTestEngine(&MockClassifier{Configured: true, Healthy: true}, NewMockRecordStore())

		checks := e.Health(context.Background())
		assert.True(t, checks["classifier_configured"])
		assert.True(t, checks["classifier_reachable"])
		assert.True(t, checks["record_store"])
	})

	t.Run("unconfigured skips reachability probe", func(t *testing.T) {
		e := newTestEngine(&MockClassifier{Configured: false}, nil)

		checks := e.Health(context.Background())
		assert.False(t, checks["classifier_configured"])
		_, probed := checks["classifier_reachable"]
		assert.False(t, probed)
		_, hasStore := checks["record_store"]
		assert.False(t, hasStore)
	})
}
