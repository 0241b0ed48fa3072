package engine

import (
	"context"
	"sync"

	"github.com/billsense/billsense/internal/model"
)

// MockClassifier is a configurable Classifier implementation for tests.
type MockClassifier struct {
	Response   string
	Err        error
	Configured bool
	Healthy    bool
	mu         sync.Mutex
	calls      int
}

// Categorize returns the canned response or error.
func (m *MockClassifier) Categorize(_ context.Context, _ model.ImagePayload, _ string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// IsConfigured reports the configured flag.
func (m *MockClassifier) IsConfigured() bool { return m.Configured }

// CheckHealth reports the healthy flag.
func (m *MockClassifier) CheckHealth(_ context.Context) bool { return m.Healthy }

// Calls returns how many times Categorize was invoked.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockRecordStore is an in-memory RecordStore implementation for tests.
type MockRecordStore struct {
	Records    map[string]*model.TransactionRecord
	FailWrites bool
	mu         sync.Mutex
	updates    []map[string]any
}

// NewMockRecordStore creates an empty mock record store.
func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{Records: make(map[string]*model.TransactionRecord)}
}

// GetRecord returns the stored record, absent if unknown.
func (m *MockRecordStore) GetRecord(_ context.Context, id string) (*model.TransactionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.Records[id]
	if !ok {
		return nil, false
	}
	copied := *record
	return &copied, true
}

// UpdateRecord applies fields to an existing record.
func (m *MockRecordStore) UpdateRecord(_ context.Context, id string, fields map[string]any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return false
	}

	record, ok := m.Records[id]
	if !ok {
		return false
	}

	m.applyFields(record, fields)
	m.updates = append(m.updates, fields)
	return true
}

// SetRecord creates or overwrites a record.
func (m *MockRecordStore) SetRecord(_ context.Context, id string, fields map[string]any, merge bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return false
	}

	record, ok := m.Records[id]
	if !ok || !merge {
		record = &model.TransactionRecord{ID: id}
		m.Records[id] = record
	}

	m.applyFields(record, fields)
	return true
}

// CheckHealth always succeeds for the mock.
func (m *MockRecordStore) CheckHealth(_ context.Context) bool { return true }

// Updates returns the field maps applied through UpdateRecord.
func (m *MockRecordStore) Updates() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.updates...)
}

func (m *MockRecordStore) applyFields(record *model.TransactionRecord, fields map[string]any) {
	if v, ok := fields["category"].(string); ok {
		record.Category = v
	}
	if v, ok := fields["status"].(string); ok {
		record.Status = model.ReviewStatus(v)
	}
	if v, ok := fields["amount"].(float64); ok {
		record.Amount = v
	}
	if v, ok := fields["vendor"].(string); ok {
		record.Vendor = v
	}
}
