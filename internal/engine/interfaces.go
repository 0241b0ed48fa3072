package engine

import (
	"context"

	"github.com/billsense/billsense/internal/model"
)

// Classifier defines the contract for the external vision-model
// collaborator. Categorize returns the provider's raw response text.
type Classifier interface {
	Categorize(ctx context.Context, payload model.ImagePayload, filename string) (string, error)
	IsConfigured() bool
	CheckHealth(ctx context.Context) bool
}

// RecordStore defines the contract for the external transaction record
// store. It never returns errors to the engine: failures surface as false
// or an absent record.
type RecordStore interface {
	GetRecord(ctx context.Context, id string) (*model.TransactionRecord, bool)
	UpdateRecord(ctx context.Context, id string, fields map[string]any) bool
	SetRecord(ctx context.Context, id string, fields map[string]any, merge bool) bool
	CheckHealth(ctx context.Context) bool
}
