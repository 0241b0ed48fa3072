// Package engine orchestrates classification jobs: it wires the model
// collaborator, the result normalizer, the task registry, and the
// reconciliation policy behind one facade for the transport layer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/billsense/billsense/internal/common"
	"github.com/billsense/billsense/internal/llm"
	"github.com/billsense/billsense/internal/model"
	"github.com/billsense/billsense/internal/tasks"
)

// Engine is the classification engine facade. All collaborators are
// injected once at construction; the engine holds no global state.
type Engine struct {
	classifier Classifier
	records    RecordStore
	store      *tasks.Store
	scheduler  *tasks.Scheduler
	logger     *slog.Logger
}

// New creates an engine with the given collaborators. records may be nil
// when no record store is configured; reconciliation then reports
// ErrStoreWrite.
func New(classifier Classifier, records RecordStore, store *tasks.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		classifier: classifier,
		records:    records,
		store:      store,
		logger:     logger,
	}
	e.scheduler = tasks.NewScheduler(store, e, e, logger)

	return e
}

// ScheduleClassification registers a background classification job and
// returns its task id immediately. The classification itself proceeds
// independently; callers observe it only by polling the task status.
func (e *Engine) ScheduleClassification(content []byte, filename, recordID string) string {
	return e.scheduler.Schedule(content, filename, recordID)
}

// TaskStatus returns the task record for the given id.
func (e *Engine) TaskStatus(id string) (model.Task, bool) {
	return e.store.Get(id)
}

// SweepTasks removes tasks older than maxAge and returns the count removed.
func (e *Engine) SweepTasks(maxAge time.Duration) int {
	return e.store.SweepOlderThan(maxAge)
}

// ClassifySynchronously runs the full classification path inline and
// propagates any error to the caller. It never touches the task store.
func (e *Engine) ClassifySynchronously(ctx context.Context, content []byte, filename string) (model.ClassificationResult, error) {
	return e.CategorizeImage(ctx, content, filename)
}

// CategorizeImage decodes the content, invokes the classifier, and
// normalizes the raw response. It implements tasks.Classifier so the
// scheduler's background jobs share the exact same path.
func (e *Engine) CategorizeImage(ctx context.Context, content []byte, filename string) (model.ClassificationResult, error) {
	payload, err := llm.DecodePayload(content)
	if err != nil {
		return model.ClassificationResult{}, err
	}

	raw, err := e.classifier.Categorize(ctx, payload, filename)
	if err != nil {
		return model.ClassificationResult{}, err
	}

	result, err := llm.ParseResponse(raw, filename)
	if err != nil {
		return model.ClassificationResult{}, err
	}

	e.logger.Info("image categorized",
		"filename", filename,
		"primary_category", result.PrimaryCategory,
		"category_matched", result.CategoryMatched,
		"num_categories", len(result.Categories))

	return result, nil
}

// ReconcileRecord loads the prior state of the record, applies the
// reconciliation policy, and writes the decided fields back. The write is
// not retried and a failure does not roll back any task store entry.
func (e *Engine) ReconcileRecord(ctx context.Context, recordID string, fresh model.ClassificationResult) error {
	_, err := e.applyReconciliation(ctx, recordID, fresh)
	return err
}

// ClassifyAndReconcile is the synchronous reconcile path: classify the
// content inline, then apply the result to the record. Errors from either
// step propagate to the caller.
func (e *Engine) ClassifyAndReconcile(ctx context.Context, recordID string, content []byte, filename string) (model.ClassificationResult, ReconcileDecision, error) {
	result, err := e.ClassifySynchronously(ctx, content, filename)
	if err != nil {
		return model.ClassificationResult{}, ReconcileDecision{}, err
	}

	decision, err := e.applyReconciliation(ctx, recordID, result)
	return result, decision, err
}

func (e *Engine) applyReconciliation(ctx context.Context, recordID string, fresh model.ClassificationResult) (ReconcileDecision, error) {
	if e.records == nil {
		return ReconcileDecision{}, fmt.Errorf("%w: no record store configured", common.ErrStoreWrite)
	}

	record, ok := e.records.GetRecord(ctx, recordID)
	if !ok {
		return ReconcileDecision{}, fmt.Errorf("%w: %s", common.ErrRecordNotFound, recordID)
	}

	decision := Reconcile(fresh, record.Category)

	fields := map[string]any{
		"category": decision.Category,
		"status":   string(decision.Status),
	}
	if decision.AmountOverride != nil {
		fields["amount"] = *decision.AmountOverride
	}
	if fresh.BillRecognised && fresh.BillDetails.VendorName != "" {
		fields["vendor"] = fresh.BillDetails.VendorName
	}

	if !e.records.UpdateRecord(ctx, recordID, fields) {
		return decision, fmt.Errorf("%w: record %s", common.ErrStoreWrite, recordID)
	}

	e.logger.Info("record reconciled",
		"record_id", recordID,
		"category", decision.Category,
		"status", string(decision.Status),
		"amount_override", decision.AmountOverride != nil)

	return decision, nil
}

// Health reports per-collaborator checks for the health endpoint.
func (e *Engine) Health(ctx context.Context) map[string]bool {
	checks := map[string]bool{
		"classifier_configured": e.classifier.IsConfigured(),
	}
	if e.classifier.IsConfigured() {
		checks["classifier_reachable"] = e.classifier.CheckHealth(ctx)
	}
	if e.records != nil {
		checks["record_store"] = e.records.CheckHealth(ctx)
	}
	return checks
}
