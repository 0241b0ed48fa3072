package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/billsense/billsense/internal/model"
)

// Classifier runs one full classification: decode, model call, normalize.
type Classifier interface {
	CategorizeImage(ctx context.Context, content []byte, filename string) (model.ClassificationResult, error)
}

// Reconciler applies a completed result to an existing external record.
type Reconciler interface {
	ReconcileRecord(ctx context.Context, recordID string, fresh model.ClassificationResult) error
}

// Scheduler launches classification jobs as fire-and-forget goroutines and
// records their lifecycle through the task store. Schedule returns as soon
// as the task id is minted; nothing the background job does can reach a
// caller except through the stored task record.
type Scheduler struct {
	store      *Store
	classifier Classifier
	reconciler Reconciler
	logger     *slog.Logger
}

// NewScheduler creates a scheduler. The reconciler may be nil when no
// record store is attached.
func NewScheduler(store *Store, classifier Classifier, reconciler Reconciler, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:      store,
		classifier: classifier,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Schedule creates a task record and launches the classification work
// without blocking the caller. When recordID is non-empty, the completed
// result is additionally reconciled against that record.
func (s *Scheduler) Schedule(content []byte, filename, recordID string) string {
	id := s.store.CreateTask(filename, recordID)

	go s.process(id, content, filename, recordID)

	s.logger.Info("task scheduled",
		"task_id", id,
		"filename", filename)

	return id
}

// process is the background unit of work. Every failure is terminal and
// silent beyond the stored error field; nothing escapes this boundary.
func (s *Scheduler) process(id string, content []byte, filename, recordID string) {
	// The job outlives the request that scheduled it and has no
	// cancellation mechanism; timeouts belong to the collaborator.
	ctx := context.Background()

	s.store.Update(id, model.TaskProcessing, nil, "")

	s.logger.Info("background task started",
		"task_id", id,
		"filename", filename)

	result, err := s.classifier.CategorizeImage(ctx, content, filename)
	if err != nil {
		s.store.Update(id, model.TaskFailed, nil, err.Error())
		s.logger.Error("background task failed",
			"task_id", id,
			"filename", filename,
			"error", err.Error())
		return
	}

	s.store.Update(id, model.TaskCompleted, &result, "")

	s.logger.Info("background task completed",
		"task_id", id,
		"filename", filename,
		"primary_category", result.PrimaryCategory)

	if recordID != "" && s.reconciler != nil {
		// A reconciliation failure is logged but does not fail the task;
		// the task store entry is already terminal and is not rolled back.
		if rerr := s.reconciler.ReconcileRecord(ctx, recordID, result); rerr != nil {
			s.logger.Warn("reconciliation after background task failed",
				"task_id", id,
				"record_id", recordID,
				"error", fmt.Sprintf("%v", rerr))
		}
	}
}
