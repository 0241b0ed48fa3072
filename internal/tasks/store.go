// Package tasks implements the in-process registry and scheduler for
// asynchronous classification jobs.
package tasks

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/billsense/billsense/internal/model"
)

// Store is a passive, in-memory ledger of task lifecycle records. All reads
// and mutations are serialized by one mutex per store instance; the lock is
// never held across a network call. The store holds no reference to the
// classification work itself.
type Store struct {
	tasks  map[string]*model.Task
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates an empty task store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		tasks:  make(map[string]*model.Task),
		logger: logger,
	}
}

// CreateTask inserts a pending record with a freshly generated, unguessable
// identifier and returns that identifier. UUIDs cannot collide with a live
// task in practice; the live map is still checked to keep the guarantee
// unconditional.
func (s *Store) CreateTask(filename, recordID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	for s.tasks[id] != nil {
		id = uuid.NewString()
	}

	s.tasks[id] = &model.Task{
		ID:        id,
		Status:    model.TaskPending,
		Filename:  filename,
		RecordID:  recordID,
		CreatedAt: time.Now(),
	}

	return id
}

// Get returns a copy of the task, or false if it was never created or has
// been swept.
func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	return *task, true
}

// Update transitions the named task. An unknown id is a silent no-op: the
// task may have been concurrently swept, and callers do not need to observe
// that race. A task already in a terminal status is never transitioned
// again.
func (s *Store) Update(id string, status model.TaskStatus, result *model.ClassificationResult, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status.Terminal() {
		return
	}

	task.Status = status
	if result != nil {
		task.Result = result
	}
	if errMsg != "" {
		task.Error = errMsg
	}
	if status.Terminal() {
		now := time.Now()
		task.CompletedAt = &now
	}
}

// SweepOlderThan removes every task whose creation time is older than
// maxAge and returns the number removed. A maxAge of zero sweeps all tasks;
// it is used at shutdown to release memory deterministically.
func (s *Store) SweepOlderThan(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, task := range s.tasks {
		if maxAge == 0 || task.CreatedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("tasks swept", "count", removed)
	}

	return removed
}

// Count returns the current number of tasks.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
