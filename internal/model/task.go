package model

import "time"

// TaskStatus tracks the lifecycle of an asynchronous classification job.
type TaskStatus string

// Task status constants.
const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether the status is final. A task never transitions
// out of a terminal status.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is the lifecycle record for one background classification job.
// Task records are owned exclusively by the task store.
type Task struct {
	ID          string                `json:"task_id"`
	Status      TaskStatus            `json:"status"`
	Filename    string                `json:"filename"`
	RecordID    string                `json:"record_id,omitempty"`
	Result      *ClassificationResult `json:"result"`
	Error       string                `json:"error"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt *time.Time            `json:"completed_at"`
}
