package models

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the lifecycle state of a background task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is a long-running job the assistant scheduled on the backend, such as
// drafting a follow-up or watching an inbox for a reply.
type Task struct {
	// ID is the task row id.
	ID int64 `json:"id"`

	// Type classifies the task (e.g. "email_draft", "reminder").
	Type string `json:"task_type"`

	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`

	// Description is the human-readable summary.
	Description string `json:"description"`

	// InputData carries the task's type-specific input.
	InputData json.RawMessage `json:"input_data,omitempty"`

	// CurrentState carries intermediate progress data.
	CurrentState json.RawMessage `json:"current_state,omitempty"`

	// Result carries the type-specific outcome, once finished.
	Result json.RawMessage `json:"result,omitempty"`

	// CreatedAt is when the task was scheduled.
	CreatedAt time.Time `json:"created_at"`

	// CompletedAt is when the task finished, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Done reports whether the task has reached a terminal state.
func (t *Task) Done() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}
