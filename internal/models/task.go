package models

import "time"

// Task statuses
const (
	TaskStatusPending = "PENDING"
	TaskStatusRunning = "RUNNING"
	TaskStatusSuccess = "SUCCESS"
	TaskStatusFailed  = "FAILED"
)

// Task is one deferred unit of work in the DB-backed queue. The payload
// carries serialized scalars only; nothing live crosses the boundary
// between the request handler and the worker.
type Task struct {
	Base
	Kind    string  `gorm:"size:64;not null;index" json:"kind"`
	Payload JSONMap `gorm:"type:jsonb" json:"payload"`

	Status       string     `gorm:"default:'PENDING';index" json:"status"`
	StartedAt    *time.Time `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
}

func (t *Task) MarkFinished(status string, errorMessage string) {
	now := time.Now()
	t.FinishedAt = &now
	t.Status = status
	t.ErrorMessage = errorMessage
}
