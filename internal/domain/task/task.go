package task

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusCompleted
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

var ErrNotFound = errors.New("task not found")

// AssigneeName and CreatorName are joined in from the users table on reads.
type Task struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       Status     `json:"status"`
	Priority     Priority   `json:"priority"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	AssigneeID   int64      `json:"user_id"`
	CreatorID    int64      `json:"created_by"`
	AssigneeName string     `json:"assigned_user_name,omitempty"`
	CreatorName  string     `json:"created_by_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required,min=1,max=255"`
	Description string     `json:"description" binding:"omitempty,max=1000"`
	Status      Status     `json:"status" binding:"omitempty,oneof=pending in_progress completed"`
	Priority    Priority   `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"due_date" binding:"omitempty"`
	AssigneeID  int64      `json:"user_id" binding:"required,min=1"`
}

// ApplyDefaults fills the status/priority defaults for omitted fields.
func (r *CreateTaskRequest) ApplyDefaults() {
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
}

// Omitted optional fields fall back to the stored values; the policy layer
// decides which submitted fields are actually honored per caller role.
type UpdateTaskRequest struct {
	Title       string     `json:"title" binding:"required,min=1,max=255"`
	Description *string    `json:"description" binding:"omitempty,max=1000"`
	Status      Status     `json:"status" binding:"omitempty,oneof=pending in_progress completed"`
	Priority    Priority   `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"due_date" binding:"omitempty"`
	AssigneeID  int64      `json:"user_id" binding:"omitempty,min=1"`
}
