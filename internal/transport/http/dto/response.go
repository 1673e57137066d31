package dto

import "time"

// TaskResp is the stable API response model for a task.
type TaskResp struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Result *string `json:"result,omitempty"`
	Error  *string `json:"error,omitempty"`
}

type TaskStatusResp struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ListResp[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
