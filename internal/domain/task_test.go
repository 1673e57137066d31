package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTask_Validation(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid_task_defaults_to_medium_priority", func(t *testing.T) {
		task, err := NewTask("Resize image", "thumbnail", "", now)
		assert.NoError(t, err)
		assert.Equal(t, StatusNew, task.Status)
		assert.Equal(t, PriorityMedium, task.Priority)
		assert.NotEmpty(t, task.ID)
	})

	t.Run("rejects_empty_title", func(t *testing.T) {
		_, err := NewTask("  ", "x", PriorityHigh, now)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "validation_error")
	})

	t.Run("rejects_invalid_priority", func(t *testing.T) {
		_, err := NewTask("t", "d", Priority("URGENT"), now)
		assert.Error(t, err)
	})
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		legal    bool
	}{
		{StatusNew, StatusPending, true},
		{StatusNew, StatusCancelled, true},
		{StatusNew, StatusInProgress, false},
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusCancelled, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCancelled, StatusPending, false},
	}

	for _, c := range cases {
		assert.Equalf(t, c.legal, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTask_Cancel(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("cancels_from_new", func(t *testing.T) {
		task, _ := NewTask("t", "d", PriorityLow, now)
		assert.NoError(t, task.Cancel(now.Add(time.Minute)))
		assert.Equal(t, StatusCancelled, task.Status)
		assert.NotNil(t, task.FinishedAt)
	})

	t.Run("rejects_cancel_once_in_progress", func(t *testing.T) {
		task, _ := NewTask("t", "d", PriorityLow, now)
		task.Status = StatusInProgress
		err := task.Cancel(now)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "conflict")
	})
}
