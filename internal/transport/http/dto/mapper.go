package dto

import (
	"github.com/baechuer/taskdispatch/internal/domain"
)

func ToTaskResp(t *domain.Task) TaskResp {
	var result, errMsg *string
	if t.Result != "" {
		result = &t.Result
	}
	if t.Error != "" {
		errMsg = &t.Error
	}

	return TaskResp{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		FinishedAt:  t.FinishedAt,
		Result:      result,
		Error:       errMsg,
	}
}

func ToTaskStatusResp(t *domain.Task) TaskStatusResp {
	return TaskStatusResp{ID: t.ID, Status: string(t.Status)}
}

func ToTaskListResp(tasks []*domain.Task, limit, offset int) ListResp[TaskResp] {
	items := make([]TaskResp, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, ToTaskResp(t))
	}
	return ListResp[TaskResp]{Items: items, Limit: limit, Offset: offset}
}
