package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"advisor/internal/models"
)

type wireTask struct {
	ID           int64           `json:"id"`
	TaskType     string          `json:"task_type"`
	Status       string          `json:"status"`
	Description  string          `json:"description"`
	InputData    json.RawMessage `json:"input_data"`
	CurrentState json.RawMessage `json:"current_state"`
	Result       json.RawMessage `json:"result"`
	CreatedAt    string          `json:"created_at"`
	CompletedAt  string          `json:"completed_at"`
}

// Tasks lists the user's background tasks, newest first. A non-empty
// statusFilter restricts the result to that lifecycle state.
func (c *Client) Tasks(ctx context.Context, statusFilter string) ([]models.Task, error) {
	path := "/api/tasks/"
	if statusFilter != "" {
		path += "?status_filter=" + url.QueryEscape(statusFilter)
	}

	var wire []wireTask
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &wire); err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0, len(wire))
	for _, w := range wire {
		tasks = append(tasks, toTask(w))
	}
	return tasks, nil
}

// Task fetches a single background task by id.
func (c *Client) Task(ctx context.Context, id int64) (*models.Task, error) {
	var wire wireTask
	path := fmt.Sprintf("/api/tasks/%d", id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &wire); err != nil {
		return nil, err
	}
	task := toTask(wire)
	return &task, nil
}

func toTask(w wireTask) models.Task {
	task := models.Task{
		ID:           w.ID,
		Type:         w.TaskType,
		Status:       models.TaskStatus(w.Status),
		Description:  w.Description,
		InputData:    w.InputData,
		CurrentState: w.CurrentState,
		Result:       w.Result,
	}
	if ts, err := parseTimestamp(w.CreatedAt); err == nil {
		task.CreatedAt = ts
	}
	if ts, err := parseTimestamp(w.CompletedAt); err == nil {
		completed := ts
		task.CompletedAt = &completed
	}
	return task
}
