package dto

// SubmitTaskRequest creates and enqueues a background generation job.
type SubmitTaskRequest struct {
	Type   string            `json:"type" binding:"required"`
	Params map[string]string `json:"params" binding:"required"`
}

// SubmitTaskResponse returns the identifier of the enqueued job.
type SubmitTaskResponse struct {
	TaskID string `json:"task_id"`
}

// TaskStatusResponse is the client view of a background task.
type TaskStatusResponse struct {
	TaskID      string            `json:"task_id"`
	Type        string            `json:"type"`
	State       string            `json:"state"`
	Progress    int               `json:"progress"`
	Params      map[string]string `json:"params,omitempty"`
	Result      interface{}       `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   string            `json:"created_at"`
	StartedAt   string            `json:"started_at,omitempty"`
	CompletedAt string            `json:"completed_at,omitempty"`
}

// CancelTaskResponse reports whether a cancellation request took effect.
type CancelTaskResponse struct {
	Cancelled bool `json:"cancelled"`
}
