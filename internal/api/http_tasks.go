package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"soulmedia/internal/entity/dto"
	"soulmedia/internal/tasks"
)

// SubmitTask serves POST /api/tasks: create and enqueue in one step.
func (h *HTTPHandler) SubmitTask(c *gin.Context) {
	var req dto.SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	taskType, err := tasks.ParseType(req.Type)
	if err != nil {
		BadRequest(c, ErrCodeInvalidRequest, err.Error())
		return
	}

	taskID, err := h.tasks.Submit(taskType, req.Params)
	if err != nil {
		ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeQueueFull, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, dto.SubmitTaskResponse{TaskID: taskID})
}

// GetTask serves GET /api/tasks/:id.
func (h *HTTPHandler) GetTask(c *gin.Context) {
	taskID := strings.TrimSpace(c.Param("id"))
	status, ok := h.tasks.Get(taskID)
	if !ok {
		NotFound(c, ErrCodeTaskNotFound, "task not found")
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListTasks serves GET /api/tasks with an optional ?state= filter.
func (h *HTTPHandler) ListTasks(c *gin.Context) {
	state := tasks.State(strings.TrimSpace(c.Query("state")))
	c.JSON(http.StatusOK, gin.H{"tasks": h.tasks.List(state)})
}

// CancelTask serves POST /api/tasks/:id/cancel. Cancelling a finished
// or unknown task reports cancelled=false rather than an error.
func (h *HTTPHandler) CancelTask(c *gin.Context) {
	taskID := strings.TrimSpace(c.Param("id"))
	c.JSON(http.StatusOK, dto.CancelTaskResponse{Cancelled: h.tasks.Cancel(taskID)})
}
