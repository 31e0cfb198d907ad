package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/mapimport/internal/host"
	"github.com/mrlokans/mapimport/internal/tasks"
)

// TaskQueue is the part of the task client the controller uses.
type TaskQueue interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
	Queues() []string
}

// TasksController handles task queue management endpoints.
type TasksController struct {
	client        TaskQueue
	retentionDays int
}

// NewTasksController creates a new TasksController.
func NewTasksController(client TaskQueue, retentionDays int) *TasksController {
	return &TasksController{client: client, retentionDays: retentionDays}
}

// TaskTypeInfo describes an available task type.
type TaskTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Queue       string `json:"queue"`
}

// RunTaskRequest is the request body for running a task.
type RunTaskRequest struct {
	// CollectionID is required for refresh_remote
	CollectionID string `json:"collection_id,omitempty" form:"collection_id"`
}

// ListTaskTypes handles GET /api/tasks/types. Only types whose queue is
// registered are listed.
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	registered := make(map[string]bool)
	for _, name := range tc.client.Queues() {
		registered[name] = true
	}

	all := []TaskTypeInfo{
		{
			Type:        "refresh_remote",
			Description: "Fetch the remote data of a linked collection",
			Queue:       tasks.RefreshRemoteTask{}.Config().Name,
		},
		{
			Type:        "cleanup_audit_events",
			Description: "Delete audit events past their retention",
			Queue:       tasks.CleanupAuditEventsTask{}.Config().Name,
		},
	}
	types := make([]TaskTypeInfo, 0, len(all))
	for _, info := range all {
		if registered[info.Queue] {
			types = append(types, info)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"task_types": types,
	})
}

// GetTaskStatus handles GET /api/tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

// RunTask handles POST /api/tasks/:type/run
// Manually enqueues a task of the specified type.
func (tc *TasksController) RunTask(c *gin.Context) {
	taskType := c.Param("type")

	var req RunTaskRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBind(&req)
	}

	var task backlite.Task
	switch taskType {
	case "refresh_remote":
		id, err := uuid.Parse(req.CollectionID)
		if err != nil {
			respondBadRequest(c, "collection_id is required for refresh_remote")
			return
		}
		task = tasks.RefreshRemoteTask{Job: host.RefreshJob{CollectionID: id.String(), Force: true}}

	case "cleanup_audit_events":
		task = tasks.CleanupAuditEventsTask{RetentionDays: tc.retentionDays}

	default:
		respondBadRequest(c, fmt.Sprintf("unknown task type: %s", taskType))
		return
	}

	ids, err := tc.client.Add(task).Ctx(c.Request.Context()).Save()
	if err != nil {
		respondInternalError(c, err, "enqueue task")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task_id": ids[0],
		"type":    taskType,
		"message": "task enqueued",
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
