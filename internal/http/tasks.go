package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/growlin/internal/auth"
	"github.com/mrlokans/growlin/internal/tasks"
)

// TasksController lets staff inspect and trigger the background tasks.
type TasksController struct {
	queue     TaskQueue
	scheduler Schedule
	auditor   AdminAuditor
}

func NewTasksController(queue TaskQueue, scheduler Schedule, auditor AdminAuditor) *TasksController {
	return &TasksController{queue: queue, scheduler: scheduler, auditor: auditor}
}

// TaskTypeInfo describes a task type and when the scheduler runs it next.
type TaskTypeInfo struct {
	tasks.TaskType
	NextRun *time.Time `json:"next_run,omitempty"`
}

// ListTaskTypes handles GET /admin/api/tasks/types
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	types := tasks.TaskTypes()
	out := make([]TaskTypeInfo, 0, len(types))
	for _, t := range types {
		info := TaskTypeInfo{TaskType: t}
		if tc.scheduler != nil && tc.scheduler.IsRunning() {
			info.NextRun = tc.scheduler.NextRunTime(t.Type)
		}
		out = append(out, info)
	}

	c.JSON(http.StatusOK, gin.H{"task_types": out})
}

// GetTaskStatus handles GET /admin/api/tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.queue.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": tasks.StatusName(status),
	})
}

// RunTask handles POST /admin/api/tasks/:type/run
func (tc *TasksController) RunTask(c *gin.Context) {
	taskType := c.Param("type")

	id, err := tc.queue.EnqueueType(c.Request.Context(), taskType)
	if tc.auditor != nil {
		tc.auditor.LogAdmin(auth.GetUserID(c), "run_task", "task", 0, "run "+taskType, err)
	}
	if err != nil {
		if errors.Is(err, tasks.ErrUnknownTaskType) {
			respondError(c, http.StatusBadRequest, err.Error(), "unknown_task_type")
			return
		}
		respondInternalError(c, err, "enqueue task")
		return
	}

	respondAccepted(c, "task enqueued", gin.H{"task_id": id, "type": taskType})
}
