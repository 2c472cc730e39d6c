package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/acta-labs/acta/cmd/server/internal/session"
	"github.com/acta-labs/acta/cmd/server/internal/store"
)

type addTaskRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Assignee    *store.Identity `json:"assignee"`
	DueDate     *time.Time      `json:"due_date"`
}

type updateTaskStatusRequest struct {
	Status store.TaskStatus `json:"status" binding:"required"`
}

// HandleAddTask POST /api/v1/meetings/active/tasks
func HandleAddTask(s *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request: "+err.Error())
			return
		}

		task, err := s.AddTask(c.Request.Context(), currentUser(c), store.TaskDraft{
			Title:       req.Title,
			Description: req.Description,
			Assignee:    req.Assignee,
			DueDate:     req.DueDate,
		})
		if err != nil {
			if errors.Is(err, session.ErrNoActiveMeeting) {
				notFoundResponse(c, "active meeting")
				return
			}
			internalErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusCreated, task)
	}
}

// HandleListTasks GET /api/v1/tasks?meeting_id=
// Returns all tasks, or those of one meeting.
func HandleListTasks(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := st.ListTasks(c.Request.Context(), c.Query("meeting_id"))
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		successResponse(c, gin.H{"tasks": tasks})
	}
}

// HandleUpdateTaskStatus PUT /api/v1/tasks/:id/status
func HandleUpdateTaskStatus(s *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateTaskStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request: "+err.Error())
			return
		}

		task, err := s.UpdateTaskStatus(c.Request.Context(), currentUser(c), c.Param("id"), req.Status)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				notFoundResponse(c, "task")
			case errors.Is(err, store.ErrInvalidStatus):
				badRequestResponse(c, err.Error())
			default:
				internalErrorResponse(c, err)
			}
			return
		}
		successResponse(c, task)
	}
}
