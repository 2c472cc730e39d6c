package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acta-labs/acta/cmd/server/internal/session"
	"github.com/acta-labs/acta/cmd/server/internal/store"
)

type startMeetingRequest struct {
	Title        string   `json:"title" binding:"required"`
	Description  string   `json:"description"`
	Participants []string `json:"participants"`
}

// HandleListMeetings GET /api/v1/meetings
func HandleListMeetings(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		meetings, err := st.ListMeetings(c.Request.Context())
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		successResponse(c, gin.H{"meetings": meetings})
	}
}

// HandleStartMeeting POST /api/v1/meetings
// Creates a meeting and makes it the active one, replacing any meeting
// already in progress.
func HandleStartMeeting(s *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startMeetingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request: "+err.Error())
			return
		}

		meeting, err := s.Start(c.Request.Context(), currentUser(c), req.Title, req.Description, req.Participants)
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusCreated, meeting)
	}
}

// HandleActiveMeeting GET /api/v1/meetings/active
// Returns the active meeting with its messages and tasks.
func HandleActiveMeeting(s *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		meeting := s.Active()
		if meeting == nil {
			notFoundResponse(c, "active meeting")
			return
		}
		successResponse(c, gin.H{
			"meeting":  meeting,
			"messages": s.Messages(),
			"tasks":    s.Tasks(),
			"busy":     s.Busy(),
		})
	}
}

// HandleEndMeeting POST /api/v1/meetings/active/end
func HandleEndMeeting(s *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.End(c.Request.Context(), currentUser(c))
		if err != nil {
			if errors.Is(err, session.ErrNoActiveMeeting) {
				notFoundResponse(c, "active meeting")
				return
			}
			internalErrorResponse(c, err)
			return
		}
		successResponse(c, result)
	}
}
