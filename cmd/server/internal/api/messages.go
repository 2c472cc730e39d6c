package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acta-labs/acta/cmd/server/internal/session"
	"github.com/acta-labs/acta/cmd/server/internal/store"
)

type addMessageRequest struct {
	Content string          `json:"content" binding:"required"`
	Sender  *store.Identity `json:"sender"`
}

// HandleAddMessage POST /api/v1/meetings/active/messages
// Records a user message and returns it together with the assistant's
// reply and any tasks extracted from it.
func HandleAddMessage(s *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request: "+err.Error())
			return
		}

		result, err := s.RecordUserMessage(c.Request.Context(), currentUser(c), req.Content, req.Sender)
		if err != nil {
			if errors.Is(err, session.ErrNoActiveMeeting) {
				notFoundResponse(c, "active meeting")
				return
			}
			internalErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

// HandleListMessages GET /api/v1/meetings/active/messages?category=
// Returns the active meeting's messages, optionally filtered by
// category.
func HandleListMessages(s *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Active() == nil {
			notFoundResponse(c, "active meeting")
			return
		}

		category := store.MessageCategory(c.Query("category"))
		if category != "" && !store.ValidCategory(category) {
			badRequestResponse(c, "invalid category: "+string(category))
			return
		}

		successResponse(c, gin.H{"messages": s.FilteredMessages(category)})
	}
}
