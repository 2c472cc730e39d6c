package api

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/acta-labs/acta/cmd/server/internal/audit"
	"github.com/acta-labs/acta/cmd/server/internal/idp/oidc"
	"github.com/acta-labs/acta/cmd/server/internal/users"
)

// stateStore tracks pending OIDC login states for 10 minutes.
type stateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
}

func newStateStore() *stateStore {
	return &stateStore{states: map[string]time.Time{}}
}

func (s *stateStore) issue() string {
	state := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, t := range s.states {
		if now.Sub(t) > 10*time.Minute {
			delete(s.states, k)
		}
	}
	s.states[state] = now
	return state
}

func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return time.Since(t) <= 10*time.Minute
}

var oidcStates = newStateStore()

type oidcCallbackRequest struct {
	Code  string `json:"code" binding:"required"`
	State string `json:"state" binding:"required"`
}

// HandleOIDCAuthURL GET /api/v1/auth/oidc/url
func HandleOIDCAuthURL(auth *oidc.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := oidcStates.issue()
		successResponse(c, gin.H{
			"url":   auth.AuthorizationURL(state),
			"state": state,
		})
	}
}

// HandleOIDCCallback POST /api/v1/auth/oidc/callback
// Exchanges the authorization code, maps the external identity to a
// local account (creating it on first login), and returns a token.
func HandleOIDCCallback(auth *oidc.Authenticator, manager *users.Manager, auditLog audit.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req oidcCallbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request: "+err.Error())
			return
		}
		if !oidcStates.consume(req.State) {
			unauthorizedResponse(c, "unknown or expired state")
			return
		}

		result, err := auth.Authenticate(c.Request.Context(), req.Code)
		if err != nil {
			unauthorizedResponse(c, err.Error())
			return
		}

		if _, exists := manager.GetUser(result.Username); !exists {
			scopes := auth.DefaultScopes()
			if len(scopes) == 0 {
				scopes = []string{users.ScopeMeetingRead, users.ScopeTaskRead}
			}
			// random local password; the account only logs in via OIDC
			if _, err := manager.CreateUser(result.Username, uuid.NewString(), scopes); err != nil {
				internalErrorResponse(c, err)
				return
			}
		}

		token, err := manager.GenerateToken(result.Username)
		if err != nil {
			internalErrorResponse(c, err)
			return
		}

		auditLog.Log(result.Username, audit.ActionLogin, result.Username, "oidc")
		u, _ := manager.GetUser(result.Username)
		successResponse(c, gin.H{
			"token":    token,
			"username": u.Username,
			"scopes":   u.Scopes,
		})
	}
}
