package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acta-labs/acta/cmd/server/internal/audit"
	"github.com/acta-labs/acta/cmd/server/internal/users"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createUserRequest struct {
	Username string   `json:"username" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Scopes   []string `json:"scopes"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// HandleLogin POST /api/v1/login
func HandleLogin(manager *users.Manager, auditLog audit.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request: "+err.Error())
			return
		}

		u, err := manager.Authenticate(req.Username, req.Password)
		if err != nil {
			unauthorizedResponse(c, "invalid credentials")
			return
		}
		token, err := manager.GenerateToken(u.Username)
		if err != nil {
			internalErrorResponse(c, err)
			return
		}

		auditLog.Log(u.Username, audit.ActionLogin, u.Username, "")
		successResponse(c, gin.H{
			"token":    token,
			"username": u.Username,
			"scopes":   u.Scopes,
		})
	}
}

// HandleListUsers GET /api/v1/users
func HandleListUsers(manager *users.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		successResponse(c, gin.H{"users": manager.ListUsers()})
	}
}

// HandleCreateUser POST /api/v1/users
func HandleCreateUser(manager *users.Manager, auditLog audit.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request: "+err.Error())
			return
		}

		u, err := manager.CreateUser(req.Username, req.Password, req.Scopes)
		if err != nil {
			if errors.Is(err, users.ErrUserExists) {
				conflictResponse(c, err.Error())
				return
			}
			badRequestResponse(c, err.Error())
			return
		}

		auditLog.Log(currentUser(c), audit.ActionCreateUser, u.Username, "")
		c.JSON(http.StatusCreated, u)
	}
}

// HandleChangePassword POST /api/v1/users/:username/password
// Users change their own password; user.manage holders may change any.
func HandleChangePassword(manager *users.Manager, auditLog audit.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")
		var req changePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request: "+err.Error())
			return
		}

		err := manager.ChangePassword(username, req.OldPassword, req.NewPassword)
		if err != nil {
			switch {
			case errors.Is(err, users.ErrUserNotFound):
				notFoundResponse(c, "user")
			case errors.Is(err, users.ErrInvalidCredentials):
				unauthorizedResponse(c, "old password incorrect")
			default:
				internalErrorResponse(c, err)
			}
			return
		}

		auditLog.Log(currentUser(c), audit.ActionChangePassword, username, "")
		successResponse(c, gin.H{"message": "password changed"})
	}
}
