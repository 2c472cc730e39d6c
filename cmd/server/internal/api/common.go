package api

import (
	"github.com/gin-gonic/gin"
)

// currentUser returns the username the auth middleware resolved, or
// "system" for unauthenticated paths.
func currentUser(c *gin.Context) string {
	if user, exists := c.Get("user"); exists {
		if username, ok := user.(string); ok && username != "" {
			return username
		}
	}
	return "system"
}

func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"error": message,
	})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

func notFoundResponse(c *gin.Context, resource string) {
	errorResponse(c, 404, resource+" not found")
}

func badRequestResponse(c *gin.Context, message string) {
	errorResponse(c, 400, message)
}

func unauthorizedResponse(c *gin.Context, message string) {
	if message == "" {
		message = "unauthorized"
	}
	errorResponse(c, 401, message)
}

func conflictResponse(c *gin.Context, message string) {
	errorResponse(c, 409, message)
}

func internalErrorResponse(c *gin.Context, err error) {
	c.JSON(500, gin.H{
		"error":  "internal server error",
		"detail": err.Error(),
	})
}
