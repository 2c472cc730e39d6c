package api

import (
	"github.com/gin-gonic/gin"

	"github.com/acta-labs/acta/cmd/server/internal/search"
)

// HandleSearch GET /api/v1/search?q=
// Accent- and case-insensitive search over all stored messages.
func HandleSearch(searcher *search.Searcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			badRequestResponse(c, "query parameter q is required")
			return
		}

		results, err := searcher.Messages(c.Request.Context(), query)
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		successResponse(c, gin.H{
			"query":   query,
			"results": results,
		})
	}
}
