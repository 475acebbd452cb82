package api

import (
	"context"  // Store calls
	"net/http" // HTTP status codes
	"strconv"  // Query parsing

	"lottery_system/internal/domain" // Group parsing

	"github.com/gin-gonic/gin" // Gin web framework
)

// DrawLister lists recent draws
type DrawLister interface {
	List(ctx context.Context, group domain.Group, limit int) ([]domain.Draw, error)
}

// ListDrawsHandler returns the latest draws, newest slot first, optionally for one group
func ListDrawsHandler(draws DrawLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		var group domain.Group
		if g := c.Query("group"); g != "" {
			parsed, err := domain.ParseGroup(g)
			if err != nil {
				respondError(c, err)
				return
			}
			group = parsed
		}
		limit := 20
		if l := c.Query("limit"); l != "" {
			if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
				limit = v
			}
		}
		list, err := draws.List(c.Request.Context(), group, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"draws": list})
	}
}
