package api

import (
	"context"  // Driver calls
	"net/http" // HTTP status codes

	"lottery_system/internal/scheduler" // Tick result

	"github.com/gin-gonic/gin" // Gin web framework
)

// Ticker runs one scheduler pass
type Ticker interface {
	Tick(ctx context.Context) (*scheduler.TickResult, error)
}

// SchedulerTickHandler runs one tick for the external trigger. Retries are safe.
func SchedulerTickHandler(driver Ticker) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := driver.Tick(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, res)
	}
}
