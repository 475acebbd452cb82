package api

import (
	"context"  // Engine calls
	"net/http" // HTTP status codes

	"lottery_system/internal/betting" // Wager types
	"lottery_system/internal/domain"  // Bet model

	"github.com/gin-gonic/gin" // Gin web framework
)

// BetPlacer places wager batches for a user
type BetPlacer interface {
	PlaceBets(ctx context.Context, userID uint, wagers []betting.Wager, drawID *uint) (*betting.Result, error)
}

// PlaceBetRequest accepts one wager inline or several under bets
type PlaceBetRequest struct {
	Group  string          `json:"group"`             // Single wager group
	Figure int             `json:"figure"`            // Single wager figure
	Amount int64           `json:"amount"`            // Single wager stake
	Bets   []betting.Wager `json:"bets"`              // Batch of wagers
	DrawID *uint           `json:"draw_id,omitempty"` // Optional explicit target draw
}

func (r PlaceBetRequest) wagers() []betting.Wager {
	if len(r.Bets) > 0 {
		return r.Bets
	}
	if r.Group == "" && r.Figure == 0 && r.Amount == 0 {
		return nil
	}
	return []betting.Wager{{Group: r.Group, Figure: r.Figure, Amount: r.Amount}}
}

// PlaceBetsHandler debits the stakes and records the bets of the caller
func PlaceBetsHandler(engine BetPlacer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "code": "UNAUTHORIZED", "error": "Unauthorized"})
			return
		}
		var req PlaceBetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		res, err := engine.PlaceBets(c.Request.Context(), id.UserID, req.wagers(), req.DrawID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, res)
	}
}

// BetLister lists a user's bets
type BetLister interface {
	ListByUser(ctx context.Context, userID uint, limit int) ([]domain.Bet, error)
}

// ListBetsHandler returns the caller's latest bets, newest first
func ListBetsHandler(bets BetLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "code": "UNAUTHORIZED", "error": "Unauthorized"})
			return
		}
		_, limit := paging(c)
		list, err := bets.ListByUser(c.Request.Context(), id.UserID, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"bets": list})
	}
}
