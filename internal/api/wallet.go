package api

import (
	"context"  // Ledger calls
	"net/http" // HTTP status codes
	"strconv"  // Cache key building
	"time"     // Cache TTL

	"lottery_system/internal/domain" // Importing domain models
	"lottery_system/internal/utils"  // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// walletCacheTTL bounds how stale a cached balance can be if an invalidation is lost
const walletCacheTTL = 60 * time.Second

// WalletReader reads balances and ledger pages
type WalletReader interface {
	Balance(ctx context.Context, userID uint) (int64, error)
	History(ctx context.Context, userID uint, page, pageSize int) ([]domain.WalletTxn, int64, error)
}

// WalletResponse is the wallet snapshot returned to players
type WalletResponse struct {
	UserID  uint  `json:"user_id"` // Owner
	Balance int64 `json:"balance"` // Points
	Cached  bool  `json:"cached"`  // Served from Redis
}

// GetWalletHandler returns the caller's balance, served from Redis when fresh
func GetWalletHandler(wallets WalletReader, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "code": "UNAUTHORIZED", "error": "Unauthorized"})
			return
		}
		ctx := c.Request.Context()
		cacheKey := utils.WalletCacheKey(id.UserID) // Cache key for wallet
		var cached WalletResponse
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			respondOK(c, http.StatusOK, cached)
			return
		} else if err != nil {
			logrus.WithError(err).Warn("Wallet cache read failed")
		}
		version, verErr := utils.BalanceVersion(ctx, rdb, id.UserID) // Read before the balance
		balance, err := wallets.Balance(ctx, id.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		resp := WalletResponse{UserID: id.UserID, Balance: balance}
		if verErr == nil {
			_, _ = utils.SetCacheAtVersion(ctx, rdb, id.UserID, version, cacheKey, resp, walletCacheTTL)
		}
		respondOK(c, http.StatusOK, resp)
	}
}

// historyPage is one cached page of a user's ledger
type historyPage struct {
	Transactions []domain.WalletTxn `json:"transactions"` // Newest first
	Page         int                `json:"page"`         // Current page
	PageSize     int                `json:"page_size"`    // Page size
	Total        int64              `json:"total"`        // Total rows
	TotalPages   int                `json:"total_pages"`  // Total pages
	Cached       bool               `json:"cached"`       // Served from Redis
}

// GetTransactionHistoryHandler returns a page of the caller's ledger
func GetTransactionHistoryHandler(wallets WalletReader, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "code": "UNAUTHORIZED", "error": "Unauthorized"})
			return
		}
		page, pageSize := paging(c)
		ctx := c.Request.Context()
		// Lives under the user's history prefix so the ledger can drop every page at once
		cacheKey := utils.TxHistoryCachePrefix(id.UserID) + ":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
		var cached historyPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			respondOK(c, http.StatusOK, cached)
			return
		}
		version, verErr := utils.BalanceVersion(ctx, rdb, id.UserID)
		txns, total, err := wallets.History(ctx, id.UserID, page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		resp := historyPage{
			Transactions: txns,
			Page:         page,
			PageSize:     pageSize,
			Total:        total,
			TotalPages:   totalPages(total, pageSize),
		}
		if verErr == nil {
			_, _ = utils.SetCacheAtVersion(ctx, rdb, id.UserID, version, cacheKey, resp, walletCacheTTL)
		}
		respondOK(c, http.StatusOK, resp)
	}
}
