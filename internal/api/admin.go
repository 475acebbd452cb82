package api

import (
	"context"  // Engine calls
	"fmt"      // Note building
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation
	"time"     // Time durations

	"lottery_system/internal/domain"    // Importing domain models
	"lottery_system/internal/ledger"    // Reconciliation report
	"lottery_system/internal/scheduler" // Draw operations
	"lottery_system/internal/utils"     // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// adminListTTL is how long admin listings are served from Redis. Ledger writes drop them earlier.
const adminListTTL = 60 * time.Second

// Crediter adjusts balances on behalf of an admin
type Crediter interface {
	AdjustBalance(ctx context.Context, userID uint, delta int64, note string) (int64, error)
	Reconcile(ctx context.Context, userID uint) (*ledger.Reconciliation, error)
}

// DrawOperator runs manual draw operations
type DrawOperator interface {
	Run(ctx context.Context, group domain.Group, op string) (*scheduler.OpResult, error)
	PostResult(ctx context.Context, drawID uint, figure int) (*scheduler.OpResult, error)
	Repay(ctx context.Context, drawID uint) (*scheduler.OpResult, error)
}

// CreditRequest is the body of POST /admin/credit
type CreditRequest struct {
	UserID uint   `json:"user_id" binding:"required"` // Wallet owner
	Delta  int64  `json:"delta"`                      // Signed points
	Note   string `json:"note"`                       // Reason, recorded in the ledger
}

// AdminCreditHandler credits or debits any wallet. The note is tagged with the
// admin id so it can never pass for a bet or win row.
func AdminCreditHandler(wallets Crediter) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, _ := identityFrom(c)
		var req CreditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		note := strings.TrimSpace(req.Note)
		if note == "" {
			respondError(c, domain.ErrInvalidNote)
			return
		}
		balance, err := wallets.AdjustBalance(c.Request.Context(), req.UserID, req.Delta,
			fmt.Sprintf("admin:%d:%s", admin.UserID, note))
		if err != nil {
			respondError(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"admin_id": admin.UserID,
			"user_id":  req.UserID,
			"delta":    req.Delta,
			"balance":  balance,
		}).Info("Admin credit")
		respondOK(c, http.StatusOK, gin.H{"user_id": req.UserID, "balance": balance})
	}
}

// ExecuteDrawRequest is the body of POST /admin/draws/execute
type ExecuteDrawRequest struct {
	Group string `json:"group" binding:"required"` // Target group
	Op    string `json:"op" binding:"required"`    // seed_next, close_now or execute_now
}

// AdminExecuteDrawHandler seeds, closes or executes a group's draw immediately
func AdminExecuteDrawHandler(ops DrawOperator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ExecuteDrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		group, err := domain.ParseGroup(strings.ToUpper(req.Group))
		if err != nil {
			respondError(c, err)
			return
		}
		res, err := ops.Run(c.Request.Context(), group, req.Op)
		if err != nil {
			respondError(c, err)
			return
		}
		respondPayout(c, res)
	}
}

// PostResultRequest is the body of POST /admin/draws/:id/result
type PostResultRequest struct {
	WinningFigure int `json:"winning_figure" binding:"required"` // 1..36
}

// AdminPostResultHandler executes a draw with the posted figure and pays its winners
func AdminPostResultHandler(ops DrawOperator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil || id == 0 {
			badRequest(c, "Invalid draw id")
			return
		}
		var req PostResultRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, domain.ErrInvalidFigure)
			return
		}
		res, err := ops.PostResult(c.Request.Context(), uint(id), req.WinningFigure)
		if err != nil {
			respondError(c, err)
			return
		}
		respondPayout(c, res)
	}
}

// AdminRepayDrawHandler credits winners of an executed draw that a failed credit left unpaid
func AdminRepayDrawHandler(ops DrawOperator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil || id == 0 {
			badRequest(c, "Invalid draw id")
			return
		}
		res, err := ops.Repay(c.Request.Context(), uint(id))
		if err != nil {
			respondError(c, err)
			return
		}
		respondPayout(c, res)
	}
}

// respondPayout reports a draw operation, with 207 when some winners were not credited
func respondPayout(c *gin.Context, res *scheduler.OpResult) {
	data := gin.H{"draw": res.Draw, "applied": res.Applied}
	if res.Payout == nil {
		respondOK(c, http.StatusOK, data)
		return
	}
	data["winners_count"] = res.Payout.WinnersCount
	data["payouts_applied"] = res.Payout.PayoutsApplied
	data["payout"] = res.Payout
	if err := res.Payout.Err(); err != nil {
		de, _ := domain.AsError(err)
		c.JSON(http.StatusMultiStatus, gin.H{"ok": false, "code": de.Code, "error": err.Error(), "data": data})
		return
	}
	respondOK(c, http.StatusOK, data)
}

// ReconcileHandler compares a wallet with the sum of its ledger
func ReconcileHandler(wallets Crediter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
		if err != nil || userID == 0 {
			badRequest(c, "Invalid user id")
			return
		}
		r, err := wallets.Reconcile(c.Request.Context(), uint(userID))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"reconciliation": r, "consistent": r.Consistent()})
	}
}

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID       uint          `json:"id"`       // User ID
	Username string        `json:"username"` // Username
	Role     string        `json:"role"`     // User role
	Wallet   domain.Wallet `json:"wallet"`   // Associated wallet, zero until first ledger touch
}

// userPage is one cached page of the user listing
type userPage struct {
	Users      []UserAdminResponse `json:"users"`       // List of users
	Page       int                 `json:"page"`        // Current page
	PageSize   int                 `json:"page_size"`   // Page size
	Total      int64               `json:"total"`       // Total number of users
	TotalPages int                 `json:"total_pages"` // Total pages
	Cached     bool                `json:"cached"`      // Served from Redis
}

// ListUsersHandler returns all users with their wallet info
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := paging(c)
		cacheKey := utils.AdminUsersCachePrefix + "page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)
		var cached userPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			respondOK(c, http.StatusOK, cached)
			return
		}
		var total int64 // Total user count
		if err := db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error; err != nil {
			respondError(c, fmt.Errorf("count users: %w", err))
			return
		}
		var users []domain.User
		// Preload Wallet relation, apply offset and limit for pagination
		if err := db.WithContext(ctx).Preload("Wallet").Order("id asc").
			Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
			respondError(c, fmt.Errorf("list users: %w", err))
			return
		}
		resp := userPage{
			Users:      make([]UserAdminResponse, len(users)),
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages(total, pageSize),
		}
		for i, u := range users {
			resp.Users[i] = UserAdminResponse{ID: u.ID, Username: u.Username, Role: u.Role, Wallet: u.Wallet}
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, adminListTTL)
		respondOK(c, http.StatusOK, resp)
	}
}

// txnPage is one cached page of the ledger listing
type txnPage struct {
	Transactions []domain.WalletTxn `json:"transactions"` // Newest first
	Page         int                `json:"page"`         // Current page
	PageSize     int                `json:"page_size"`    // Page size
	Total        int64              `json:"total"`        // Total number of rows
	TotalPages   int                `json:"total_pages"`  // Total pages
	Cached       bool               `json:"cached"`       // Served from Redis
}

// ListTransactionsHandler returns ledger rows across users, filtered by user, type, note prefix or date
func ListTransactionsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := paging(c)
		// Build cache key from all query params
		var keyParts []string
		for _, k := range []string{"user_id", "type", "note", "from", "to"} {
			keyParts = append(keyParts, k+"="+c.Query(k))
		}
		keyParts = append(keyParts, "page="+strconv.Itoa(page), "page_size="+strconv.Itoa(pageSize))
		cacheKey := utils.AdminTxsCachePrefix + strings.Join(keyParts, ":")
		var cached txnPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			respondOK(c, http.StatusOK, cached)
			return
		}
		query := db.WithContext(ctx).Model(&domain.WalletTxn{})
		if userID := c.Query("user_id"); userID != "" {
			query = query.Where("user_id = ?", userID) // Filter by user ID
		}
		if txType := c.Query("type"); txType != "" {
			query = query.Where("type = ?", txType) // Filter by transaction type
		}
		if note := c.Query("note"); note != "" {
			query = query.Where("note LIKE ?", note+"%") // Filter by correlation tag, e.g. win:12:
		}
		if from := c.Query("from"); from != "" {
			query = query.Where("created_at >= ?", from) // Filter by start date
		}
		if to := c.Query("to"); to != "" {
			query = query.Where("created_at <= ?", to) // Filter by end date
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, fmt.Errorf("count transactions: %w", err))
			return
		}
		var txns []domain.WalletTxn
		if err := query.Order("id desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&txns).Error; err != nil {
			respondError(c, fmt.Errorf("list transactions: %w", err))
			return
		}
		resp := txnPage{
			Transactions: txns,
			Page:         page,
			PageSize:     pageSize,
			Total:        total,
			TotalPages:   totalPages(total, pageSize),
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, adminListTTL)
		respondOK(c, http.StatusOK, resp)
	}
}
