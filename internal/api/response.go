package api

import (
	"errors"   // Error classification
	"net/http" // HTTP status codes
	"strconv"  // Query parsing

	"lottery_system/internal/domain"     // Domain errors and identity
	"lottery_system/internal/middleware" // Identity context key

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// respondOK writes the success envelope
func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"ok": true, "data": data})
}

// statusFor maps an error kind to its HTTP status
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindState:
		return http.StatusConflict
	case domain.KindConsistency:
		return http.StatusUnprocessableEntity
	case domain.KindPartial:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the failure envelope. Unclassified errors are logged and
// never shown to the caller.
func respondError(c *gin.Context, err error) {
	de, ok := domain.AsError(err)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString(middleware.RequestIDKey),
		}).WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "code": "INTERNAL", "error": "internal error"})
		return
	}
	body := gin.H{"ok": false, "code": de.Code, "error": de.Message}
	var be *domain.BatchError
	if errors.As(err, &be) {
		// Wagers committed before the failure stay committed and are disclosed
		body["data"] = gin.H{"index": be.Index, "applied": be.Applied, "balance": be.BalanceAfter}
	}
	c.JSON(statusFor(de.Kind), body)
}

// badRequest writes a validation failure that has no domain sentinel
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "code": "INVALID_REQUEST", "error": msg})
}

// identityFrom returns the verified caller set by the auth middleware
func identityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(middleware.IdentityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

// paging reads page and page_size, defaulting to 1 and 20, page_size capped at 100
func paging(c *gin.Context) (int, int) {
	page := 1      // Default page number
	pageSize := 20 // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v // Set page size if valid
		}
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	return (int(total) + pageSize - 1) / pageSize
}
