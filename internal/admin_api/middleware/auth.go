package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platform-finance-ledger/internal/config"
)

const (
	// AdminIDHeader carries the acting admin's identifier for the audit trail
	AdminIDHeader = "X-Admin-ID"

	// AdminIDKey is the key used to store the admin id in the context
	AdminIDKey = "admin_id"
)

// RequireFinanceAdmin guards the admin finance endpoints with the configured
// bearer token. The admin id header identifies the actor for audit rows; it
// is required so no mutation lands in the audit log anonymously.
func RequireFinanceAdmin(logger *slog.Logger, cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "UNAUTHORIZED", "message": "Missing bearer token"},
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AdminAPIToken)) != 1 {
			logger.Warn("Rejected admin API call with invalid token", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{"code": "FORBIDDEN", "message": "Invalid credentials"},
			})
			return
		}

		adminID := c.GetHeader(AdminIDHeader)
		if adminID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "BAD_REQUEST", "message": "Missing " + AdminIDHeader + " header"},
			})
			return
		}
		c.Set(AdminIDKey, adminID)

		c.Next()
	}
}

// GetAdminID retrieves the acting admin's id from the gin context if present
func GetAdminID(c *gin.Context) string {
	if id, exists := c.Get(AdminIDKey); exists {
		if adminID, ok := id.(string); ok {
			return adminID
		}
	}
	return ""
}
