package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"cointrader/internal/auth"   // Token validation
	"cointrader/internal/domain" // Error taxonomy

	"github.com/gin-gonic/gin" // Gin web framework
)

// ContextUserID is the gin context key protected handlers read the
// authenticated user from
const ContextUserID = "userID"

// BearerAuth validates the Authorization bearer token before any
// business logic runs, aborting 401 on failure
func BearerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error_kind": domain.ErrorKind(domain.ErrInvalidToken),
				"message":    "Missing or invalid Authorization header",
			})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ") // Extract the token string
		userID, err := auth.ValidateToken(tokenStr, secret)   // Validate and extract the user ID
		if err != nil {
			// If validation fails, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error_kind": domain.ErrorKind(err),
				"message":    "Invalid or expired token",
			})
			return
		}
		c.Set(ContextUserID, userID) // Store userID in context
		c.Next()                     // Proceed to the next handler
	}
}
