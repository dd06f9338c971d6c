package auth

import (
	"net/http"
	"strings"
	"time"

	"outbound-dialer/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequireAccessToken rejects requests without a valid access token and puts the
// caller's identity on the request context. Role checks live in internal/rbac.
//
// The request logger gains account_id and user_id so every line logged while
// serving a dialing request can be traced back to the account.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			logger.FromGin(c).Debug("rejected access token", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		ctx := c.Request.Context()
		ctx = logger.With(ctx, logger.From(ctx).With("account_id", claims.AccountID, "user_id", claims.UserID))
		c.Request = c.Request.WithContext(WithIdentity(ctx, claims.UserID, claims.AccountID, claims.Role))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
