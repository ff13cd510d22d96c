package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Tyagi221B/Backend/internal/domain"
	"github.com/Tyagi221B/Backend/internal/service"
)

const currentUserKey = "currentUser"

// AccessTokenCookie is the cookie carrying the access token for browser
// clients. Native clients use the Authorization header instead.
const AccessTokenCookie = "accessToken"

type currentUserCtxKey struct{}

// Auth resolves the caller's identity from the access token and attaches it
// to the request. It never mutates the credential record.
type Auth struct {
	AuthService *service.AuthService
}

// RequireUser extracts the access token (cookie first, then bearer header),
// verifies it, resolves the live credential record, and exposes the
// sanitized identity to downstream handlers.
func (m *Auth) RequireUser(c *gin.Context) {
	token := extractAccessToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Unauthorized request."})
		return
	}

	user, err := m.AuthService.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Invalid or expired access token."})
		return
	}

	ctx := context.WithValue(c.Request.Context(), currentUserCtxKey{}, user)
	c.Request = c.Request.WithContext(ctx)
	c.Set(currentUserKey, user)
	c.Next()
}

// CurrentUser returns the identity attached by RequireUser.
func CurrentUser(c *gin.Context) (domain.PublicUser, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return domain.PublicUser{}, false
	}
	user, ok := value.(domain.PublicUser)
	return user, ok
}

// CurrentUserFromContext extracts the identity from a standard context.
func CurrentUserFromContext(ctx context.Context) (domain.PublicUser, bool) {
	value := ctx.Value(currentUserCtxKey{})
	if value == nil {
		return domain.PublicUser{}, false
	}
	user, ok := value.(domain.PublicUser)
	return user, ok
}

func extractAccessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
