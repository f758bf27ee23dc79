package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"syllabusai/internal/auth"
	"syllabusai/internal/database"
)

// SessionCookieName holds the signed session token.
const SessionCookieName = "session"

const sessionClaimsKey = "sessionClaims"

type sessionValidator interface {
	ValidateToken(tokenString string) (*auth.SessionClaims, error)
}

// RevocationChecker reports blacklisted session ids. *auth.Revocations satisfies it.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// LoadSession attaches the claims of a valid, non-revoked session cookie to
// the context. Requests without one continue anonymously.
func LoadSession(validator sessionValidator, revocations RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(SessionCookieName)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		claims, err := validator.ValidateToken(raw)
		if err != nil {
			c.Next()
			return
		}

		if revocations != nil {
			revoked, err := revocations.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				LoggerFromContext(c).Warn("session blacklist lookup failed", slog.Any("error", err))
			} else if revoked {
				c.Next()
				return
			}
		}

		c.Set(sessionClaimsKey, claims)
		c.Next()
	}
}

// RequireSession redirects anonymous requests to the login page.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin sends non-admin users back to the index page.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok || identity.Role != database.RoleAdmin {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

// SessionClaims returns the claims attached by LoadSession.
func SessionClaims(c *gin.Context) (*auth.SessionClaims, bool) {
	value, ok := c.Get(sessionClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*auth.SessionClaims)
	return claims, ok && claims != nil
}

// CurrentIdentity returns the logged in user, if any.
func CurrentIdentity(c *gin.Context) (auth.Identity, bool) {
	claims, ok := SessionClaims(c)
	if !ok {
		return auth.Identity{}, false
	}
	return claims.Identity(), true
}
