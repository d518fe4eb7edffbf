package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/Byak-ko/Qualification-work-sub001/internal/session"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	// AccessTokenCookie is read when no Authorization header is sent.
	AccessTokenCookie = "access_token"

	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextClaims = "claims"
)

// RevocationChecker reports whether a token id was revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func bearerToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			return "", false
		}
		return tokenString, true
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

func AuthRequired(issuer *session.TokenIssuer, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
			return
		}

		claims, err := issuer.Parse(tokenString)
		if err != nil {
			abortWith(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			return
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				abortWith(c, http.StatusServiceUnavailable, "SESSION_STORE_UNAVAILABLE", "Could not verify session")
				return
			}
			if isRevoked {
				abortWith(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token has been revoked")
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, string(claims.Role))
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			abortWith(c, http.StatusForbidden, "FORBIDDEN", "Admin access required")
			return
		}
		c.Next()
	}
}

// AuthorRequired lets through administrators and users flagged as rating
// authors. The flag is read from the database so revoking it takes effect
// immediately.
func AuthorRequired(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAdmin(c) {
			c.Next()
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).Select("id", "role", "is_author").First(&user, UserID(c)).Error; err != nil || !user.CanAuthorRatings() {
			abortWith(c, http.StatusForbidden, "FORBIDDEN", "Author access required")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user's id, or 0.
func UserID(c *gin.Context) uint {
	id, _ := c.Get(ContextUserID)
	v, _ := id.(uint)
	return v
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(ContextRole) == string(models.RoleAdmin)
}

// Claims returns the parsed token of the request, if any.
func Claims(c *gin.Context) *session.Claims {
	v, _ := c.Get(ContextClaims)
	claims, _ := v.(*session.Claims)
	return claims
}
