package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Byak-ko/Qualification-work-sub001/internal/middleware"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/Byak-ko/Qualification-work-sub001/internal/session"
	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   int64        `json:"expires_at"`
}

func Login(users *services.UserService, issuer *session.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err)
			return
		}

		user, err := users.Authenticate(c.Request.Context(), req.Email, req.Password)
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, errorBody("UNAUTHORIZED", "Invalid credentials", nil))
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		token, claims, err := issuer.Issue(*user)
		if err != nil {
			respondError(c, err)
			return
		}

		respondOK(c, http.StatusOK, AuthResponse{
			User:        user,
			AccessToken: token,
			ExpiresAt:   claims.ExpiresAt.Unix(),
		})
	}
}

// Logout revokes the presented token for the rest of its lifetime.
func Logout(blocklist *session.Blocklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.Claims(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, errorBody("UNAUTHORIZED", "Not logged in", nil))
			return
		}

		if err := blocklist.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			slog.Default().Error("logout failed", slog.Any("error", err))
			c.JSON(http.StatusServiceUnavailable, errorBody("SESSION_STORE_UNAVAILABLE", "Could not revoke session", nil))
			return
		}

		respondOK(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
	}
}

func GetCurrentUser(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.GetUser(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, user)
	}
}
