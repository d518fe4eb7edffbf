package handlers

import (
	"net/http"

	"github.com/Byak-ko/Qualification-work-sub001/internal/middleware"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/gin-gonic/gin"
)

func ListRatings(ratings *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := ratings.ListRatings(c.Request.Context(), services.RatingFilter{
			UserID:  middleware.UserID(c),
			IsAdmin: middleware.IsAdmin(c),
			Scope:   services.RatingScope(c.Query("scope")),
			Status:  models.RatingStatus(c.Query("status")),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, list)
	}
}

func CreateRating(ratings *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.RatingInput
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err)
			return
		}

		rating, err := ratings.CreateRating(c.Request.Context(), middleware.UserID(c), req)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, rating)
	}
}

func GetRating(ratings *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		rating, err := ratings.GetRating(c.Request.Context(), id, viewer(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, rating)
	}
}

func UpdateRating(ratings *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		var req services.RatingInput
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err)
			return
		}

		rating, err := ratings.EditRating(c.Request.Context(), id, middleware.UserID(c), req)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, rating)
	}
}

func DeleteRating(ratings *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		if err := ratings.DeleteRating(c.Request.Context(), id, middleware.UserID(c), middleware.IsAdmin(c)); err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Rating deleted successfully"})
	}
}

func CompleteRating(ratings *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		result, err := ratings.CompleteRating(c.Request.Context(), id, middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, result)
	}
}

func FinalizeRating(ratings *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		result, err := ratings.FinalizeRating(c.Request.Context(), id, middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, result)
	}
}
