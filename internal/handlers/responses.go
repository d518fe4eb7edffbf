package handlers

import (
	"net/http"

	"github.com/Byak-ko/Qualification-work-sub001/internal/middleware"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/gin-gonic/gin"
)

type FillRequest struct {
	Items []services.FillItem `json:"items" binding:"required,dive"`
}

type ReviewRequest struct {
	Decision services.Decision   `json:"decision" binding:"required"`
	Comments models.ItemComments `json:"comments"`
}

func GetMyResponse(responses *services.ResponseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		result, err := responses.GetMyResponse(c.Request.Context(), id, middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, result)
	}
}

func FillRating(responses *services.ResponseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		var req FillRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err)
			return
		}

		response, err := responses.FillRating(c.Request.Context(), id, middleware.UserID(c), req.Items)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, response)
	}
}

func SubmitRating(responses *services.ResponseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		result, err := responses.FillCompleteRating(c.Request.Context(), id, middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, result)
	}
}

func ReviewParticipant(reviews *services.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ratingID, ok := idParam(c, "id")
		if !ok {
			return
		}
		respondentID, ok := idParam(c, "respondentId")
		if !ok {
			return
		}

		var req ReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err)
			return
		}

		result, err := reviews.ReviewRating(c.Request.Context(), services.ReviewInput{
			RatingID:     ratingID,
			RespondentID: respondentID,
			ReviewerID:   middleware.UserID(c),
			Decision:     req.Decision,
			Comments:     req.Comments,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, result)
	}
}
