package handlers

import (
	"net/http"

	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/gin-gonic/gin"
)

func SearchRatings(search *services.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			respondOK(c, http.StatusOK, gin.H{"hits": []interface{}{}})
			return
		}

		results, err := search.Search(query, services.SearchFilter{
			Status: models.RatingStatus(c.Query("status")),
			Type:   models.RatingType(c.Query("type")),
		})
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, errorBody("SEARCH_UNAVAILABLE", "Search is not available", nil))
			return
		}
		respondOK(c, http.StatusOK, gin.H{
			"hits":  results.Hits,
			"total": results.EstimatedTotalHits,
		})
	}
}
