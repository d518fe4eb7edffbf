package handlers

import (
	"net/http"
	"strconv"

	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/gin-gonic/gin"
)

func GetRecentActivities(activity *services.ActivityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		if limit > 50 {
			limit = 50
		}

		activities, err := activity.GetRecentActivities(c.Request.Context(), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, activities)
	}
}

// ListRatingActivities returns the audit trail of one rating. Access follows
// the report rules: author, reviewers and administrators.
func ListRatingActivities(activity *services.ActivityService, reports *services.ReportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := reports.CheckAccess(c.Request.Context(), id, viewer(c)); err != nil {
			respondError(c, err)
			return
		}

		activities, err := activity.ListRatingActivities(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, activities)
	}
}
