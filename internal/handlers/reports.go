package handlers

import (
	"fmt"
	"net/http"

	"github.com/Byak-ko/Qualification-work-sub001/internal/middleware"
	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/gin-gonic/gin"
)

func viewer(c *gin.Context) services.Viewer {
	return services.Viewer{UserID: middleware.UserID(c), IsAdmin: middleware.IsAdmin(c)}
}

func GetReport(reports *services.ReportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		groupBy, err := services.ParseGroupBy(c.Query("group_by"))
		if err != nil {
			respondError(c, err)
			return
		}

		report, err := reports.BuildReport(c.Request.Context(), id, groupBy, viewer(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, report)
	}
}

func ExportReportPDF(reports *services.ReportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		groupBy, err := services.ParseGroupBy(c.Query("group_by"))
		if err != nil {
			respondError(c, err)
			return
		}

		result, err := reports.ExportReportPDF(c.Request.Context(), id, groupBy, viewer(c))
		if err != nil {
			respondError(c, err)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		c.Data(http.StatusOK, result.MimeType, result.Data)
	}
}
