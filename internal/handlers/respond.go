package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Byak-ko/Qualification-work-sub001/internal/export"
	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/gin-gonic/gin"
)

func errorBody(code, message string, details any) gin.H {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	return gin.H{"success": false, "error": body}
}

// respondError writes err in the standard envelope. Domain errors keep their
// status and code; anything else is logged and hidden behind a 500.
func respondError(c *gin.Context, err error) {
	if de, ok := services.AsDomainError(err); ok {
		c.JSON(de.Kind.HTTPStatus(), errorBody(de.Code, de.Message, de.Details))
		return
	}
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		c.JSON(http.StatusServiceUnavailable, errorBody("EXPORT_UNAVAILABLE", "PDF export is not available", nil))
		return
	}

	slog.Default().Error("request failed",
		slog.String("method", c.Request.Method),
		slog.String("path", c.FullPath()),
		slog.Any("error", err))
	c.JSON(http.StatusInternalServerError, errorBody("INTERNAL_ERROR", "Internal server error", nil))
}

func respondValidation(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody("VALIDATION_ERROR", err.Error(), nil))
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// idParam parses a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_ID", "Invalid "+name, nil))
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}
