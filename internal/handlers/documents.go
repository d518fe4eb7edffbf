package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/Byak-ko/Qualification-work-sub001/internal/middleware"
	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/gin-gonic/gin"
)

// multipartOverhead leaves room for form fields around the file part.
const multipartOverhead = 1 << 20

func UploadDocument(documents *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, documents.MaxSize()+multipartOverhead)

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody("NO_FILE", "No file uploaded or file too large", nil))
			return
		}
		defer file.Close()

		document, err := documents.Upload(c.Request.Context(), middleware.UserID(c), services.UploadInput{
			Title:    c.PostForm("title"),
			Filename: filepath.Base(header.Filename),
			Size:     header.Size,
			Body:     file,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, document)
	}
}

func ListMyDocuments(documents *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := documents.ListMyDocuments(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, list)
	}
}

func GetDocument(documents *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		document, err := documents.GetDocument(c.Request.Context(), id, middleware.UserID(c), middleware.IsAdmin(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, document)
	}
}

func DownloadDocument(documents *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		document, body, size, err := documents.Download(c.Request.Context(), id, middleware.UserID(c), middleware.IsAdmin(c))
		if err != nil {
			respondError(c, err)
			return
		}
		defer body.Close()

		extraHeaders := map[string]string{
			"Content-Disposition": fmt.Sprintf("inline; filename=%q", document.Title),
		}
		c.DataFromReader(http.StatusOK, size, document.MimeType, body, extraHeaders)
	}
}

func DeleteDocument(documents *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		if err := documents.DeleteDocument(c.Request.Context(), id, middleware.UserID(c), middleware.IsAdmin(c)); err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Document deleted successfully"})
	}
}
