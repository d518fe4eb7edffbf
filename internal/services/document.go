package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Byak-ko/Qualification-work-sub001/internal/logging"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultMaxUploadSize = 5 * 1024 * 1024 // 5 MiB

// allowedDocumentTypes maps the accepted content types to the stored extension.
var allowedDocumentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

type UploadInput struct {
	Title    string
	Filename string
	Size     int64
	Body     io.Reader
}

type DocumentService struct {
	db      *gorm.DB
	store   ObjectStore
	appURL  string
	maxSize int64
	logger  *slog.Logger
}

func NewDocumentService(db *gorm.DB, store ObjectStore, appURL string, maxSize int64, logger *slog.Logger) *DocumentService {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	return &DocumentService{
		db:      db,
		store:   store,
		appURL:  strings.TrimRight(appURL, "/"),
		maxSize: maxSize,
		logger:  logging.Module(logger, "documents"),
	}
}

func (s *DocumentService) MaxSize() int64 {
	return s.maxSize
}

// DownloadURL is the stable address of a document's content.
func (s *DocumentService) DownloadURL(id uint) string {
	return fmt.Sprintf("%s/api/v1/documents/%d/download", s.appURL, id)
}

// Upload validates and stores a file. The content type is sniffed from the
// bytes; the client supplied one is ignored. Nothing is written when
// validation fails.
func (s *DocumentService) Upload(ctx context.Context, uploaderID uint, in UploadInput) (*models.Document, error) {
	if in.Size <= 0 {
		return nil, badRequest("EMPTY_FILE", "file is empty", nil)
	}
	if in.Size > s.maxSize {
		return nil, badRequest("FILE_TOO_LARGE", "file exceeds the upload limit", map[string]interface{}{"max_bytes": s.maxSize})
	}

	body := bufio.NewReaderSize(in.Body, 512)
	head, err := body.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	mimeType := sniffContentType(head)
	ext, ok := allowedDocumentTypes[mimeType]
	if !ok {
		return nil, badRequest("UNSUPPORTED_FILE_TYPE", "only jpeg, png, gif and pdf files are accepted", map[string]interface{}{"mime_type": mimeType})
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSpace(in.Filename)
	}
	if title == "" {
		title = "document" + ext
	}

	key := fmt.Sprintf("documents/%s%s", uuid.New().String(), ext)
	if err := s.store.Put(ctx, key, body, in.Size, mimeType); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	document := models.Document{
		Title:        title,
		ObjectKey:    key,
		MimeType:     mimeType,
		FileSize:     in.Size,
		UploadedByID: uploaderID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Uploader").Create(&document).Error; err != nil {
			return err
		}
		document.URL = s.DownloadURL(document.ID)
		if err := tx.Model(&document).Update("url", document.URL).Error; err != nil {
			return err
		}
		return recordActivity(tx, uploaderID, models.ActivityDocumentUploaded, nil, nil, map[string]interface{}{
			"document_id": document.ID,
			"mime_type":   mimeType,
		})
	})
	if err != nil {
		if rmErr := s.store.Remove(ctx, key); rmErr != nil {
			s.logger.Warn("failed to clean up object", slog.String("key", key), slog.Any("error", rmErr))
		}
		return nil, err
	}

	return &document, nil
}

func sniffContentType(head []byte) string {
	mimeType := http.DetectContentType(head)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return mimeType
}

func (s *DocumentService) findDocument(ctx context.Context, id uint) (*models.Document, error) {
	var document models.Document
	if err := s.db.WithContext(ctx).Preload("Uploader").First(&document, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("document")
		}
		return nil, err
	}
	return &document, nil
}

// canRead allows the uploader, administrators and everyone reviewing the
// participant the document is attached to.
func (s *DocumentService) canRead(ctx context.Context, document *models.Document, callerID uint, isAdmin bool) (bool, error) {
	if isAdmin || document.UploadedByID == callerID {
		return true, nil
	}
	if document.ParticipantID == nil {
		return false, nil
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.RatingApproval{}).
		Where("participant_id = ? AND reviewer_id = ?", *document.ParticipantID, callerID).
		Count(&count).Error
	return count > 0, err
}

// GetDocument returns the document metadata to callers allowed to read it.
func (s *DocumentService) GetDocument(ctx context.Context, id, callerID uint, isAdmin bool) (*models.Document, error) {
	document, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canRead(ctx, document, callerID, isAdmin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, forbidden("you cannot access this document")
	}
	return document, nil
}

// Download opens the document content. The caller closes the reader.
func (s *DocumentService) Download(ctx context.Context, id, callerID uint, isAdmin bool) (*models.Document, io.ReadCloser, int64, error) {
	document, err := s.GetDocument(ctx, id, callerID, isAdmin)
	if err != nil {
		return nil, nil, 0, err
	}

	body, size, err := s.store.Get(ctx, document.ObjectKey)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	return document, body, size, nil
}

// DeleteDocument removes a document unless the response it supports has
// already been approved. References in the response are dropped as well.
func (s *DocumentService) DeleteDocument(ctx context.Context, id, callerID uint, isAdmin bool) error {
	var document models.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&document, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("document")
			}
			return err
		}
		if document.UploadedByID != callerID && !isAdmin {
			return forbidden("not authorized to delete this document")
		}

		if document.ParticipantID != nil {
			var participant models.RatingParticipant
			if err := tx.First(&participant, *document.ParticipantID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if participant.Status == models.ParticipantApproved {
				return conflict("DOCUMENT_LOCKED", "document supports an approved response")
			}
			if err := detachFromResponse(tx, *document.ParticipantID, document.ID); err != nil {
				return err
			}
		}

		if err := tx.Delete(&document).Error; err != nil {
			return err
		}
		return recordActivity(tx, callerID, models.ActivityDocumentDeleted, nil, document.ParticipantID, map[string]interface{}{
			"document_id": document.ID,
		})
	})
	if err != nil {
		return err
	}

	if err := s.store.Remove(ctx, document.ObjectKey); err != nil {
		s.logger.Warn("failed to delete object", slog.String("key", document.ObjectKey), slog.Any("error", err))
	}
	return nil
}

func detachFromResponse(tx *gorm.DB, participantID, documentID uint) error {
	var response models.RatingResponse
	if err := tx.Where("participant_id = ?", participantID).First(&response).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	documents := response.DocumentMap()
	for itemID, ids := range documents {
		kept := ids[:0]
		for _, id := range ids {
			if id != documentID {
				kept = append(kept, id)
			}
		}
		documents[itemID] = kept
	}

	return tx.Model(&response).Update("documents", datatypes.NewJSONType(documents)).Error
}

// ListMyDocuments returns the caller's uploads, newest first.
func (s *DocumentService) ListMyDocuments(ctx context.Context, uploaderID uint) ([]models.Document, error) {
	var documents []models.Document
	err := s.db.WithContext(ctx).
		Where("uploaded_by_id = ?", uploaderID).
		Order("created_at desc, id desc").
		Find(&documents).Error
	return documents, err
}
