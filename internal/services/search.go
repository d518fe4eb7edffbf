package services

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Byak-ko/Qualification-work-sub001/internal/config"
	"github.com/Byak-ko/Qualification-work-sub001/internal/logging"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/meilisearch/meilisearch-go"
)

const ratingsIndex = "ratings"

// RatingSearchDocument is what the ratings index stores.
type RatingSearchDocument struct {
	ID        uint                `json:"id"`
	Title     string              `json:"title"`
	Type      models.RatingType   `json:"type"`
	Status    models.RatingStatus `json:"status"`
	AuthorID  uint                `json:"author_id"`
	CreatedAt int64               `json:"created_at"`
}

func newRatingSearchDocument(r models.Rating) RatingSearchDocument {
	return RatingSearchDocument{
		ID:        r.ID,
		Title:     r.Title,
		Type:      r.Type,
		Status:    r.Status,
		AuthorID:  r.AuthorID,
		CreatedAt: r.CreatedAt.Unix(),
	}
}

type SearchService struct {
	client *meilisearch.Client
	index  string
	logger *slog.Logger
}

func NewSearchService(cfg *config.Config, logger *slog.Logger) *SearchService {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:    cfg.MeiliURL,
		APIKey:  cfg.MeiliAPIKey,
		Timeout: 10 * time.Second,
	})

	s := &SearchService{
		client: client,
		index:  ratingsIndex,
		logger: logging.Module(logger, "search"),
	}
	s.ensureIndex()
	return s
}

// ensureIndex creates and configures the ratings index (best effort).
func (s *SearchService) ensureIndex() {
	if _, err := s.client.GetIndex(s.index); err == nil {
		return
	}

	if _, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	}); err != nil {
		s.logger.Warn("failed to create meilisearch index", slog.String("index", s.index), slog.Any("error", err))
	}
	if _, err := s.client.Index(s.index).UpdateFilterableAttributes(&[]string{"status", "type", "author_id"}); err != nil {
		s.logger.Warn("failed to update filterable attributes", slog.Any("error", err))
	}
	if _, err := s.client.Index(s.index).UpdateSortableAttributes(&[]string{"created_at"}); err != nil {
		s.logger.Warn("failed to update sortable attributes", slog.Any("error", err))
	}
	if _, err := s.client.Index(s.index).UpdateSearchableAttributes(&[]string{"title"}); err != nil {
		s.logger.Warn("failed to update searchable attributes", slog.Any("error", err))
	}
}

func (s *SearchService) IndexRating(rating models.Rating) error {
	_, err := s.client.Index(s.index).AddDocuments([]RatingSearchDocument{newRatingSearchDocument(rating)})
	return err
}

func (s *SearchService) IndexRatings(ratings []models.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	docs := make([]RatingSearchDocument, 0, len(ratings))
	for _, r := range ratings {
		docs = append(docs, newRatingSearchDocument(r))
	}
	_, err := s.client.Index(s.index).AddDocuments(docs)
	return err
}

func (s *SearchService) DeleteRating(id uint) error {
	_, err := s.client.Index(s.index).DeleteDocument(strconv.FormatUint(uint64(id), 10))
	return err
}

// SearchFilter narrows a search to one status or type.
type SearchFilter struct {
	Status models.RatingStatus
	Type   models.RatingType
}

func (f SearchFilter) expression() string {
	var expr string
	if f.Status.Valid() {
		expr = fmt.Sprintf("status = %q", f.Status)
	}
	if f.Type.Valid() {
		if expr != "" {
			expr += " AND "
		}
		expr += fmt.Sprintf("type = %q", f.Type)
	}
	return expr
}

func (s *SearchService) Search(query string, filter SearchFilter) (*meilisearch.SearchResponse, error) {
	request := &meilisearch.SearchRequest{
		Limit: 20,
	}
	if expr := filter.expression(); expr != "" {
		request.Filter = expr
	}
	return s.client.Index(s.index).Search(query, request)
}

func (s *SearchService) GetRatingCount() (int64, error) {
	stats, err := s.client.Index(s.index).GetStats()
	if err != nil {
		return 0, err
	}
	return stats.NumberOfDocuments, nil
}
