package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Byak-ko/Qualification-work-sub001/internal/logging"
	"github.com/Byak-ko/Qualification-work-sub001/internal/metrics"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FillItem is one scored item of a response.
type FillItem struct {
	ItemID    uint    `json:"item_id" binding:"required"`
	Score     float64 `json:"score"`
	Documents []uint  `json:"documents"`
}

type SubmitResult struct {
	Participant   *models.RatingParticipant `json:"participant"`
	Notifications NotificationSummary       `json:"notifications"`
}

// MyResponse is the respondent's view of their own participation.
type MyResponse struct {
	Participant *models.RatingParticipant `json:"participant"`
	Response    *models.RatingResponse    `json:"response"`
	Documents   []models.Document         `json:"documents"`
}

type ResponseService struct {
	db       *gorm.DB
	notifier Notifier
	metrics  *metrics.WorkflowMetrics
	logger   *slog.Logger
}

func NewResponseService(db *gorm.DB, notifier Notifier, m *metrics.WorkflowMetrics, logger *slog.Logger) *ResponseService {
	return &ResponseService{
		db:       db,
		notifier: notifier,
		metrics:  m,
		logger:   logging.Module(logger, "response"),
	}
}

// loadParticipation resolves the rating and the caller's participant row.
func loadParticipation(tx *gorm.DB, ratingID, respondentID uint, preloads ...string) (*models.Rating, *models.RatingParticipant, error) {
	var rating models.Rating
	if err := tx.Preload("Items").First(&rating, ratingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, notFound("rating")
		}
		return nil, nil, err
	}

	q := tx
	for _, p := range preloads {
		q = q.Preload(p)
	}
	var participant models.RatingParticipant
	if err := q.Where("rating_id = ? AND respondent_id = ?", ratingID, respondentID).First(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, forbidden("you are not a respondent of this rating")
		}
		return nil, nil, err
	}
	return &rating, &participant, nil
}

// requireOpen accepts only a published rating that has not been closed yet.
func requireOpen(rating *models.Rating) error {
	switch rating.Status {
	case models.RatingStatusPending:
		return nil
	case models.RatingStatusClosed:
		return conflict("RATING_CLOSED", "rating is closed")
	default:
		return conflict("RATING_NOT_OPEN", "rating has not been published yet")
	}
}

// FillRating stores scores and document references for the given items,
// replacing whatever was stored for those items before. Other items are left
// untouched and the participant status does not change.
func (s *ResponseService) FillRating(ctx context.Context, ratingID, respondentID uint, items []FillItem) (*models.RatingResponse, error) {
	var response models.RatingResponse

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rating, participant, err := loadParticipation(tx, ratingID, respondentID)
		if err != nil {
			return err
		}
		if err := requireOpen(rating); err != nil {
			return err
		}
		if participant.Status == models.ParticipantApproved {
			return conflict("ALREADY_APPROVED", "response is already approved")
		}

		if err := validateFillItems(rating.Items, items); err != nil {
			return err
		}
		if err := checkDocumentOwnership(tx, participant, items); err != nil {
			return err
		}

		err = tx.Where("participant_id = ?", participant.ID).First(&response).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response = newResponse(participant)
		} else if err != nil {
			return err
		}

		scores := response.ScoreMap()
		documents := response.DocumentMap()
		for _, item := range items {
			scores[item.ItemID] = item.Score
			ids := item.Documents
			if ids == nil {
				ids = []uint{}
			}
			documents[item.ItemID] = ids
		}
		response.Scores = datatypes.NewJSONType(scores)
		response.Documents = datatypes.NewJSONType(documents)

		if err := tx.Save(&response).Error; err != nil {
			return err
		}
		if err := bindDocuments(tx, participant.ID, items); err != nil {
			return err
		}

		return recordActivity(tx, respondentID, models.ActivityResponseFilled, uintPtr(ratingID), uintPtr(participant.ID), map[string]interface{}{
			"items": len(items),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(models.ActivityResponseFilled))
	return &response, nil
}

func newResponse(p *models.RatingParticipant) models.RatingResponse {
	return models.RatingResponse{
		RatingID:      p.RatingID,
		RespondentID:  p.RespondentID,
		ParticipantID: p.ID,
		Scores:        datatypes.NewJSONType(models.ItemScores{}),
		Documents:     datatypes.NewJSONType(models.ItemDocuments{}),
	}
}

func validateFillItems(ratingItems []models.RatingItem, items []FillItem) error {
	byID := make(map[uint]models.RatingItem, len(ratingItems))
	for _, item := range ratingItems {
		byID[item.ID] = item
	}

	seen := make(map[uint]bool, len(items))
	for _, in := range items {
		item, ok := byID[in.ItemID]
		if !ok {
			return badRequest("UNKNOWN_ITEM", "item does not belong to this rating", map[string]interface{}{"item_id": in.ItemID})
		}
		if seen[in.ItemID] {
			return badRequest("DUPLICATE_ITEM", "item is listed more than once", map[string]interface{}{"item_id": in.ItemID})
		}
		seen[in.ItemID] = true

		if in.Score < 0 || in.Score > item.MaxScore {
			return badRequest("INVALID_SCORE", "score is out of range", map[string]interface{}{
				"item_id":   in.ItemID,
				"max_score": item.MaxScore,
			})
		}
	}
	return nil
}

// checkDocumentOwnership requires every referenced document to exist, to be
// uploaded by the respondent and not to be bound to another participant.
func checkDocumentOwnership(tx *gorm.DB, p *models.RatingParticipant, items []FillItem) error {
	wanted := map[uint]bool{}
	for _, item := range items {
		for _, id := range item.Documents {
			wanted[id] = true
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}

	var docs []models.Document
	if err := tx.Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return err
	}
	if len(docs) != len(ids) {
		return badRequest("UNKNOWN_DOCUMENT", "one or more documents do not exist", nil)
	}
	for _, doc := range docs {
		if doc.UploadedByID != p.RespondentID {
			return badRequest("FOREIGN_DOCUMENT", "document was uploaded by another user", map[string]interface{}{"document_id": doc.ID})
		}
		if doc.ParticipantID != nil && *doc.ParticipantID != p.ID {
			return badRequest("DOCUMENT_IN_USE", "document is attached to another rating", map[string]interface{}{"document_id": doc.ID})
		}
	}
	return nil
}

// bindDocuments points documents at (participant, item) and releases the ones
// that were dropped from the rewritten items.
func bindDocuments(tx *gorm.DB, participantID uint, items []FillItem) error {
	itemIDs := make([]uint, 0, len(items))
	var keep []uint
	for _, item := range items {
		itemIDs = append(itemIDs, item.ItemID)
		keep = append(keep, item.Documents...)
	}
	if len(itemIDs) == 0 {
		return nil
	}

	release := tx.Model(&models.Document{}).Where("participant_id = ? AND item_id IN ?", participantID, itemIDs)
	if len(keep) > 0 {
		release = release.Where("id NOT IN ?", keep)
	}
	if err := release.Updates(map[string]interface{}{"participant_id": nil, "item_id": nil}).Error; err != nil {
		return err
	}

	for _, item := range items {
		if len(item.Documents) == 0 {
			continue
		}
		if err := tx.Model(&models.Document{}).Where("id IN ?", item.Documents).
			Updates(map[string]interface{}{"participant_id": participantID, "item_id": item.ItemID}).Error; err != nil {
			return err
		}
	}
	return nil
}

// FillCompleteRating submits the response for review: the first level of the
// chain becomes AWAITING_REVIEW, every later level goes back to PENDING and
// the participant becomes FILLED.
func (s *ResponseService) FillCompleteRating(ctx context.Context, ratingID, respondentID uint) (*SubmitResult, error) {
	var (
		rating      *models.Rating
		participant *models.RatingParticipant
		first       *models.RatingApproval
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rating, participant, err = loadParticipation(tx, ratingID, respondentID, "Respondent", "Approvals.Reviewer")
		if err != nil {
			return err
		}
		if err := requireOpen(rating); err != nil {
			return err
		}
		switch participant.Status {
		case models.ParticipantFilled:
			return conflict("ALREADY_SUBMITTED", "response is already under review")
		case models.ParticipantApproved:
			return conflict("ALREADY_APPROVED", "response is already approved")
		}

		var response models.RatingResponse
		err = tx.Where("participant_id = ?", participant.ID).First(&response).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := checkRequiredDocuments(rating.Items, &response); err != nil {
			return err
		}

		level, ok := FirstLevel(ReviewChain(participant.Approvals))
		if !ok {
			return conflict("NO_REVIEWERS", "participant has no review chain")
		}
		first = participant.ApprovalAt(level)

		if err := advanceParticipant(tx, participant, models.ParticipantFilled); err != nil {
			return err
		}
		if err := tx.Model(&models.RatingApproval{}).
			Where("participant_id = ? AND id <> ?", participant.ID, first.ID).
			Updates(map[string]interface{}{"status": models.ApprovalPending, "decided_at": nil}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.RatingApproval{}).
			Where("id = ?", first.ID).
			Updates(map[string]interface{}{"status": models.ApprovalAwaitingReview, "decided_at": nil}).Error; err != nil {
			return err
		}

		if err := recordActivity(tx, respondentID, models.ActivityResponseSubmitted, uintPtr(ratingID), uintPtr(participant.ID), map[string]interface{}{
			"first_level": string(level),
		}); err != nil {
			return err
		}

		return tx.Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("id asc")
		}).First(participant, participant.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(models.ActivityResponseSubmitted))
	s.logger.Info("response submitted",
		slog.Uint64("rating_id", uint64(ratingID)),
		slog.Uint64("participant_id", uint64(participant.ID)),
		slog.String("first_level", string(first.ReviewLevel)))

	outcome := s.notifier.NotifyReviewerPending(ctx, rating, participant.Respondent, first.Reviewer, first.ReviewLevel)
	return &SubmitResult{
		Participant:   participant,
		Notifications: summarize(outcome),
	}, nil
}

// checkRequiredDocuments rejects a submission where an item that needs proof
// was scored without any document.
func checkRequiredDocuments(items []models.RatingItem, response *models.RatingResponse) error {
	scores := response.Scores.Data()
	documents := response.Documents.Data()

	var missing []uint
	for _, item := range items {
		if item.IsDocNeed && scores[item.ID] > 0 && len(documents[item.ID]) == 0 {
			missing = append(missing, item.ID)
		}
	}
	if len(missing) > 0 {
		return badRequest("DOCUMENTS_REQUIRED", "some scored items need a supporting document", map[string]interface{}{"item_ids": missing})
	}
	return nil
}

func (s *ResponseService) GetMyResponse(ctx context.Context, ratingID, respondentID uint) (*MyResponse, error) {
	db := s.db.WithContext(ctx)
	_, participant, err := loadParticipation(db, ratingID, respondentID, "Approvals.Reviewer")
	if err != nil {
		return nil, err
	}

	var response models.RatingResponse
	err = db.Where("participant_id = ?", participant.ID).First(&response).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response = newResponse(participant)
	} else if err != nil {
		return nil, err
	}

	var documents []models.Document
	if err := db.Where("participant_id = ?", participant.ID).Order("id asc").Find(&documents).Error; err != nil {
		return nil, err
	}

	return &MyResponse{
		Participant: participant,
		Response:    &response,
		Documents:   documents,
	}, nil
}
