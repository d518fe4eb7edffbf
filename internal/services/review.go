package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Byak-ko/Qualification-work-sub001/internal/logging"
	"github.com/Byak-ko/Qualification-work-sub001/internal/metrics"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReviewInput struct {
	RatingID     uint
	RespondentID uint
	ReviewerID   uint
	Decision     Decision
	Comments     models.ItemComments
}

type ReviewResult struct {
	Participant   *models.RatingParticipant `json:"participant"`
	Notifications NotificationSummary       `json:"notifications"`
}

// ReviewService moves a filled participant through its approval chain.
type ReviewService struct {
	db       *gorm.DB
	notifier Notifier
	metrics  *metrics.WorkflowMetrics
	logger   *slog.Logger
}

func NewReviewService(db *gorm.DB, notifier Notifier, m *metrics.WorkflowMetrics, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		db:       db,
		notifier: notifier,
		metrics:  m,
		logger:   logging.Module(logger, "review"),
	}
}

// pendingNotice is what has to be sent once the transaction has committed.
type pendingNotice func(ctx context.Context) Outcome

// ReviewRating applies one reviewer decision. The whole cascade runs in a
// single transaction guarded by the participant version; the email goes out
// after commit and its failure is only reported.
func (s *ReviewService) ReviewRating(ctx context.Context, in ReviewInput) (*ReviewResult, error) {
	if !in.Decision.Valid() {
		return nil, badRequest("INVALID_DECISION", "decision must be APPROVE or REQUEST_REVISION", nil)
	}

	var (
		participant models.RatingParticipant
		notice      pendingNotice
		event       models.ActivityType
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rating models.Rating
		if err := tx.Preload("Author").Preload("Items").First(&rating, in.RatingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("rating")
			}
			return err
		}
		if rating.Status == models.RatingStatusClosed {
			return conflict("RATING_CLOSED", "rating is closed")
		}

		if err := tx.Preload("Respondent").Preload("Approvals.Reviewer").
			Where("rating_id = ? AND respondent_id = ?", in.RatingID, in.RespondentID).
			First(&participant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("participant")
			}
			return err
		}

		acted, err := actingApproval(&participant, in.ReviewerID)
		if err != nil {
			return err
		}
		if err := validateCommentKeys(rating.Items, in.Comments); err != nil {
			return err
		}

		comments := in.Comments
		if comments == nil {
			comments = models.ItemComments{}
		}
		now := time.Now()

		switch in.Decision {
		case DecisionApprove:
			event = models.ActivityReviewApproved
			notice, err = s.approve(tx, &rating, &participant, acted, comments, now)
		case DecisionRequestRevision:
			event = models.ActivityRevisionRequested
			notice, err = s.requestRevision(tx, &rating, &participant, acted, comments, now)
		}
		if err != nil {
			return err
		}

		if err := recordActivity(tx, in.ReviewerID, event, uintPtr(rating.ID), uintPtr(participant.ID), map[string]interface{}{
			"level":         string(acted.ReviewLevel),
			"respondent_id": participant.RespondentID,
		}); err != nil {
			return err
		}
		if participant.Status == models.ParticipantApproved {
			if err := recordActivity(tx, in.ReviewerID, models.ActivityParticipantDone, uintPtr(rating.ID), uintPtr(participant.ID), nil); err != nil {
				return err
			}
		}

		return tx.Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("id asc")
		}).First(&participant, participant.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(event))
	if participant.Status == models.ParticipantApproved {
		s.metrics.Transition(string(models.ActivityParticipantDone))
	}
	s.logger.Info("review recorded",
		slog.Uint64("rating_id", uint64(in.RatingID)),
		slog.Uint64("participant_id", uint64(participant.ID)),
		slog.Uint64("reviewer_id", uint64(in.ReviewerID)),
		slog.String("decision", string(in.Decision)),
		slog.String("participant_status", string(participant.Status)))

	result := &ReviewResult{Participant: &participant, Notifications: summarize()}
	if notice != nil {
		result.Notifications = summarize(notice(ctx))
	}
	return result, nil
}

// actingApproval picks the caller's approval that is currently awaiting a
// decision.
func actingApproval(p *models.RatingParticipant, reviewerID uint) (*models.RatingApproval, error) {
	owned := false
	for i := range p.Approvals {
		a := &p.Approvals[i]
		if a.ReviewerID != reviewerID {
			continue
		}
		owned = true
		if a.Status == models.ApprovalAwaitingReview {
			return a, nil
		}
	}
	if !owned {
		return nil, domainError(KindForbidden, "NOT_AUTHORIZED", "you are not a reviewer of this participant", nil)
	}
	return nil, conflict("REVIEW_NOT_AWAITING", "no approval is awaiting your review")
}

func (s *ReviewService) approve(tx *gorm.DB, rating *models.Rating, p *models.RatingParticipant, acted *models.RatingApproval, comments models.ItemComments, now time.Time) (pendingNotice, error) {
	chain := ReviewChain(p.Approvals)
	next, hasNext := NextLevel(chain, acted.ReviewLevel)

	status := p.Status
	if !hasNext {
		status = models.ParticipantApproved
	}
	if err := advanceParticipant(tx, p, status); err != nil {
		return nil, err
	}
	if err := decideApproval(tx, acted, models.ApprovalApproved, comments, now); err != nil {
		return nil, err
	}

	respondent := p.Respondent
	if !hasNext {
		return func(ctx context.Context) Outcome {
			return s.notifier.NotifyApproved(ctx, rating, respondent)
		}, nil
	}

	nextApproval := p.ApprovalAt(next)
	if err := setApprovalStatus(tx, nextApproval.ID, models.ApprovalAwaitingReview); err != nil {
		return nil, err
	}

	previous, reviewer := acted.Reviewer, nextApproval.Reviewer
	return func(ctx context.Context) Outcome {
		return s.notifier.NotifyNextReviewer(ctx, rating, respondent, previous, reviewer, next)
	}, nil
}

func (s *ReviewService) requestRevision(tx *gorm.DB, rating *models.Rating, p *models.RatingParticipant, acted *models.RatingApproval, comments models.ItemComments, now time.Time) (pendingNotice, error) {
	if err := advanceParticipant(tx, p, models.ParticipantRevision); err != nil {
		return nil, err
	}

	// Undo every escalation already granted on this participant.
	if err := tx.Model(&models.RatingApproval{}).
		Where("participant_id = ? AND id <> ? AND status <> ?", p.ID, acted.ID, models.ApprovalPending).
		Updates(map[string]interface{}{
			"status":     models.ApprovalPending,
			"decided_at": nil,
		}).Error; err != nil {
		return nil, err
	}

	if err := decideApproval(tx, acted, models.ApprovalRevisionRequested, comments, now); err != nil {
		return nil, err
	}

	respondent, reviewer := p.Respondent, acted.Reviewer
	return func(ctx context.Context) Outcome {
		return s.notifier.NotifyRevisionRequired(ctx, rating, respondent, reviewer)
	}, nil
}

// advanceParticipant writes a new status and bumps the version, failing when
// someone else changed the participant since it was read.
func advanceParticipant(tx *gorm.DB, p *models.RatingParticipant, status models.ParticipantStatus) error {
	res := tx.Model(&models.RatingParticipant{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]interface{}{
			"status":  status,
			"version": gorm.Expr("version + ?", 1),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflict("CONCURRENT_UPDATE", "participant was modified concurrently, retry")
	}
	p.Status = status
	p.Version++
	return nil
}

// decideApproval records a decision on an approval that must still be
// awaiting review.
func decideApproval(tx *gorm.DB, a *models.RatingApproval, status models.ApprovalStatus, comments models.ItemComments, now time.Time) error {
	res := tx.Model(&models.RatingApproval{}).
		Where("id = ? AND status = ?", a.ID, models.ApprovalAwaitingReview).
		Updates(map[string]interface{}{
			"status":     status,
			"comments":   datatypes.NewJSONType(comments),
			"decided_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflict("CONCURRENT_UPDATE", "approval was decided concurrently, retry")
	}
	return nil
}

func setApprovalStatus(tx *gorm.DB, approvalID uint, status models.ApprovalStatus) error {
	return tx.Model(&models.RatingApproval{}).
		Where("id = ?", approvalID).
		Update("status", status).Error
}

func validateCommentKeys(items []models.RatingItem, comments models.ItemComments) error {
	known := make(map[uint]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}
	var unknown []uint
	for id := range comments {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return badRequest("UNKNOWN_ITEM", "comments reference items outside this rating", map[string]interface{}{"item_ids": unknown})
	}
	return nil
}

func emptyComments() datatypes.JSONType[models.ItemComments] {
	return datatypes.NewJSONType(models.ItemComments{})
}
