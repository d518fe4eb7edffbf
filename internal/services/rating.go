package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/Byak-ko/Qualification-work-sub001/internal/logging"
	"github.com/Byak-ko/Qualification-work-sub001/internal/metrics"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ItemInput struct {
	Name      string  `json:"name" binding:"required"`
	MaxScore  float64 `json:"max_score"`
	Comment   string  `json:"comment"`
	IsDocNeed bool    `json:"is_doc_need"`
}

// RatingInput is the payload of both create and edit.
type RatingInput struct {
	Title                 string            `json:"title" binding:"required"`
	Type                  models.RatingType `json:"type" binding:"required"`
	EndedAt               *time.Time        `json:"ended_at"`
	Items                 []ItemInput       `json:"items"`
	RespondentIDs         []uint            `json:"respondent_ids"`
	DepartmentReviewerIDs []uint            `json:"department_reviewer_ids"`
	UnitReviewerIDs       []uint            `json:"unit_reviewer_ids"`
}

type RatingTransitionResult struct {
	Rating        *models.Rating      `json:"rating"`
	Notifications NotificationSummary `json:"notifications"`
}

// RatingScope narrows ListRatings to one relationship with the caller.
type RatingScope string

const (
	ScopeAll           RatingScope = ""
	ScopeAuthored      RatingScope = "authored"
	ScopeParticipating RatingScope = "participating"
	ScopeReviewing     RatingScope = "reviewing"
)

type RatingFilter struct {
	UserID  uint
	IsAdmin bool
	Scope   RatingScope
	Status  models.RatingStatus
}

// RatingIndexer keeps the search index in step with ratings.
type RatingIndexer interface {
	IndexRating(rating models.Rating) error
	DeleteRating(id uint) error
}

type RatingService struct {
	db       *gorm.DB
	notifier Notifier
	indexer  RatingIndexer
	metrics  *metrics.WorkflowMetrics
	logger   *slog.Logger
}

func NewRatingService(db *gorm.DB, notifier Notifier, indexer RatingIndexer, m *metrics.WorkflowMetrics, logger *slog.Logger) *RatingService {
	return &RatingService{
		db:       db,
		notifier: notifier,
		indexer:  indexer,
		metrics:  m,
		logger:   logging.Module(logger, "rating"),
	}
}

func validateRatingInput(in *RatingInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return badRequest("VALIDATION_ERROR", "title is required", nil)
	}
	if strings.ContainsFunc(in.Title, unicode.IsControl) {
		return badRequest("VALIDATION_ERROR", "title must not contain control characters", nil)
	}
	if !in.Type.Valid() {
		return badRequest("INVALID_TYPE", "unknown rating type", map[string]interface{}{"type": in.Type})
	}
	if len(in.Items) == 0 {
		return badRequest("VALIDATION_ERROR", "at least one item is required", nil)
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.Name) == "" {
			return badRequest("VALIDATION_ERROR", "item name is required", map[string]interface{}{"index": i})
		}
		if item.MaxScore <= 0 {
			return badRequest("VALIDATION_ERROR", "item max score must be positive", map[string]interface{}{"index": i})
		}
	}
	if len(in.RespondentIDs) == 0 {
		return badRequest("VALIDATION_ERROR", "at least one respondent is required", nil)
	}
	return nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// resolveUsers loads every requested user and fails when any id is unknown.
func resolveUsers(tx *gorm.DB, field string, ids []uint) ([]models.User, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	var users []models.User
	if err := tx.Preload("Department").Where("id IN ?", ids).Order("id asc").Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) == len(ids) {
		return users, nil
	}

	found := make(map[uint]bool, len(users))
	for _, u := range users {
		found[u.ID] = true
	}
	var missing []uint
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return nil, badRequest("UNKNOWN_USERS", "some users do not exist", map[string]interface{}{
		"field":   field,
		"missing": missing,
	})
}

type resolvedPeople struct {
	respondents         []models.User
	departmentReviewers []models.User
	unitReviewers       []models.User
}

// resolvePeople loads respondents and reviewer candidates. The author holds
// the final approval of every participant and so cannot be a respondent.
func resolvePeople(tx *gorm.DB, authorID uint, in *RatingInput) (*resolvedPeople, error) {
	for _, id := range in.RespondentIDs {
		if id == authorID {
			return nil, badRequest("AUTHOR_IS_RESPONDENT", "the author cannot be a respondent of their own rating", map[string]interface{}{
				"respondent_id": id,
			})
		}
	}

	var (
		people resolvedPeople
		err    error
	)
	if people.respondents, err = resolveUsers(tx, "respondent_ids", in.RespondentIDs); err != nil {
		return nil, err
	}
	if people.departmentReviewers, err = resolveUsers(tx, "department_reviewer_ids", in.DepartmentReviewerIDs); err != nil {
		return nil, err
	}
	if people.unitReviewers, err = resolveUsers(tx, "unit_reviewer_ids", in.UnitReviewerIDs); err != nil {
		return nil, err
	}
	return &people, nil
}

// departmentReviewerFor picks the requested department reviewer working in
// the respondent's department. Candidates are sorted by id, so the lowest id
// wins when several match.
func departmentReviewerFor(respondent models.User, candidates []models.User) *uint {
	if respondent.DepartmentID == nil {
		return nil
	}
	for _, c := range candidates {
		if c.ID != respondent.ID && c.DepartmentID != nil && *c.DepartmentID == *respondent.DepartmentID {
			return uintPtr(c.ID)
		}
	}
	return nil
}

// unitReviewerFor picks the requested unit reviewer whose department belongs
// to the respondent's unit.
func unitReviewerFor(respondent models.User, candidates []models.User) *uint {
	if respondent.Department == nil {
		return nil
	}
	for _, c := range candidates {
		if c.ID != respondent.ID && c.Department != nil && c.Department.UnitID == respondent.Department.UnitID {
			return uintPtr(c.ID)
		}
	}
	return nil
}

// buildRatingContent creates items, participants, empty responses, approvals
// and reviewer links for an already stored rating.
func buildRatingContent(tx *gorm.DB, rating *models.Rating, in *RatingInput, people *resolvedPeople) error {
	items := make([]models.RatingItem, 0, len(in.Items))
	for _, item := range in.Items {
		items = append(items, models.RatingItem{
			RatingID:  rating.ID,
			Name:      strings.TrimSpace(item.Name),
			MaxScore:  item.MaxScore,
			Comment:   item.Comment,
			IsDocNeed: item.IsDocNeed,
		})
	}
	if err := tx.Create(&items).Error; err != nil {
		return err
	}

	for _, respondent := range people.respondents {
		participant := models.RatingParticipant{
			RatingID:             rating.ID,
			RespondentID:         respondent.ID,
			DepartmentReviewerID: departmentReviewerFor(respondent, people.departmentReviewers),
			UnitReviewerID:       unitReviewerFor(respondent, people.unitReviewers),
			CustomerReviewerID:   rating.AuthorID,
			Status:               models.ParticipantPending,
			Version:              1,
		}
		if err := tx.Omit(clause.Associations).Create(&participant).Error; err != nil {
			return err
		}

		response := newResponse(&participant)
		if err := tx.Create(&response).Error; err != nil {
			return err
		}

		approvals := expectedApprovals(&participant)
		for i := range approvals {
			approvals[i].ParticipantID = participant.ID
		}
		if err := tx.Omit(clause.Associations).Create(&approvals).Error; err != nil {
			return err
		}
	}

	reviewerIDs := map[uint]bool{}
	for _, u := range people.departmentReviewers {
		reviewerIDs[u.ID] = true
	}
	for _, u := range people.unitReviewers {
		reviewerIDs[u.ID] = true
	}
	if len(reviewerIDs) == 0 {
		return nil
	}
	links := make([]models.RatingReviewer, 0, len(reviewerIDs))
	for id := range reviewerIDs {
		links = append(links, models.RatingReviewer{RatingID: rating.ID, UserID: id})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].UserID < links[j].UserID })
	return tx.Create(&links).Error
}

// clearRatingContent removes everything buildRatingContent creates and
// releases documents bound to the rating's participants.
func clearRatingContent(tx *gorm.DB, ratingID uint) error {
	participants := tx.Model(&models.RatingParticipant{}).Select("id").Where("rating_id = ?", ratingID)

	if err := tx.Model(&models.Document{}).Where("participant_id IN (?)", participants).
		Updates(map[string]interface{}{"participant_id": nil, "item_id": nil}).Error; err != nil {
		return err
	}
	if err := tx.Where("participant_id IN (?)", participants).Delete(&models.RatingApproval{}).Error; err != nil {
		return err
	}
	if err := tx.Where("rating_id = ?", ratingID).Delete(&models.RatingResponse{}).Error; err != nil {
		return err
	}
	if err := tx.Where("rating_id = ?", ratingID).Delete(&models.RatingParticipant{}).Error; err != nil {
		return err
	}
	if err := tx.Where("rating_id = ?", ratingID).Delete(&models.RatingItem{}).Error; err != nil {
		return err
	}
	return tx.Where("rating_id = ?", ratingID).Delete(&models.RatingReviewer{}).Error
}

// CreateRating stores a rating with its whole participant structure in one
// transaction.
func (s *RatingService) CreateRating(ctx context.Context, authorID uint, in RatingInput) (*models.Rating, error) {
	if err := validateRatingInput(&in); err != nil {
		return nil, err
	}

	var rating models.Rating
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var author models.User
		if err := tx.First(&author, authorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return badRequest("UNKNOWN_USERS", "author does not exist", nil)
			}
			return err
		}
		if !author.CanAuthorRatings() {
			return forbidden("only authors and administrators can create ratings")
		}

		people, err := resolvePeople(tx, author.ID, &in)
		if err != nil {
			return err
		}

		rating = models.Rating{
			Title:    in.Title,
			Type:     in.Type,
			Status:   models.RatingStatusCreated,
			AuthorID: author.ID,
			EndedAt:  in.EndedAt,
		}
		if err := tx.Omit(clause.Associations).Create(&rating).Error; err != nil {
			return err
		}
		if err := buildRatingContent(tx, &rating, &in, people); err != nil {
			return err
		}

		return recordActivity(tx, authorID, models.ActivityRatingCreated, uintPtr(rating.ID), nil, map[string]interface{}{
			"title":       rating.Title,
			"respondents": len(people.respondents),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(models.ActivityRatingCreated))
	s.logger.Info("rating created", slog.Uint64("rating_id", uint64(rating.ID)), slog.Uint64("author_id", uint64(authorID)))
	s.index(rating)

	return s.loadRating(ctx, rating.ID)
}

// EditRating replaces the rating's content. Workflow progress of every
// participant is discarded.
func (s *RatingService) EditRating(ctx context.Context, ratingID, callerID uint, in RatingInput) (*models.Rating, error) {
	if err := validateRatingInput(&in); err != nil {
		return nil, err
	}

	var rating models.Rating
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rating, ratingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("rating")
			}
			return err
		}
		if rating.AuthorID != callerID {
			return forbidden("only the author can edit this rating")
		}
		if rating.Status == models.RatingStatusClosed {
			return badRequest("RATING_CLOSED", "closed ratings cannot be edited", nil)
		}

		people, err := resolvePeople(tx, rating.AuthorID, &in)
		if err != nil {
			return err
		}
		if err := clearRatingContent(tx, rating.ID); err != nil {
			return err
		}

		rating.Title = in.Title
		rating.Type = in.Type
		rating.EndedAt = in.EndedAt
		if err := tx.Model(&rating).Select("Title", "Type", "EndedAt").Updates(&rating).Error; err != nil {
			return err
		}
		if err := buildRatingContent(tx, &rating, &in, people); err != nil {
			return err
		}

		return recordActivity(tx, callerID, models.ActivityRatingEdited, uintPtr(rating.ID), nil, map[string]interface{}{
			"respondents": len(people.respondents),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(models.ActivityRatingEdited))
	s.logger.Info("rating edited", slog.Uint64("rating_id", uint64(rating.ID)))
	s.index(rating)

	return s.loadRating(ctx, rating.ID)
}

// CompleteRating publishes a CREATED rating to its respondents.
func (s *RatingService) CompleteRating(ctx context.Context, ratingID, callerID uint) (*RatingTransitionResult, error) {
	rating, respondents, err := s.transition(ctx, ratingID, callerID, models.RatingStatusCreated, models.RatingStatusPending, models.ActivityRatingCompleted)
	if err != nil {
		return nil, err
	}
	outcomes := s.notifier.NotifyNewRatingAssigned(ctx, rating, respondents)
	return &RatingTransitionResult{Rating: rating, Notifications: summarize(outcomes...)}, nil
}

// FinalizeRating closes a PENDING rating.
func (s *RatingService) FinalizeRating(ctx context.Context, ratingID, callerID uint) (*RatingTransitionResult, error) {
	rating, respondents, err := s.transition(ctx, ratingID, callerID, models.RatingStatusPending, models.RatingStatusClosed, models.ActivityRatingFinalized)
	if err != nil {
		return nil, err
	}
	outcomes := s.notifier.NotifyRatingClosed(ctx, rating, respondents)
	return &RatingTransitionResult{Rating: rating, Notifications: summarize(outcomes...)}, nil
}

func (s *RatingService) transition(ctx context.Context, ratingID, callerID uint, from, to models.RatingStatus, event models.ActivityType) (*models.Rating, []models.User, error) {
	var rating models.Rating
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Participants.Respondent").First(&rating, ratingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("rating")
			}
			return err
		}
		if rating.AuthorID != callerID {
			return forbidden("only the author can change the rating status")
		}
		if rating.Status != from {
			return badRequest("INVALID_STATUS", "rating must be "+string(from)+" to become "+string(to), map[string]interface{}{
				"status": rating.Status,
			})
		}

		updates := map[string]interface{}{"status": to}
		if to == models.RatingStatusClosed && rating.EndedAt == nil {
			now := time.Now()
			rating.EndedAt = &now
			updates["ended_at"] = now
		}
		res := tx.Model(&models.Rating{}).Where("id = ? AND status = ?", rating.ID, from).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflict("CONCURRENT_UPDATE", "rating status changed concurrently")
		}
		rating.Status = to

		return recordActivity(tx, callerID, event, uintPtr(rating.ID), nil, map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		})
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.Transition(string(event))
	s.logger.Info("rating status changed",
		slog.Uint64("rating_id", uint64(rating.ID)),
		slog.String("status", string(rating.Status)))
	s.index(rating)

	respondents := make([]models.User, 0, len(rating.Participants))
	for _, p := range rating.Participants {
		respondents = append(respondents, p.Respondent)
	}
	return &rating, respondents, nil
}

// GetRating returns the rating as viewer may see it. The author, reviewers
// and administrators see every participant; a respondent sees only their own
// row.
func (s *RatingService) GetRating(ctx context.Context, ratingID uint, viewer Viewer) (*models.Rating, error) {
	rating, err := s.loadRating(ctx, ratingID)
	if err != nil {
		return nil, err
	}
	if viewer.IsAdmin || rating.AuthorID == viewer.UserID || reviewsRating(rating, viewer.UserID) {
		return rating, nil
	}

	own := make([]models.RatingParticipant, 0, 1)
	for _, p := range rating.Participants {
		if p.RespondentID == viewer.UserID {
			own = append(own, p)
		}
	}
	if len(own) == 0 {
		return nil, forbidden("you have no access to this rating")
	}
	rating.Participants = own
	return rating, nil
}

func reviewsRating(rating *models.Rating, userID uint) bool {
	for _, r := range rating.Reviewers {
		if r.ID == userID {
			return true
		}
	}
	for _, p := range rating.Participants {
		for _, a := range p.Approvals {
			if a.ReviewerID == userID {
				return true
			}
		}
	}
	return false
}

func (s *RatingService) loadRating(ctx context.Context, ratingID uint) (*models.Rating, error) {
	var rating models.Rating
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Participants.Respondent").
		Preload("Participants.Approvals", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Reviewers").
		First(&rating, ratingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("rating")
		}
		return nil, err
	}
	return &rating, nil
}

func (s *RatingService) ListRatings(ctx context.Context, filter RatingFilter) ([]models.Rating, error) {
	db := s.db.WithContext(ctx)

	participating := db.Model(&models.RatingParticipant{}).Select("rating_id").Where("respondent_id = ?", filter.UserID)
	reviewing := db.Model(&models.RatingParticipant{}).Select("rating_participants.rating_id").
		Joins("JOIN rating_approvals ON rating_approvals.participant_id = rating_participants.id").
		Where("rating_approvals.reviewer_id = ?", filter.UserID)

	q := db.Model(&models.Rating{}).Preload("Author")
	switch filter.Scope {
	case ScopeAuthored:
		q = q.Where("author_id = ?", filter.UserID)
	case ScopeParticipating:
		q = q.Where("id IN (?)", participating)
	case ScopeReviewing:
		q = q.Where("id IN (?)", reviewing)
	case ScopeAll:
		if !filter.IsAdmin {
			q = q.Where("(author_id = ? OR id IN (?) OR id IN (?))", filter.UserID, participating, reviewing)
		}
	default:
		return nil, badRequest("INVALID_SCOPE", "scope must be authored, participating or reviewing", nil)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var ratings []models.Rating
	if err := q.Order("created_at desc, id desc").Find(&ratings).Error; err != nil {
		return nil, err
	}
	return ratings, nil
}

// DeleteRating removes a rating and everything hanging off it. Documents
// survive and become unbound.
func (s *RatingService) DeleteRating(ctx context.Context, ratingID, callerID uint, isAdmin bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rating models.Rating
		if err := tx.First(&rating, ratingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("rating")
			}
			return err
		}
		if rating.AuthorID != callerID && !isAdmin {
			return forbidden("only the author or an administrator can delete this rating")
		}

		if err := clearRatingContent(tx, rating.ID); err != nil {
			return err
		}
		if err := tx.Delete(&rating).Error; err != nil {
			return err
		}

		return recordActivity(tx, callerID, models.ActivityRatingDeleted, uintPtr(rating.ID), nil, map[string]interface{}{
			"title": rating.Title,
		})
	})
	if err != nil {
		return err
	}

	s.metrics.Transition(string(models.ActivityRatingDeleted))
	if s.indexer != nil {
		go func() {
			if err := s.indexer.DeleteRating(ratingID); err != nil {
				s.logger.Warn("failed to remove rating from search index", slog.Uint64("rating_id", uint64(ratingID)), slog.Any("error", err))
			}
		}()
	}
	return nil
}

// index pushes the rating to search in the background. Search is best effort.
func (s *RatingService) index(rating models.Rating) {
	if s.indexer == nil {
		return
	}
	rating.Participants = nil
	go func() {
		if err := s.indexer.IndexRating(rating); err != nil {
			s.logger.Warn("failed to index rating", slog.Uint64("rating_id", uint64(rating.ID)), slog.Any("error", err))
		}
	}()
}
