package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIndexer struct {
	mu      sync.Mutex
	indexed []uint
	deleted []uint
	done    chan struct{}
}

func newRecordingIndexer() *recordingIndexer {
	return &recordingIndexer{done: make(chan struct{}, 16)}
}

func (r *recordingIndexer) IndexRating(rating models.Rating) error {
	r.mu.Lock()
	r.indexed = append(r.indexed, rating.ID)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recordingIndexer) DeleteRating(id uint) error {
	r.mu.Lock()
	r.deleted = append(r.deleted, id)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recordingIndexer) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("indexer was not called")
	}
}

func TestCreateRatingBuildsParticipants(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	rating, err := w.ratings.CreateRating(ctx, w.author.ID, w.ratingInput(w.teacher, w.colleague, w.stranger))
	require.NoError(t, err)

	assert.Equal(t, models.RatingStatusCreated, rating.Status)
	assert.Equal(t, w.author.ID, rating.AuthorID)
	require.Len(t, rating.Items, 2)
	require.Len(t, rating.Participants, 3)

	for _, p := range rating.Participants {
		assert.Equal(t, models.ParticipantPending, p.Status)
		assert.Equal(t, w.author.ID, p.CustomerReviewerID)
		assert.Equal(t, 1, p.Version)

		// Every participant has exactly one approval per resolved level.
		expected := expectedApprovals(&p)
		require.Len(t, p.Approvals, len(expected))
		for i, a := range p.Approvals {
			assert.Equal(t, expected[i].ReviewLevel, a.ReviewLevel)
			assert.Equal(t, expected[i].ReviewerID, a.ReviewerID)
			assert.Equal(t, models.ApprovalPending, a.Status)
		}

		var responses int64
		require.NoError(t, w.db.Model(&models.RatingResponse{}).Where("participant_id = ?", p.ID).Count(&responses).Error)
		assert.Equal(t, int64(1), responses)
	}

	byRespondent := map[uint]models.RatingParticipant{}
	for _, p := range rating.Participants {
		byRespondent[p.RespondentID] = p
	}

	teacher := byRespondent[w.teacher.ID]
	require.NotNil(t, teacher.DepartmentReviewerID)
	assert.Equal(t, w.deptReviewer.ID, *teacher.DepartmentReviewerID)
	require.NotNil(t, teacher.UnitReviewerID)
	assert.Equal(t, w.unitReviewer.ID, *teacher.UnitReviewerID)

	// Without a department nobody can review below the author.
	stranger := byRespondent[w.stranger.ID]
	assert.Nil(t, stranger.DepartmentReviewerID)
	assert.Nil(t, stranger.UnitReviewerID)
	assert.Len(t, stranger.Approvals, 1)

	reviewerIDs := []uint{}
	for _, r := range rating.Reviewers {
		reviewerIDs = append(reviewerIDs, r.ID)
	}
	assert.ElementsMatch(t, []uint{w.deptReviewer.ID, w.unitReviewer.ID}, reviewerIDs)
}

func TestCreateRatingExcludesSelfReview(t *testing.T) {
	w := newWorld(t)

	rating, err := w.ratings.CreateRating(context.Background(), w.author.ID, w.ratingInput(w.deptReviewer, w.unitReviewer))
	require.NoError(t, err)

	for _, p := range rating.Participants {
		if p.DepartmentReviewerID != nil {
			assert.NotEqual(t, p.RespondentID, *p.DepartmentReviewerID)
		}
		if p.UnitReviewerID != nil {
			assert.NotEqual(t, p.RespondentID, *p.UnitReviewerID)
		}
		switch p.RespondentID {
		case w.deptReviewer.ID:
			assert.Nil(t, p.DepartmentReviewerID)
			require.NotNil(t, p.UnitReviewerID)
			assert.Equal(t, w.unitReviewer.ID, *p.UnitReviewerID)
		case w.unitReviewer.ID:
			assert.Nil(t, p.DepartmentReviewerID, "department reviewer works elsewhere")
			assert.Nil(t, p.UnitReviewerID)
		}
	}
}

func TestAuthorCannotRespondToOwnRating(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	_, err := w.ratings.CreateRating(ctx, w.author.ID, w.ratingInput(w.author))
	requireDomainError(t, err, KindBadRequest, "AUTHOR_IS_RESPONDENT")

	rating := w.publishedRating(t, w.teacher)
	_, err = w.ratings.EditRating(ctx, rating.ID, w.author.ID, w.ratingInput(w.teacher, w.author))
	requireDomainError(t, err, KindBadRequest, "AUTHOR_IS_RESPONDENT")

	var participants int64
	require.NoError(t, w.db.Model(&models.RatingParticipant{}).Where("respondent_id = ?", w.author.ID).Count(&participants).Error)
	assert.Zero(t, participants)
}

func TestDepartmentReviewerForPicksLowestID(t *testing.T) {
	dept := uint(3)
	respondent := models.User{ID: 10, DepartmentID: &dept}
	candidates := []models.User{
		{ID: 4, DepartmentID: &dept},
		{ID: 8, DepartmentID: &dept},
	}
	got := departmentReviewerFor(respondent, candidates)
	require.NotNil(t, got)
	assert.Equal(t, uint(4), *got)

	assert.Nil(t, departmentReviewerFor(models.User{ID: 4, DepartmentID: &dept}, candidates[:1]))
}

func TestCreateRatingValidation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(in *RatingInput)
		code   string
	}{
		{"blank title", func(in *RatingInput) { in.Title = "  " }, "VALIDATION_ERROR"},
		{"unknown type", func(in *RatingInput) { in.Type = "SPORTS" }, "INVALID_TYPE"},
		{"no items", func(in *RatingInput) { in.Items = nil }, "VALIDATION_ERROR"},
		{"zero max score", func(in *RatingInput) { in.Items[0].MaxScore = 0 }, "VALIDATION_ERROR"},
		{"no respondents", func(in *RatingInput) { in.RespondentIDs = nil }, "VALIDATION_ERROR"},
		{"unknown respondent", func(in *RatingInput) { in.RespondentIDs = append(in.RespondentIDs, 9999) }, "UNKNOWN_USERS"},
		{"unknown reviewer", func(in *RatingInput) { in.UnitReviewerIDs = []uint{8888} }, "UNKNOWN_USERS"},
		{"line break in title", func(in *RatingInput) { in.Title = "Q1\r\nBcc: leak@evil.test" }, "VALIDATION_ERROR"},
		{"author as respondent", func(in *RatingInput) { in.RespondentIDs = append(in.RespondentIDs, w.author.ID) }, "AUTHOR_IS_RESPONDENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := w.ratingInput(w.teacher)
			tt.mutate(&in)
			_, err := w.ratings.CreateRating(ctx, w.author.ID, in)
			requireDomainError(t, err, KindBadRequest, tt.code)
		})
	}

	var count int64
	require.NoError(t, w.db.Model(&models.Rating{}).Count(&count).Error)
	assert.Zero(t, count, "failed creates leave nothing behind")
}

func TestCreateRatingRequiresAuthor(t *testing.T) {
	w := newWorld(t)

	_, err := w.ratings.CreateRating(context.Background(), w.teacher.ID, w.ratingInput(w.colleague))
	requireDomainError(t, err, KindForbidden, "")
}

func TestEditRatingDiscardsProgress(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	rating := w.publishedRating(t, w.teacher)
	w.submitted(t, rating, w.teacher)

	in := w.ratingInput(w.teacher, w.colleague)
	in.Title = "Scientific activity 2025 (revised)"
	in.Items = append(in.Items, ItemInput{Name: "Patents", MaxScore: 30})

	edited, err := w.ratings.EditRating(ctx, rating.ID, w.author.ID, in)
	require.NoError(t, err)

	assert.Equal(t, "Scientific activity 2025 (revised)", edited.Title)
	assert.Equal(t, models.RatingStatusPending, edited.Status, "editing keeps the rating status")
	assert.Len(t, edited.Items, 3)
	require.Len(t, edited.Participants, 2)
	for _, p := range edited.Participants {
		assert.Equal(t, models.ParticipantPending, p.Status)
		for _, a := range p.Approvals {
			assert.Equal(t, models.ApprovalPending, a.Status)
		}
	}

	var oldItems int64
	require.NoError(t, w.db.Model(&models.RatingItem{}).Where("id = ?", rating.Items[0].ID).Count(&oldItems).Error)
	assert.Zero(t, oldItems)

	var responses []models.RatingResponse
	require.NoError(t, w.db.Where("rating_id = ?", rating.ID).Find(&responses).Error)
	assert.Len(t, responses, 2)
	for _, r := range responses {
		assert.Empty(t, r.Scores.Data())
	}
}

func TestEditRatingRules(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	rating := w.publishedRating(t, w.teacher)

	_, err := w.ratings.EditRating(ctx, rating.ID, w.deptReviewer.ID, w.ratingInput(w.teacher))
	requireDomainError(t, err, KindForbidden, "")

	_, err = w.ratings.EditRating(ctx, 777, w.author.ID, w.ratingInput(w.teacher))
	requireDomainError(t, err, KindNotFound, "")

	_, err = w.ratings.FinalizeRating(ctx, rating.ID, w.author.ID)
	require.NoError(t, err)
	_, err = w.ratings.EditRating(ctx, rating.ID, w.author.ID, w.ratingInput(w.teacher))
	requireDomainError(t, err, KindBadRequest, "RATING_CLOSED")
}

func TestRatingStatusTransitions(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	rating, err := w.ratings.CreateRating(ctx, w.author.ID, w.ratingInput(w.teacher, w.colleague))
	require.NoError(t, err)

	_, err = w.ratings.FinalizeRating(ctx, rating.ID, w.author.ID)
	requireDomainError(t, err, KindBadRequest, "INVALID_STATUS")

	_, err = w.ratings.CompleteRating(ctx, rating.ID, w.teacher.ID)
	requireDomainError(t, err, KindForbidden, "")

	w.notifier.failFor = map[uint]bool{w.colleague.ID: true}
	completed, err := w.ratings.CompleteRating(ctx, rating.ID, w.author.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RatingStatusPending, completed.Rating.Status)
	assert.Equal(t, 1, completed.Notifications.Sent)
	assert.Equal(t, 1, completed.Notifications.Failed)
	assert.Len(t, completed.Notifications.Outcomes, 2)

	_, err = w.ratings.CompleteRating(ctx, rating.ID, w.author.ID)
	requireDomainError(t, err, KindBadRequest, "INVALID_STATUS")

	w.notifier.reset()
	w.notifier.failFor = nil
	finalized, err := w.ratings.FinalizeRating(ctx, rating.ID, w.author.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RatingStatusClosed, finalized.Rating.Status)
	assert.NotNil(t, finalized.Rating.EndedAt)
	assert.Equal(t, 2, finalized.Notifications.Sent)
	assert.Equal(t, NotifyRatingClosed, w.notifier.last().Kind)

	stored, err := w.ratings.GetRating(ctx, rating.ID, Viewer{UserID: w.author.ID})
	require.NoError(t, err)
	assert.Equal(t, models.RatingStatusClosed, stored.Status)
	assert.NotNil(t, stored.EndedAt)
}

func TestFinalizeKeepsExplicitEndDate(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	ended := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	in := w.ratingInput(w.teacher)
	in.EndedAt = &ended
	rating, err := w.ratings.CreateRating(ctx, w.author.ID, in)
	require.NoError(t, err)
	_, err = w.ratings.CompleteRating(ctx, rating.ID, w.author.ID)
	require.NoError(t, err)

	result, err := w.ratings.FinalizeRating(ctx, rating.ID, w.author.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Rating.EndedAt)
	assert.True(t, ended.Equal(*result.Rating.EndedAt))
}

func TestGetRatingScopesByViewer(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	rating := w.publishedRating(t, w.teacher, w.colleague)

	for _, v := range []Viewer{{UserID: w.author.ID}, {UserID: w.deptReviewer.ID}, {UserID: w.unitReviewer.ID}, {UserID: w.stranger.ID, IsAdmin: true}} {
		got, err := w.ratings.GetRating(ctx, rating.ID, v)
		require.NoError(t, err, "viewer %d", v.UserID)
		assert.Len(t, got.Participants, 2)
	}

	own, err := w.ratings.GetRating(ctx, rating.ID, Viewer{UserID: w.teacher.ID})
	require.NoError(t, err)
	require.Len(t, own.Participants, 1)
	assert.Equal(t, w.teacher.ID, own.Participants[0].RespondentID)

	_, err = w.ratings.GetRating(ctx, rating.ID, Viewer{UserID: w.stranger.ID})
	requireDomainError(t, err, KindForbidden, "")
}

func TestListRatingsScopes(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	first := w.publishedRating(t, w.teacher)
	second, err := w.ratings.CreateRating(ctx, w.author.ID, w.ratingInput(w.colleague))
	require.NoError(t, err)

	ids := func(ratings []models.Rating) []uint {
		out := []uint{}
		for _, r := range ratings {
			out = append(out, r.ID)
		}
		return out
	}

	got, err := w.ratings.ListRatings(ctx, RatingFilter{UserID: w.author.ID, Scope: ScopeAuthored})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{first.ID, second.ID}, ids(got))

	got, err = w.ratings.ListRatings(ctx, RatingFilter{UserID: w.teacher.ID, Scope: ScopeParticipating})
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID}, ids(got))

	got, err = w.ratings.ListRatings(ctx, RatingFilter{UserID: w.deptReviewer.ID, Scope: ScopeReviewing})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{first.ID, second.ID}, ids(got))

	got, err = w.ratings.ListRatings(ctx, RatingFilter{UserID: w.stranger.ID})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = w.ratings.ListRatings(ctx, RatingFilter{UserID: w.stranger.ID, IsAdmin: true, Status: models.RatingStatusCreated})
	require.NoError(t, err)
	assert.Equal(t, []uint{second.ID}, ids(got))

	_, err = w.ratings.ListRatings(ctx, RatingFilter{UserID: w.teacher.ID, Scope: "everything"})
	requireDomainError(t, err, KindBadRequest, "INVALID_SCOPE")
}

func TestDeleteRatingCascades(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	indexer := newRecordingIndexer()
	w.ratings = NewRatingService(w.db, w.notifier, indexer, nil, nil)

	rating, err := w.ratings.CreateRating(ctx, w.author.ID, w.ratingInput(w.teacher))
	require.NoError(t, err)
	indexer.wait(t)

	doc := models.Document{
		Title: "paper.pdf", ObjectKey: "documents/paper.pdf", MimeType: "application/pdf", FileSize: 10,
		UploadedByID: w.teacher.ID, ParticipantID: &rating.Participants[0].ID, ItemID: &rating.Items[0].ID,
	}
	require.NoError(t, w.db.Create(&doc).Error)

	err = w.ratings.DeleteRating(ctx, rating.ID, w.teacher.ID, false)
	requireDomainError(t, err, KindForbidden, "")

	require.NoError(t, w.ratings.DeleteRating(ctx, rating.ID, w.author.ID, false))
	indexer.wait(t)

	for _, model := range []interface{}{&models.Rating{}, &models.RatingItem{}, &models.RatingParticipant{}, &models.RatingResponse{}, &models.RatingApproval{}, &models.RatingReviewer{}} {
		var count int64
		require.NoError(t, w.db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T rows remain", model)
	}

	var kept models.Document
	require.NoError(t, w.db.First(&kept, doc.ID).Error)
	assert.Nil(t, kept.ParticipantID)
	assert.Nil(t, kept.ItemID)

	indexer.mu.Lock()
	defer indexer.mu.Unlock()
	assert.Equal(t, []uint{rating.ID}, indexer.deleted)

	_, err = w.ratings.GetRating(ctx, rating.ID, Viewer{UserID: w.author.ID})
	requireDomainError(t, err, KindNotFound, "")
}

func TestDeleteRatingByAdmin(t *testing.T) {
	w := newWorld(t)
	rating := w.publishedRating(t, w.teacher)

	require.NoError(t, w.ratings.DeleteRating(context.Background(), rating.ID, w.stranger.ID, true))
	err := w.ratings.DeleteRating(context.Background(), rating.ID, w.stranger.ID, true)
	requireDomainError(t, err, KindNotFound, "")
}
