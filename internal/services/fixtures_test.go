package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/Byak-ko/Qualification-work-sub001/internal/export"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/Byak-ko/Qualification-work-sub001/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentNotice struct {
	Kind      NotificationKind
	Recipient uint
	Level     models.ReviewLevel
}

// recordingNotifier remembers every notification instead of sending it.
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sentNotice
	failFor map[uint]bool
}

func (n *recordingNotifier) record(kind NotificationKind, to models.User, level models.ReviewLevel) Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{Kind: kind, Recipient: to.ID, Level: level})
	outcome := Outcome{Recipient: to.Email, Kind: kind}
	if n.failFor[to.ID] {
		outcome.Error = "mailbox unavailable"
	}
	return outcome
}

func (n *recordingNotifier) NotifyNewRatingAssigned(ctx context.Context, rating *models.Rating, respondents []models.User) []Outcome {
	out := make([]Outcome, 0, len(respondents))
	for _, r := range respondents {
		out = append(out, n.record(NotifyNewRating, r, ""))
	}
	return out
}

func (n *recordingNotifier) NotifyRatingClosed(ctx context.Context, rating *models.Rating, respondents []models.User) []Outcome {
	out := make([]Outcome, 0, len(respondents))
	for _, r := range respondents {
		out = append(out, n.record(NotifyRatingClosed, r, ""))
	}
	return out
}

func (n *recordingNotifier) NotifyReviewerPending(ctx context.Context, rating *models.Rating, respondent, reviewer models.User, level models.ReviewLevel) Outcome {
	return n.record(NotifyReviewerPending, reviewer, level)
}

func (n *recordingNotifier) NotifyNextReviewer(ctx context.Context, rating *models.Rating, respondent, previous, next models.User, level models.ReviewLevel) Outcome {
	return n.record(NotifyNextReviewer, next, level)
}

func (n *recordingNotifier) NotifyApproved(ctx context.Context, rating *models.Rating, respondent models.User) Outcome {
	return n.record(NotifyApproved, respondent, "")
}

func (n *recordingNotifier) NotifyRevisionRequired(ctx context.Context, rating *models.Rating, respondent, actingReviewer models.User) Outcome {
	return n.record(NotifyRevision, respondent, "")
}

func (n *recordingNotifier) last() sentNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentNotice{}
	}
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

// memoryStore is an in-memory ObjectStore.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryStore) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, 0, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (s *memoryStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type capturedRender struct {
	html  string
	title string
}

// stubRenderer returns fixed bytes instead of driving a browser.
type stubRenderer struct {
	calls []capturedRender
}

func (r *stubRenderer) Render(ctx context.Context, html, title string) (*export.Result, error) {
	r.calls = append(r.calls, capturedRender{html: html, title: title})
	return &export.Result{Data: []byte("%PDF-1.4 stub"), Filename: title + ".pdf", MimeType: "application/pdf"}, nil
}

// world is a small university: one unit with two departments.
//
//	author        department B, may author ratings
//	deptReviewer  department A
//	unitReviewer  department B
//	teacher       department A
//	colleague     department A
//	stranger      no department
type world struct {
	db       *gorm.DB
	notifier *recordingNotifier

	unit        models.Unit
	departmentA models.Department
	departmentB models.Department

	author       models.User
	deptReviewer models.User
	unitReviewer models.User
	teacher      models.User
	colleague    models.User
	stranger     models.User

	ratings   *RatingService
	responses *ResponseService
	reviews   *ReviewService
}

func newWorld(t *testing.T) *world {
	t.Helper()

	db := testutil.NewDB(t)
	w := &world{db: db, notifier: &recordingNotifier{}}

	w.unit = models.Unit{Name: "Faculty of Computing"}
	require.NoError(t, db.Create(&w.unit).Error)
	w.departmentA = models.Department{Name: "Software Engineering", UnitID: w.unit.ID}
	require.NoError(t, db.Create(&w.departmentA).Error)
	w.departmentB = models.Department{Name: "Applied Mathematics", UnitID: w.unit.ID}
	require.NoError(t, db.Create(&w.departmentB).Error)

	w.author = createUser(t, db, "author@uni.test", "Olena", "Koval", &w.departmentB.ID, true)
	w.deptReviewer = createUser(t, db, "head@uni.test", "Petro", "Bondar", &w.departmentA.ID, false)
	w.unitReviewer = createUser(t, db, "dean@uni.test", "Iryna", "Melnyk", &w.departmentB.ID, false)
	w.teacher = createUser(t, db, "teacher@uni.test", "Andrii", "Shevchenko", &w.departmentA.ID, false)
	w.colleague = createUser(t, db, "colleague@uni.test", "Maria", "Tkachenko", &w.departmentA.ID, false)
	w.stranger = createUser(t, db, "stranger@uni.test", "Ivan", "Lysenko", nil, false)

	w.ratings = NewRatingService(db, w.notifier, nil, nil, nil)
	w.responses = NewResponseService(db, w.notifier, nil, nil)
	w.reviews = NewReviewService(db, w.notifier, nil, nil)
	return w
}

func createUser(t *testing.T, db *gorm.DB, email, first, last string, departmentID *uint, isAuthor bool) models.User {
	t.Helper()
	user := models.User{
		Role:         models.RoleTeacher,
		FirstName:    first,
		LastName:     last,
		Email:        email,
		PasswordHash: "unused",
		Position:     "Associate Professor",
		Degree:       "PhD",
		IsAuthor:     isAuthor,
		DepartmentID: departmentID,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// ratingInput describes a two item rating reviewed at every level.
func (w *world) ratingInput(respondents ...models.User) RatingInput {
	ids := make([]uint, 0, len(respondents))
	for _, r := range respondents {
		ids = append(ids, r.ID)
	}
	return RatingInput{
		Title: "Scientific activity 2025",
		Type:  models.RatingTypeScientific,
		Items: []ItemInput{
			{Name: "Publications in indexed journals", MaxScore: 50, IsDocNeed: true},
			{Name: "Conference talks", MaxScore: 20},
		},
		RespondentIDs:         ids,
		DepartmentReviewerIDs: []uint{w.deptReviewer.ID},
		UnitReviewerIDs:       []uint{w.unitReviewer.ID},
	}
}

// publishedRating creates and completes a rating for the given respondents.
func (w *world) publishedRating(t *testing.T, respondents ...models.User) *models.Rating {
	t.Helper()
	ctx := context.Background()

	rating, err := w.ratings.CreateRating(ctx, w.author.ID, w.ratingInput(respondents...))
	require.NoError(t, err)
	_, err = w.ratings.CompleteRating(ctx, rating.ID, w.author.ID)
	require.NoError(t, err)

	rating, err = w.ratings.GetRating(ctx, rating.ID, Viewer{UserID: w.author.ID})
	require.NoError(t, err)
	w.notifier.reset()
	return rating
}

// submitted fills every item of the rating for respondent and submits it.
func (w *world) submitted(t *testing.T, rating *models.Rating, respondent models.User) *models.RatingParticipant {
	t.Helper()
	ctx := context.Background()

	items := make([]FillItem, 0, len(rating.Items))
	for _, item := range rating.Items {
		items = append(items, FillItem{ItemID: item.ID, Score: 0})
	}
	items[len(items)-1].Score = 10

	_, err := w.responses.FillRating(ctx, rating.ID, respondent.ID, items)
	require.NoError(t, err)
	result, err := w.responses.FillCompleteRating(ctx, rating.ID, respondent.ID)
	require.NoError(t, err)
	return result.Participant
}

func (w *world) review(t *testing.T, rating *models.Rating, respondent, reviewer models.User, decision Decision, comments models.ItemComments) (*ReviewResult, error) {
	t.Helper()
	return w.reviews.ReviewRating(context.Background(), ReviewInput{
		RatingID:     rating.ID,
		RespondentID: respondent.ID,
		ReviewerID:   reviewer.ID,
		Decision:     decision,
		Comments:     comments,
	})
}

func approvalStatuses(t *testing.T, db *gorm.DB, participantID uint) map[models.ReviewLevel]models.ApprovalStatus {
	t.Helper()
	var approvals []models.RatingApproval
	require.NoError(t, db.Where("participant_id = ?", participantID).Find(&approvals).Error)
	out := make(map[models.ReviewLevel]models.ApprovalStatus, len(approvals))
	for _, a := range approvals {
		out[a.ReviewLevel] = a.Status
	}
	return out
}

func requireDomainError(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	de, ok := AsDomainError(err)
	require.True(t, ok, "expected a domain error, got %v", err)
	require.Equal(t, kind, de.Kind, "kind of %v", err)
	if code != "" {
		require.Equal(t, code, de.Code)
	}
}
