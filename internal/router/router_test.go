package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Byak-ko/Qualification-work-sub001/internal/config"
	"github.com/Byak-ko/Qualification-work-sub001/internal/metrics"
	"github.com/Byak-ko/Qualification-work-sub001/internal/middleware"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/Byak-ko/Qualification-work-sub001/internal/session"
	"github.com/Byak-ko/Qualification-work-sub001/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type discardSender struct{}

func (discardSender) SendEmail(to, subject, htmlBody string) error { return nil }

type nullStore struct{}

func (nullStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := io.Copy(io.Discard, body)
	return err
}

func (nullStore) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	return io.NopCloser(bytes.NewReader(nil)), 0, nil
}

func (nullStore) Remove(ctx context.Context, key string) error { return nil }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	users   *services.UserService
	mr      *miniredis.Miniredis
	db      *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		GinMode:         "test",
		AppURL:          "http://localhost:5173",
		CORSOrigins:     []string{"http://localhost:5173"},
		LoginRateLimit:  100,
		LoginRateWindow: time.Minute,
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.NewWorkflowMetrics(registry)
	require.NoError(t, err)
	notifier := services.NewEmailNotifier(discardSender{}, "", cfg.AppURL, nil, m)
	users := services.NewUserService(db)

	handler := Setup(cfg, Deps{
		DB:       db,
		Redis:    client,
		Gatherer: registry,

		Issuer:    session.NewTokenIssuer("test-secret", time.Hour),
		Blocklist: session.NewBlocklist(client),
		Limiter:   middleware.NewRateLimiter(client, nil),

		Users:      users,
		Ratings:    services.NewRatingService(db, notifier, nil, m, nil),
		Responses:  services.NewResponseService(db, notifier, m, nil),
		Reviews:    services.NewReviewService(db, notifier, m, nil),
		Reports:    services.NewReportService(db, nil, nil),
		Documents:  services.NewDocumentService(db, nullStore{}, cfg.AppURL, 0, nil),
		Activities: services.NewActivityService(db),
	})

	return &testServer{t: t, handler: handler, users: users, mr: mr, db: db}
}

func (s *testServer) user(email string, role models.UserRole, isAuthor bool) *models.User {
	s.t.Helper()
	u, err := s.users.CreateUser(context.Background(), services.CreateUserInput{
		Email: email, Password: "password123", FirstName: "Test", LastName: email, Role: role, IsAuthor: isAuthor,
	})
	require.NoError(s.t, err)
	return u
}

func (s *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (s *testServer) login(email string) string {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	var auth struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &auth))
	require.NotEmpty(s.t, auth.AccessToken)
	return auth.AccessToken
}

func TestRatingWorkflowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.user("author@uni.test", models.RoleTeacher, true)
	teacher := s.user("teacher@uni.test", models.RoleTeacher, false)

	authorToken := s.login("author@uni.test")
	teacherToken := s.login("teacher@uni.test")

	rec, env := s.do(http.MethodPost, "/api/v1/ratings", authorToken, services.RatingInput{
		Title:         "Teaching load",
		Type:          models.RatingTypeEducationalMethodical,
		Items:         []services.ItemInput{{Name: "Lectures", MaxScore: 10}},
		RespondentIDs: []uint{teacher.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rating models.Rating
	require.NoError(t, json.Unmarshal(env.Data, &rating))
	require.Len(t, rating.Items, 1)
	ratingPath := fmt.Sprintf("/api/v1/ratings/%d", rating.ID)

	rec, _ = s.do(http.MethodPost, ratingPath+"/complete", authorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = s.do(http.MethodPut, ratingPath+"/response", teacherToken, map[string]any{
		"items": []map[string]any{{"item_id": rating.Items[0].ID, "score": 8}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(http.MethodPost, ratingPath+"/submit", teacherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var submitted services.SubmitResult
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	assert.Equal(t, models.ParticipantFilled, submitted.Participant.Status)
	assert.Equal(t, 1, submitted.Notifications.Sent)

	reviewPath := fmt.Sprintf("%s/participants/%d/review", ratingPath, teacher.ID)
	rec, env = s.do(http.MethodPost, reviewPath, teacherToken, map[string]any{"decision": "APPROVE"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NOT_AUTHORIZED", env.Error.Code)

	rec, env = s.do(http.MethodPost, reviewPath, authorToken, map[string]any{"decision": "APPROVE"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reviewed services.ReviewResult
	require.NoError(t, json.Unmarshal(env.Data, &reviewed))
	assert.Equal(t, models.ParticipantApproved, reviewed.Participant.Status)

	rec, env = s.do(http.MethodGet, ratingPath+"/report?group_by=department", authorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report services.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 8.0, report.Summary.Average)

	rec, env = s.do(http.MethodGet, ratingPath+"/report.pdf", authorToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RATING_NOT_CLOSED", env.Error.Code)

	rec, _ = s.do(http.MethodPost, ratingPath+"/finalize", authorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(http.MethodGet, ratingPath+"/report.pdf", authorToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "EXPORT_UNAVAILABLE", env.Error.Code)

	rec, env = s.do(http.MethodGet, ratingPath+"/report", teacherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	rec, _ = s.do(http.MethodGet, ratingPath+"/activities", authorToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRatingAndDocumentVisibility(t *testing.T) {
	s := newTestServer(t)
	s.user("author@uni.test", models.RoleTeacher, true)
	teacher := s.user("teacher@uni.test", models.RoleTeacher, false)
	s.user("outsider@uni.test", models.RoleTeacher, false)

	authorToken := s.login("author@uni.test")
	teacherToken := s.login("teacher@uni.test")
	outsiderToken := s.login("outsider@uni.test")

	rec, env := s.do(http.MethodPost, "/api/v1/ratings", authorToken, services.RatingInput{
		Title:         "Teaching load",
		Type:          models.RatingTypeEducationalMethodical,
		Items:         []services.ItemInput{{Name: "Lectures", MaxScore: 10}},
		RespondentIDs: []uint{teacher.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Rating
	require.NoError(t, json.Unmarshal(env.Data, &created))
	ratingPath := fmt.Sprintf("/api/v1/ratings/%d", created.ID)

	rec, env = s.do(http.MethodGet, ratingPath, outsiderToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	rec, env = s.do(http.MethodGet, ratingPath, teacherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var own models.Rating
	require.NoError(t, json.Unmarshal(env.Data, &own))
	require.Len(t, own.Participants, 1)
	assert.Equal(t, teacher.ID, own.Participants[0].RespondentID)

	doc := models.Document{
		Title: "diploma.pdf", ObjectKey: "documents/diploma.pdf", MimeType: "application/pdf", FileSize: 1,
		UploadedByID: teacher.ID,
	}
	require.NoError(t, s.db.Create(&doc).Error)
	docPath := fmt.Sprintf("/api/v1/documents/%d", doc.ID)

	rec, env = s.do(http.MethodGet, docPath, outsiderToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	rec, _ = s.do(http.MethodGet, docPath, teacherToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestErrorEnvelope(t *testing.T) {
	s := newTestServer(t)
	s.user("teacher@uni.test", models.RoleTeacher, false)
	token := s.login("teacher@uni.test")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"missing token", http.MethodGet, "/api/v1/ratings", "", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage token", http.MethodGet, "/api/v1/ratings", "not-a-jwt", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad id", http.MethodGet, "/api/v1/ratings/abc", token, nil, http.StatusBadRequest, "INVALID_ID"},
		{"zero id", http.MethodGet, "/api/v1/ratings/0", token, nil, http.StatusBadRequest, "INVALID_ID"},
		{"unknown rating", http.MethodGet, "/api/v1/ratings/999", token, nil, http.StatusNotFound, "NOT_FOUND"},
		{"not an author", http.MethodPost, "/api/v1/ratings", token, map[string]any{"title": "x", "type": "SCIENTIFIC"}, http.StatusForbidden, "FORBIDDEN"},
		{"missing decision", http.MethodPost, "/api/v1/ratings/1/participants/1/review", token, map[string]any{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad group_by", http.MethodGet, "/api/v1/ratings/1/report?group_by=faculty", token, nil, http.StatusBadRequest, "INVALID_GROUP_BY"},
		{"admin only", http.MethodPost, "/api/v1/admin/units", token, map[string]any{"name": "x"}, http.StatusForbidden, "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestLoginAndLogout(t *testing.T) {
	s := newTestServer(t)
	s.user("admin@uni.test", models.RoleAdmin, false)

	rec, env := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "admin@uni.test", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	token := s.login("admin@uni.test")

	rec, env = s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "admin@uni.test", me.Email)

	rec, _ = s.do(http.MethodPost, "/api/v1/admin/units", token, map[string]any{"name": "Faculty of Law"})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cache":"ok"`)

	s.mr.Close()
	rec, _ = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cache":"unreachable"`)

	rec, _ = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
