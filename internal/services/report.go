package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Byak-ko/Qualification-work-sub001/internal/export"
	"github.com/Byak-ko/Qualification-work-sub001/internal/logging"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"gorm.io/gorm"
)

type GroupBy string

const (
	GroupByNone       GroupBy = "none"
	GroupByDepartment GroupBy = "department"
	GroupByUnit       GroupBy = "unit"
	GroupByPosition   GroupBy = "position"
	GroupByDegree     GroupBy = "degree"
)

// ParseGroupBy accepts the empty string as "none".
func ParseGroupBy(value string) (GroupBy, error) {
	switch g := GroupBy(value); g {
	case "":
		return GroupByNone, nil
	case GroupByNone, GroupByDepartment, GroupByUnit, GroupByPosition, GroupByDegree:
		return g, nil
	}
	return "", badRequest("INVALID_GROUP_BY", "group_by must be one of none, department, unit, position, degree", map[string]interface{}{"group_by": value})
}

const (
	allParticipantsGroup = "All participants"
	unspecifiedGroup     = "Not specified"
)

type ReportRow struct {
	ParticipantID uint                     `json:"participant_id"`
	RespondentID  uint                     `json:"respondent_id"`
	Name          string                   `json:"name"`
	Department    string                   `json:"department"`
	Unit          string                   `json:"unit"`
	Position      string                   `json:"position"`
	Degree        string                   `json:"degree"`
	Status        models.ParticipantStatus `json:"status"`
	Score         float64                  `json:"score"`
}

type StatusCounts map[models.ParticipantStatus]int

type ReportGroup struct {
	Name         string       `json:"name"`
	Total        int          `json:"total"`
	StatusCounts StatusCounts `json:"status_counts"`
	ScoreSum     float64      `json:"score_sum"`
	Average      float64      `json:"average"`
	Rows         []ReportRow  `json:"rows"`
}

type Report struct {
	RatingID    uint                `json:"rating_id"`
	Title       string              `json:"title"`
	Type        models.RatingType   `json:"type"`
	Status      models.RatingStatus `json:"status"`
	Author      string              `json:"author"`
	EndedAt     *time.Time          `json:"ended_at,omitempty"`
	GroupBy     GroupBy             `json:"group_by"`
	Groups      []ReportGroup       `json:"groups"`
	Summary     ReportGroup         `json:"summary"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Viewer is the caller asking for a report.
type Viewer struct {
	UserID  uint
	IsAdmin bool
}

// PDFRenderer turns a rendered HTML report into a PDF.
type PDFRenderer interface {
	Render(ctx context.Context, html, title string) (*export.Result, error)
}

type ReportService struct {
	db       *gorm.DB
	renderer PDFRenderer
	logger   *slog.Logger
}

func NewReportService(db *gorm.DB, renderer PDFRenderer, logger *slog.Logger) *ReportService {
	return &ReportService{
		db:       db,
		renderer: renderer,
		logger:   logging.Module(logger, "report"),
	}
}

func (s *ReportService) loadRating(ctx context.Context, ratingID uint, viewer Viewer) (*models.Rating, error) {
	var rating models.Rating
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Participants.Respondent.Department.Unit").
		First(&rating, ratingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("rating")
		}
		return nil, err
	}

	if err := s.authorize(ctx, &rating, viewer); err != nil {
		return nil, err
	}
	return &rating, nil
}

func (s *ReportService) authorize(ctx context.Context, rating *models.Rating, viewer Viewer) error {
	if viewer.IsAdmin || rating.AuthorID == viewer.UserID {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.RatingReviewer{}).
		Where("rating_id = ? AND user_id = ?", rating.ID, viewer.UserID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return forbidden("only the author, reviewers and administrators can view reports")
	}
	return nil
}

// CheckAccess applies the report visibility rules to a rating.
func (s *ReportService) CheckAccess(ctx context.Context, ratingID uint, viewer Viewer) error {
	var rating models.Rating
	if err := s.db.WithContext(ctx).First(&rating, ratingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("rating")
		}
		return err
	}
	return s.authorize(ctx, &rating, viewer)
}

// BuildReport aggregates participants of a rating into groups. Only APPROVED
// participants contribute their score; everyone counts in the denominator.
func (s *ReportService) BuildReport(ctx context.Context, ratingID uint, groupBy GroupBy, viewer Viewer) (*Report, error) {
	groupBy, err := ParseGroupBy(string(groupBy))
	if err != nil {
		return nil, err
	}
	rating, err := s.loadRating(ctx, ratingID, viewer)
	if err != nil {
		return nil, err
	}

	var responses []models.RatingResponse
	if err := s.db.WithContext(ctx).Where("rating_id = ?", ratingID).Find(&responses).Error; err != nil {
		return nil, err
	}
	totals := make(map[uint]float64, len(responses))
	for i := range responses {
		totals[responses[i].ParticipantID] = responses[i].TotalScore()
	}

	rows := make([]ReportRow, 0, len(rating.Participants))
	for _, p := range rating.Participants {
		row := reportRow(p)
		if p.Status == models.ParticipantApproved {
			row.Score = totals[p.ID]
		}
		rows = append(rows, row)
	}

	return &Report{
		RatingID:    rating.ID,
		Title:       rating.Title,
		Type:        rating.Type,
		Status:      rating.Status,
		Author:      rating.Author.FullName(),
		EndedAt:     rating.EndedAt,
		GroupBy:     groupBy,
		Groups:      groupRows(rows, groupBy),
		Summary:     aggregate(allParticipantsGroup, rows),
		GeneratedAt: time.Now(),
	}, nil
}

func reportRow(p models.RatingParticipant) ReportRow {
	row := ReportRow{
		ParticipantID: p.ID,
		RespondentID:  p.RespondentID,
		Name:          p.Respondent.FullName(),
		Position:      p.Respondent.Position,
		Degree:        p.Respondent.Degree,
		Status:        p.Status,
	}
	if d := p.Respondent.Department; d != nil {
		row.Department = d.Name
		if d.Unit != nil {
			row.Unit = d.Unit.Name
		}
	}
	return row
}

func groupKey(row ReportRow, groupBy GroupBy) string {
	var key string
	switch groupBy {
	case GroupByDepartment:
		key = row.Department
	case GroupByUnit:
		key = row.Unit
	case GroupByPosition:
		key = row.Position
	case GroupByDegree:
		key = row.Degree
	default:
		return allParticipantsGroup
	}
	if key == "" {
		return unspecifiedGroup
	}
	return key
}

// groupRows splits rows into named groups ordered by name, with the
// unspecified group last.
func groupRows(rows []ReportRow, groupBy GroupBy) []ReportGroup {
	buckets := map[string][]ReportRow{}
	for _, row := range rows {
		key := groupKey(row, groupBy)
		buckets[key] = append(buckets[key], row)
	}
	if len(buckets) == 0 {
		return []ReportGroup{aggregate(allParticipantsGroup, nil)}
	}

	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == unspecifiedGroup) != (names[j] == unspecifiedGroup) {
			return names[j] == unspecifiedGroup
		}
		return names[i] < names[j]
	})

	groups := make([]ReportGroup, 0, len(names))
	for _, name := range names {
		groups = append(groups, aggregate(name, buckets[name]))
	}
	return groups
}

func aggregate(name string, rows []ReportRow) ReportGroup {
	group := ReportGroup{
		Name:         name,
		Total:        len(rows),
		StatusCounts: StatusCounts{},
		Rows:         append([]ReportRow{}, rows...),
	}
	for _, status := range []models.ParticipantStatus{
		models.ParticipantPending, models.ParticipantFilled, models.ParticipantRevision, models.ParticipantApproved,
	} {
		group.StatusCounts[status] = 0
	}
	for _, row := range rows {
		group.StatusCounts[row.Status]++
		group.ScoreSum += row.Score
	}
	if group.Total > 0 {
		group.Average = group.ScoreSum / float64(group.Total)
	}
	sortRows(group.Rows)
	return group
}

// sortRows puts FILLED participants first, then orders by descending score.
// Name and participant id keep the order stable.
func sortRows(rows []ReportRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if af, bf := a.Status == models.ParticipantFilled, b.Status == models.ParticipantFilled; af != bf {
			return af
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ParticipantID < b.ParticipantID
	})
}

// ExportReportPDF renders the report of a CLOSED rating as a PDF.
func (s *ReportService) ExportReportPDF(ctx context.Context, ratingID uint, groupBy GroupBy, viewer Viewer) (*export.Result, error) {
	report, err := s.BuildReport(ctx, ratingID, groupBy, viewer)
	if err != nil {
		return nil, err
	}
	if report.Status != models.RatingStatusClosed {
		return nil, badRequest("RATING_NOT_CLOSED", "reports can only be exported for closed ratings", map[string]interface{}{
			"status": report.Status,
		})
	}
	if s.renderer == nil {
		return nil, fmt.Errorf("%w: no pdf renderer configured", export.ErrPDFDependencyMissing)
	}

	html, err := export.RenderReportHTML(reportView(report))
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	result, err := s.renderer.Render(ctx, html, report.Title)
	if err != nil {
		return nil, err
	}
	s.logger.Info("report exported",
		slog.Uint64("rating_id", uint64(ratingID)),
		slog.String("group_by", string(groupBy)),
		slog.Int("bytes", len(result.Data)))
	return result, nil
}

func reportView(r *Report) export.ReportView {
	view := export.ReportView{
		Title:       r.Title,
		RatingType:  string(r.Type),
		Author:      r.Author,
		GroupBy:     string(r.GroupBy),
		GeneratedAt: r.GeneratedAt,
		Total:       summaryRow(r.Summary),
	}
	if r.EndedAt != nil {
		view.EndedAt = *r.EndedAt
	}
	for _, g := range r.Groups {
		group := export.GroupView{Name: g.Name, Total: g.Total, Average: g.Average}
		for _, row := range g.Rows {
			group.Rows = append(group.Rows, export.RowView{Name: row.Name, Status: string(row.Status), Score: row.Score})
		}
		view.Groups = append(view.Groups, group)
		view.Summary = append(view.Summary, summaryRow(g))
	}
	return view
}

func summaryRow(g ReportGroup) export.SummaryRow {
	return export.SummaryRow{
		Group:    g.Name,
		Total:    g.Total,
		Approved: g.StatusCounts[models.ParticipantApproved],
		Filled:   g.StatusCounts[models.ParticipantFilled],
		Revision: g.StatusCounts[models.ParticipantRevision],
		Pending:  g.StatusCounts[models.ParticipantPending],
		Average:  g.Average,
	}
}
