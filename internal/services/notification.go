package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Byak-ko/Qualification-work-sub001/internal/logging"
	"github.com/Byak-ko/Qualification-work-sub001/internal/metrics"
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"golang.org/x/sync/errgroup"
)

type NotificationKind string

const (
	NotifyNewRating       NotificationKind = "new_rating_assigned"
	NotifyRatingClosed    NotificationKind = "rating_closed"
	NotifyReviewerPending NotificationKind = "reviewer_pending"
	NotifyNextReviewer    NotificationKind = "next_reviewer"
	NotifyApproved        NotificationKind = "approved"
	NotifyRevision        NotificationKind = "revision_required"
)

// Outcome is the delivery result for one recipient.
type Outcome struct {
	Recipient string           `json:"recipient"`
	Kind      NotificationKind `json:"kind"`
	Error     string           `json:"error,omitempty"`
}

func (o Outcome) OK() bool {
	return o.Error == ""
}

// NotificationSummary is attached to operation results. Failures never fail
// the operation itself.
type NotificationSummary struct {
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes"`
}

func summarize(outcomes ...Outcome) NotificationSummary {
	summary := NotificationSummary{Outcomes: outcomes}
	if summary.Outcomes == nil {
		summary.Outcomes = []Outcome{}
	}
	for _, o := range outcomes {
		if o.OK() {
			summary.Sent++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// Notifier sends the workflow emails.
type Notifier interface {
	NotifyNewRatingAssigned(ctx context.Context, rating *models.Rating, respondents []models.User) []Outcome
	NotifyRatingClosed(ctx context.Context, rating *models.Rating, respondents []models.User) []Outcome
	NotifyReviewerPending(ctx context.Context, rating *models.Rating, respondent, reviewer models.User, level models.ReviewLevel) Outcome
	NotifyNextReviewer(ctx context.Context, rating *models.Rating, respondent, previous, next models.User, level models.ReviewLevel) Outcome
	NotifyApproved(ctx context.Context, rating *models.Rating, respondent models.User) Outcome
	NotifyRevisionRequired(ctx context.Context, rating *models.Rating, respondent, actingReviewer models.User) Outcome
}

const defaultNotifyConcurrency = 8

type EmailNotifier struct {
	sender      EmailSender
	appName     string
	appURL      string
	logger      *slog.Logger
	metrics     *metrics.WorkflowMetrics
	concurrency int
}

func NewEmailNotifier(sender EmailSender, appName, appURL string, logger *slog.Logger, m *metrics.WorkflowMetrics) *EmailNotifier {
	if appName == "" {
		appName = "Teacher Rating"
	}
	return &EmailNotifier{
		sender:      sender,
		appName:     appName,
		appURL:      appURL,
		logger:      logging.Module(logger, "notify"),
		metrics:     m,
		concurrency: defaultNotifyConcurrency,
	}
}

func (n *EmailNotifier) NotifyNewRatingAssigned(ctx context.Context, rating *models.Rating, respondents []models.User) []Outcome {
	return n.broadcast(ctx, NotifyNewRating, "new_rating.html", "New rating assigned: "+rating.Title, rating, respondents)
}

func (n *EmailNotifier) NotifyRatingClosed(ctx context.Context, rating *models.Rating, respondents []models.User) []Outcome {
	return n.broadcast(ctx, NotifyRatingClosed, "rating_closed.html", "Rating closed: "+rating.Title, rating, respondents)
}

func (n *EmailNotifier) NotifyReviewerPending(ctx context.Context, rating *models.Rating, respondent, reviewer models.User, level models.ReviewLevel) Outcome {
	data := n.data(rating, reviewer)
	data.RespondentName = respondent.FullName()
	data.ReviewLevel = string(level)
	return n.deliver(ctx, NotifyReviewerPending, "reviewer_pending.html", "Rating awaits your review: "+rating.Title, reviewer, data)
}

func (n *EmailNotifier) NotifyNextReviewer(ctx context.Context, rating *models.Rating, respondent, previous, next models.User, level models.ReviewLevel) Outcome {
	data := n.data(rating, next)
	data.RespondentName = respondent.FullName()
	data.ReviewerName = previous.FullName()
	data.ReviewLevel = string(level)
	return n.deliver(ctx, NotifyNextReviewer, "next_reviewer.html", "Rating awaits your review: "+rating.Title, next, data)
}

func (n *EmailNotifier) NotifyApproved(ctx context.Context, rating *models.Rating, respondent models.User) Outcome {
	return n.deliver(ctx, NotifyApproved, "approved.html", "Rating approved: "+rating.Title, respondent, n.data(rating, respondent))
}

func (n *EmailNotifier) NotifyRevisionRequired(ctx context.Context, rating *models.Rating, respondent, actingReviewer models.User) Outcome {
	data := n.data(rating, respondent)
	data.ReviewerName = actingReviewer.FullName()
	return n.deliver(ctx, NotifyRevision, "revision_required.html", "Rating returned for revision: "+rating.Title, respondent, data)
}

func (n *EmailNotifier) data(rating *models.Rating, recipient models.User) EmailData {
	return EmailData{
		AppName:       n.appName,
		RecipientName: recipient.FullName(),
		RatingTitle:   rating.Title,
		RatingURL:     fmt.Sprintf("%s/ratings/%d", n.appURL, rating.ID),
	}
}

// broadcast fans one message out to many recipients with bounded
// concurrency. Each recipient gets its own outcome slot.
func (n *EmailNotifier) broadcast(ctx context.Context, kind NotificationKind, tmpl, subject string, rating *models.Rating, recipients []models.User) []Outcome {
	outcomes := make([]Outcome, len(recipients))

	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for i, recipient := range recipients {
		i, recipient := i, recipient
		g.Go(func() error {
			outcomes[i] = n.deliver(ctx, kind, tmpl, subject, recipient, n.data(rating, recipient))
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (n *EmailNotifier) deliver(ctx context.Context, kind NotificationKind, tmpl, subject string, to models.User, data EmailData) Outcome {
	outcome := Outcome{Recipient: to.Email, Kind: kind}

	err := ctx.Err()
	if err == nil {
		var body string
		body, err = renderEmail(tmpl, data)
		if err == nil {
			err = n.sender.SendEmail(to.Email, subject, body)
		}
	}

	n.metrics.Notification(string(kind), err)
	if err != nil {
		outcome.Error = err.Error()
		n.logger.Warn("notification failed",
			slog.String("kind", string(kind)),
			slog.String("recipient", to.Email),
			slog.Any("error", err))
		return outcome
	}

	n.logger.Debug("notification sent",
		slog.String("kind", string(kind)),
		slog.String("recipient", to.Email))
	return outcome
}
