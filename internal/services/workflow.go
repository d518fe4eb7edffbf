package services

import (
	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
)

// Decision is a reviewer's verdict on a filled participant.
type Decision string

const (
	DecisionApprove         Decision = "APPROVE"
	DecisionRequestRevision Decision = "REQUEST_REVISION"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionRequestRevision
}

var levelOrder = []models.ReviewLevel{
	models.LevelDepartment,
	models.LevelUnit,
	models.LevelAuthor,
}

// ReviewChain returns the participant's review levels in escalation order.
// It is derived from the approval rows, which are fixed when the rating is
// built: DEPARTMENT and UNIT only when a reviewer was resolved, AUTHOR always.
func ReviewChain(approvals []models.RatingApproval) []models.ReviewLevel {
	present := make(map[models.ReviewLevel]bool, len(approvals))
	for _, a := range approvals {
		present[a.ReviewLevel] = true
	}

	chain := make([]models.ReviewLevel, 0, len(levelOrder))
	for _, level := range levelOrder {
		if present[level] {
			chain = append(chain, level)
		}
	}
	return chain
}

// FirstLevel returns the level that reviews a freshly submitted response.
func FirstLevel(chain []models.ReviewLevel) (models.ReviewLevel, bool) {
	if len(chain) == 0 {
		return "", false
	}
	return chain[0], true
}

// NextLevel returns the level after current, or false when current is the
// terminal one.
func NextLevel(chain []models.ReviewLevel, current models.ReviewLevel) (models.ReviewLevel, bool) {
	for i, level := range chain {
		if level == current && i+1 < len(chain) {
			return chain[i+1], true
		}
	}
	return "", false
}

// expectedApprovals is the approval set a participant gets at build time.
func expectedApprovals(p *models.RatingParticipant) []models.RatingApproval {
	approvals := make([]models.RatingApproval, 0, 3)
	if p.DepartmentReviewerID != nil {
		approvals = append(approvals, newApproval(*p.DepartmentReviewerID, models.LevelDepartment))
	}
	if p.UnitReviewerID != nil {
		approvals = append(approvals, newApproval(*p.UnitReviewerID, models.LevelUnit))
	}
	approvals = append(approvals, newApproval(p.CustomerReviewerID, models.LevelAuthor))
	return approvals
}

func newApproval(reviewerID uint, level models.ReviewLevel) models.RatingApproval {
	return models.RatingApproval{
		ReviewerID:  reviewerID,
		ReviewLevel: level,
		Status:      models.ApprovalPending,
		Comments:    emptyComments(),
	}
}
