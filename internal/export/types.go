// Package export renders rating reports as printable documents.
package export

import (
	"errors"
	"time"
)

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ReportView is the template model of a rating report.
type ReportView struct {
	Title       string
	RatingType  string
	Author      string
	GroupBy     string
	EndedAt     time.Time
	GeneratedAt time.Time
	Groups      []GroupView
	Summary     []SummaryRow
	Total       SummaryRow
}

type GroupView struct {
	Name    string
	Total   int
	Average float64
	Rows    []RowView
}

type RowView struct {
	Name   string
	Status string
	Score  float64
}

// SummaryRow is one line of the cross-group summary table.
type SummaryRow struct {
	Group    string
	Total    int
	Approved int
	Filled   int
	Revision int
	Pending  int
	Average  float64
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
