package store

import (
	"context"
	"errors"
	"time"

	"github.com/drususdark/audit-inventory-mvp/internal/model"
)

// ErrNotFound is returned (wrapped) when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ReportFilter specifies criteria for listing reports. A zero LocalID
// matches every local.
type ReportFilter struct {
	LocalID int64 `json:"local_id,omitempty"`
	Limit   int   `json:"limit,omitempty"`
	Offset  int   `json:"offset,omitempty"`
}

// Store defines the persistence interface for locals, reports and scores.
type Store interface {
	// Locals
	CreateLocal(ctx context.Context, name, address string) (*model.Local, error)
	GetLocal(ctx context.Context, id int64) (*model.Local, error)
	ListLocals(ctx context.Context) ([]model.Local, error)

	// Reports and scores. CreateReportWithScore assigns IDs and timestamps
	// to r and s and records a REPORT_CREATED audit entry with details.
	CreateReportWithScore(ctx context.Context, r *model.Report, s *model.Score, details string) error
	GetReport(ctx context.Context, id int64) (*model.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error)
	ListReportsWithScores(ctx context.Context, localID int64) ([]model.ReportWithScore, error)
	GetScoreByReport(ctx context.Context, reportID int64) (*model.Score, error)
	ListScores(ctx context.Context) ([]model.Score, error)

	// OverrideScore sets the final score and appends a SCORE_OVERRIDE
	// audit entry with details, atomically.
	OverrideScore(ctx context.Context, reportID int64, finalScore int, reason, details string) (*model.Score, error)

	// Audit log. A zero reportID lists every entry.
	ListAuditEntries(ctx context.Context, reportID int64) ([]model.AuditEntry, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type scannable interface {
	Scan(dest ...any) error
}

const (
	localColumns  = `id, name, address, created_at, updated_at`
	reportColumns = `id, local_id, report_date, input_type, raw_content, file_name, extracted_text, created_at`
	scoreColumns  = `id, report_id, auto_score, final_score, criteria_scores, ai_source, ai_provider, is_overridden, override_reason, created_at, updated_at`
	auditColumns  = `id, report_id, action, details, created_at`
)

func scanLocal(row scannable) (*model.Local, error) {
	var l model.Local
	var address *string
	if err := row.Scan(&l.ID, &l.Name, &address, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Address = deref(address)
	return &l, nil
}

func scanReport(row scannable) (*model.Report, error) {
	var r model.Report
	var inputType string
	var raw, fileName, extracted *string
	if err := row.Scan(&r.ID, &r.LocalID, &r.ReportDate, &inputType, &raw, &fileName, &extracted, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.InputType = model.InputType(inputType)
	r.RawContent = deref(raw)
	r.FileName = deref(fileName)
	r.ExtractedText = deref(extracted)
	return &r, nil
}

func scanScore(row scannable) (*model.Score, error) {
	var s model.Score
	var criteria []byte
	var provider, reason *string
	if err := row.Scan(&s.ID, &s.ReportID, &s.AutoScore, &s.FinalScore, &criteria, &s.AISource,
		&provider, &s.IsOverridden, &reason, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.CriteriaScores = criteria
	s.AIProvider = deref(provider)
	s.OverrideReason = deref(reason)
	return &s, nil
}

func scanAuditEntry(row scannable) (*model.AuditEntry, error) {
	var e model.AuditEntry
	var action string
	var details *string
	if err := row.Scan(&e.ID, &e.ReportID, &action, &details, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Action = model.AuditAction(action)
	e.Details = deref(details)
	return &e, nil
}

// reportsWithScoresQuery left-joins scores onto reports, newest report
// first. where is the driver-specific filter on r.local_id.
func reportsWithScoresQuery(where string) string {
	return `SELECT r.id, r.local_id, r.report_date, r.input_type, r.raw_content, r.file_name, r.extracted_text, r.created_at,
		s.id, s.report_id, s.auto_score, s.final_score, s.criteria_scores, s.ai_source, s.ai_provider,
		s.is_overridden, s.override_reason, s.created_at, s.updated_at
	FROM reports r
	LEFT JOIN scores s ON s.report_id = r.id
	WHERE ` + where + `
	ORDER BY r.report_date DESC, r.id DESC`
}

func scanReportWithScore(row scannable) (*model.ReportWithScore, error) {
	var (
		r                         model.Report
		inputType                 string
		raw, fileName, extracted  *string
		scoreID, scoreReportID    *int64
		autoScore, finalScore     *int
		criteria                  []byte
		aiSource, provider        *string
		isOverridden              *bool
		reason                    *string
		scoreCreated, scoreUpdate *time.Time
	)
	err := row.Scan(&r.ID, &r.LocalID, &r.ReportDate, &inputType, &raw, &fileName, &extracted, &r.CreatedAt,
		&scoreID, &scoreReportID, &autoScore, &finalScore, &criteria, &aiSource, &provider,
		&isOverridden, &reason, &scoreCreated, &scoreUpdate)
	if err != nil {
		return nil, err
	}
	r.InputType = model.InputType(inputType)
	r.RawContent = deref(raw)
	r.FileName = deref(fileName)
	r.ExtractedText = deref(extracted)

	out := &model.ReportWithScore{Report: r}
	if scoreID == nil {
		return out, nil
	}
	sc := &model.Score{
		ID:             *scoreID,
		ReportID:       r.ID,
		CriteriaScores: criteria,
		AISource:       deref(aiSource),
		AIProvider:     deref(provider),
		OverrideReason: deref(reason),
	}
	if autoScore != nil {
		sc.AutoScore = *autoScore
	}
	if finalScore != nil {
		sc.FinalScore = *finalScore
	}
	if isOverridden != nil {
		sc.IsOverridden = *isOverridden
	}
	if scoreCreated != nil {
		sc.CreatedAt = *scoreCreated
	}
	if scoreUpdate != nil {
		sc.UpdatedAt = *scoreUpdate
	}
	out.Score = sc
	return out, nil
}
