package model

import (
	"encoding/json"
	"time"
)

// InputType is how a report reached the system.
type InputType string

const (
	InputTypeText  InputType = "text"
	InputTypePDF   InputType = "pdf"
	InputTypeExcel InputType = "excel"
)

// Valid reports whether t is a known input type.
func (t InputType) Valid() bool {
	switch t {
	case InputTypeText, InputTypePDF, InputTypeExcel:
		return true
	}
	return false
}

// Report is an uploaded inventory report. Reports are never modified.
type Report struct {
	ID            int64     `json:"id"`
	LocalID       int64     `json:"local_id"`
	ReportDate    time.Time `json:"report_date"`
	InputType     InputType `json:"input_type"`
	RawContent    string    `json:"raw_content,omitempty"`
	FileName      string    `json:"file_name,omitempty"`
	ExtractedText string    `json:"extracted_text,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Score is the scoring outcome attached to a report. FinalScore starts
// equal to AutoScore and changes only through an override.
type Score struct {
	ID             int64           `json:"id"`
	ReportID       int64           `json:"report_id"`
	AutoScore      int             `json:"auto_score"`
	FinalScore     int             `json:"final_score"`
	CriteriaScores json.RawMessage `json:"criteria_scores"`
	AISource       string          `json:"ai_source"`
	AIProvider     string          `json:"ai_provider,omitempty"`
	IsOverridden   bool            `json:"is_overridden"`
	OverrideReason string          `json:"override_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ReportWithScore pairs a report with its score, which may be missing.
type ReportWithScore struct {
	Report Report `json:"report"`
	Score  *Score `json:"score,omitempty"`
}

// AuditAction names an entry in the audit log.
type AuditAction string

const (
	AuditReportCreated AuditAction = "REPORT_CREATED"
	AuditScoreOverride AuditAction = "SCORE_OVERRIDE"
)

// AuditEntry records a change to a report or its score.
type AuditEntry struct {
	ID        int64       `json:"id"`
	ReportID  *int64      `json:"report_id,omitempty"`
	Action    AuditAction `json:"action"`
	Details   string      `json:"details,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
