// Package audit runs the report workflow: upload, extraction, scoring,
// persistence, manual overrides and the cross-store ranking.
package audit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/drususdark/audit-inventory-mvp/internal/extract"
	"github.com/drususdark/audit-inventory-mvp/internal/model"
	"github.com/drususdark/audit-inventory-mvp/internal/scoring"
	"github.com/drususdark/audit-inventory-mvp/internal/store"
)

// TextExtractor reads the text of an uploaded file.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string, fileType extract.FileType) (string, error)
}

// ValidationError reports a malformed request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("audit: invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Option configures a Service.
type Option func(*Service)

// WithTempDir sets where uploaded files are staged during extraction.
func WithTempDir(dir string) Option {
	return func(s *Service) { s.tempDir = dir }
}

// WithClock replaces time.Now for default report dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service coordinates the store, the extractor and the scoring strategy.
type Service struct {
	store     store.Store
	scorer    scoring.Scorer
	extractor TextExtractor
	tempDir   string
	now       func() time.Time
}

// New creates a Service.
func New(st store.Store, scorer scoring.Scorer, extractor TextExtractor, opts ...Option) *Service {
	s := &Service{
		store:     st,
		scorer:    scorer,
		extractor: extractor,
		tempDir:   os.TempDir(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadInput is a report as submitted by a user. Content holds the report
// text for text input and the base64-encoded file otherwise.
type UploadInput struct {
	LocalID    int64           `json:"local_id"`
	ReportDate time.Time       `json:"report_date"`
	InputType  model.InputType `json:"input_type"`
	Content    string          `json:"content"`
	FileName   string          `json:"file_name,omitempty"`
}

// ReportOutcome is the result of a successful upload.
type ReportOutcome struct {
	Report  *model.Report    `json:"report"`
	Score   *model.Score     `json:"score"`
	Scoring scoring.Response `json:"scoring"`
}

// CreateReport scores an uploaded report and stores it with its score.
// Extraction failures are returned; scoring itself never fails.
func (s *Service) CreateReport(ctx context.Context, in UploadInput) (*ReportOutcome, error) {
	if in.LocalID <= 0 {
		return nil, invalid("local_id", "must be a positive id")
	}
	if !in.InputType.Valid() {
		return nil, invalid("input_type", "%q must be text, pdf or excel", in.InputType)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, invalid("content", "must not be empty")
	}
	if _, err := s.store.GetLocal(ctx, in.LocalID); err != nil {
		return nil, err
	}

	report := &model.Report{
		LocalID:    in.LocalID,
		ReportDate: in.ReportDate,
		InputType:  in.InputType,
		FileName:   in.FileName,
	}
	if report.ReportDate.IsZero() {
		report.ReportDate = s.now()
	}

	var text string
	if in.InputType == model.InputTypeText {
		text = in.Content
		report.RawContent = in.Content
	} else {
		var err error
		text, err = s.extractUpload(ctx, in)
		if err != nil {
			return nil, err
		}
		report.ExtractedText = text
	}

	resp := s.score(ctx, text)
	sc, err := newScore(resp)
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("Informe creado (%s). Puntuación automática: %d (%s)", in.InputType, sc.AutoScore, resp.Source)
	if err := s.store.CreateReportWithScore(ctx, report, sc, details); err != nil {
		return nil, eris.Wrap(err, "audit: save report")
	}

	zap.L().Info("audit: report created",
		zap.Int64("report_id", report.ID),
		zap.Int64("local_id", report.LocalID),
		zap.String("input_type", string(report.InputType)),
		zap.Int("auto_score", sc.AutoScore),
		zap.String("source", string(resp.Source)),
	)
	return &ReportOutcome{Report: report, Score: sc, Scoring: resp}, nil
}

// extractUpload stages a base64 upload in a temp file and extracts its text.
// The temp file is removed whatever the outcome.
func (s *Service) extractUpload(ctx context.Context, in UploadInput) (string, error) {
	if extract.IsLegacyWorkbook(in.FileName) {
		_, err := extract.TypeFromFileName(in.FileName)
		return "", err
	}
	data, err := decodeBase64(in.Content)
	if err != nil {
		return "", invalid("content", "not valid base64: %v", err)
	}

	fileType := extract.FileTypePDF
	ext := "pdf"
	if in.InputType == model.InputTypeExcel {
		fileType = extract.FileTypeExcel
		ext = "xlsx"
	}
	if e := strings.TrimPrefix(strings.ToLower(filepath.Ext(in.FileName)), "."); e != "" {
		ext = e
	}

	path, err := extract.SaveTemp(s.tempDir, data, ext)
	if err != nil {
		return "", eris.Wrap(err, "audit: stage upload")
	}
	defer extract.DeleteTemp(path)

	return s.extractor.ExtractText(ctx, path, fileType)
}

// decodeBase64 accepts plain base64 or a data URL.
func decodeBase64(content string) ([]byte, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "data:") {
		if i := strings.Index(content, ","); i >= 0 {
			content = content[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(content)
}

func (s *Service) score(ctx context.Context, text string) scoring.Response {
	resp := s.scorer.ScoreReport(ctx, text)
	if !resp.Success || resp.Result == nil {
		fallback := scoring.ScoreHeuristically(text)
		fallback.Error = resp.Error
		return fallback
	}
	return resp
}

func newScore(resp scoring.Response) (*model.Score, error) {
	criteria, err := json.Marshal(resp.Result.CriteriaScores)
	if err != nil {
		return nil, eris.Wrap(err, "audit: marshal criteria scores")
	}
	auto := int(math.Round(resp.Result.TotalScore))
	return &model.Score{
		AutoScore:      auto,
		FinalScore:     auto,
		CriteriaScores: criteria,
		AISource:       string(resp.Source),
		AIProvider:     resp.Provider,
	}, nil
}

// PreviewScore scores text without storing anything.
func (s *Service) PreviewScore(ctx context.Context, text string) (scoring.Response, error) {
	if strings.TrimSpace(text) == "" {
		return scoring.Response{}, invalid("content", "must not be empty")
	}
	return s.score(ctx, text), nil
}

// ScoreFile extracts and scores a file on disk without storing anything.
// Files that are neither PDF nor spreadsheet are read as plain text.
func (s *Service) ScoreFile(ctx context.Context, path string) (scoring.Response, error) {
	text, err := s.readFile(ctx, path)
	if err != nil {
		return scoring.Response{}, err
	}
	return s.PreviewScore(ctx, text)
}

func (s *Service) readFile(ctx context.Context, path string) (string, error) {
	fileType, err := extract.TypeFromFileName(path)
	if err != nil {
		if extract.IsLegacyWorkbook(path) {
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return "", eris.Wrapf(extract.ErrNotFound, "path %s", path)
			}
			return "", eris.Wrapf(err, "audit: read %s", path)
		}
		return string(data), nil
	}
	return s.extractor.ExtractText(ctx, path, fileType)
}

// ImportFile uploads a file on disk as a report of localID.
func (s *Service) ImportFile(ctx context.Context, localID int64, path string, reportDate time.Time) (*ReportOutcome, error) {
	if extract.IsLegacyWorkbook(path) {
		_, err := extract.TypeFromFileName(path)
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(extract.ErrNotFound, "path %s", path)
		}
		return nil, eris.Wrapf(err, "audit: read %s", path)
	}

	in := UploadInput{
		LocalID:    localID,
		ReportDate: reportDate,
		FileName:   filepath.Base(path),
	}
	switch fileType, err := extract.TypeFromFileName(path); {
	case err != nil:
		in.InputType = model.InputTypeText
		in.Content = string(data)
		in.FileName = ""
	case fileType == extract.FileTypePDF:
		in.InputType = model.InputTypePDF
		in.Content = base64.StdEncoding.EncodeToString(data)
	default:
		in.InputType = model.InputTypeExcel
		in.Content = base64.StdEncoding.EncodeToString(data)
	}
	return s.CreateReport(ctx, in)
}

// OverrideScore replaces the final score of a report and records why.
func (s *Service) OverrideScore(ctx context.Context, reportID int64, finalScore int, reason string) (*model.Score, error) {
	if finalScore < 0 || finalScore > 100 {
		return nil, invalid("final_score", "%d must be between 0 and 100", finalScore)
	}
	reason = strings.TrimSpace(reason)
	shown := reason
	if shown == "" {
		shown = "No especificada"
	}
	details := fmt.Sprintf("Puntuación modificada a %d. Razón: %s", finalScore, shown)

	sc, err := s.store.OverrideScore(ctx, reportID, finalScore, reason, details)
	if err != nil {
		return nil, err
	}
	zap.L().Info("audit: score overridden",
		zap.Int64("report_id", reportID),
		zap.Int("auto_score", sc.AutoScore),
		zap.Int("final_score", finalScore),
	)
	return sc, nil
}

// Ranking returns every local ordered by average final score (highest
// first), then by name. Locals without scored reports average 0.
func (s *Service) Ranking(ctx context.Context) ([]model.RankingEntry, error) {
	locals, err := s.store.ListLocals(ctx)
	if err != nil {
		return nil, err
	}
	reports, err := s.store.ListReportsWithScores(ctx, 0)
	if err != nil {
		return nil, err
	}

	byLocal := make(map[int64][]model.ReportWithScore, len(locals))
	for _, rs := range reports {
		byLocal[rs.Report.LocalID] = append(byLocal[rs.Report.LocalID], rs)
	}

	entries := make([]model.RankingEntry, 0, len(locals))
	for _, l := range locals {
		entries = append(entries, rankLocal(l, byLocal[l.ID]))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].AvgScore != entries[j].AvgScore {
			return entries[i].AvgScore > entries[j].AvgScore
		}
		return entries[i].Local.Name < entries[j].Local.Name
	})
	return entries, nil
}

// rankLocal summarizes reports, which are ordered newest first.
func rankLocal(l model.Local, reports []model.ReportWithScore) model.RankingEntry {
	entry := model.RankingEntry{Local: l, ReportsCount: len(reports)}

	sum := decimal.Zero
	n := 0
	for _, rs := range reports {
		if rs.Score == nil {
			continue
		}
		if entry.LastScore == nil {
			last := float64(rs.Score.FinalScore)
			entry.LastScore = &last
		}
		sum = sum.Add(decimal.NewFromInt(int64(rs.Score.FinalScore)))
		n++
	}
	if n > 0 {
		entry.AvgScore = sum.Div(decimal.NewFromInt(int64(n))).Round(1).InexactFloat64()
	}
	return entry
}

// LocalDetail returns a local, its reports newest first and its score
// evolution oldest first.
func (s *Service) LocalDetail(ctx context.Context, localID int64) (*model.LocalDetail, error) {
	l, err := s.store.GetLocal(ctx, localID)
	if err != nil {
		return nil, err
	}
	reports, err := s.store.ListReportsWithScores(ctx, localID)
	if err != nil {
		return nil, err
	}

	detail := &model.LocalDetail{
		Local:     *l,
		Reports:   reports,
		Evolution: []model.EvolutionPoint{},
	}
	if detail.Reports == nil {
		detail.Reports = []model.ReportWithScore{}
	}
	for i := len(reports) - 1; i >= 0; i-- {
		rs := reports[i]
		if rs.Score == nil {
			continue
		}
		detail.Evolution = append(detail.Evolution, model.EvolutionPoint{
			Date:     rs.Report.ReportDate,
			ReportID: rs.Report.ID,
			Score:    float64(rs.Score.FinalScore),
		})
	}
	return detail, nil
}

// CreateLocal registers a store.
func (s *Service) CreateLocal(ctx context.Context, name, address string) (*model.Local, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "must not be empty")
	}
	return s.store.CreateLocal(ctx, name, strings.TrimSpace(address))
}

func (s *Service) GetLocal(ctx context.Context, id int64) (*model.Local, error) {
	return s.store.GetLocal(ctx, id)
}

func (s *Service) ListLocals(ctx context.Context) ([]model.Local, error) {
	return s.store.ListLocals(ctx)
}

func (s *Service) GetReport(ctx context.Context, id int64) (*model.Report, error) {
	return s.store.GetReport(ctx, id)
}

// ListReports lists reports, optionally of one local, which must exist.
func (s *Service) ListReports(ctx context.Context, filter store.ReportFilter) ([]model.Report, error) {
	if filter.LocalID != 0 {
		if _, err := s.store.GetLocal(ctx, filter.LocalID); err != nil {
			return nil, err
		}
	}
	return s.store.ListReports(ctx, filter)
}

func (s *Service) GetScore(ctx context.Context, reportID int64) (*model.Score, error) {
	return s.store.GetScoreByReport(ctx, reportID)
}

func (s *Service) ListScores(ctx context.Context) ([]model.Score, error) {
	return s.store.ListScores(ctx)
}

// AuditLog lists the audit entries of a report, which must exist.
func (s *Service) AuditLog(ctx context.Context, reportID int64) ([]model.AuditEntry, error) {
	if _, err := s.store.GetReport(ctx, reportID); err != nil {
		return nil, err
	}
	return s.store.ListAuditEntries(ctx, reportID)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
