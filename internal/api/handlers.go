package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/drususdark/audit-inventory-mvp/internal/audit"
	"github.com/drususdark/audit-inventory-mvp/internal/model"
	"github.com/drususdark/audit-inventory-mvp/internal/scoring"
	"github.com/drususdark/audit-inventory-mvp/internal/store"
)

type healthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
	Database    string    `json:"database"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Timestamp:   s.now().UTC(),
		Environment: s.env,
		Database:    "connected",
	}
	status := http.StatusOK
	if err := s.svc.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleCriteria(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, scoring.Criteria())
}

// Locals

type createLocalRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (s *Server) handleListLocals(w http.ResponseWriter, r *http.Request) {
	locals, err := s.svc.ListLocals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(locals))
}

func (s *Server) handleCreateLocal(w http.ResponseWriter, r *http.Request) {
	var req createLocalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.svc.CreateLocal(r.Context(), req.Name, req.Address)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateRanking()
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleGetLocal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.svc.GetLocal(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleLocalReports(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	reports, err := s.svc.ListReports(r.Context(), store.ReportFilter{LocalID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(reports))
}

// Ranking

func (s *Server) cachedRanking(r *http.Request) ([]model.RankingEntry, error) {
	if s.ranking == nil {
		entries, err := s.svc.Ranking(r.Context())
		return orEmpty(entries), err
	}
	if v, ok := s.ranking.Get(rankingCacheKey); ok {
		return v.([]model.RankingEntry), nil
	}

	gen := s.rankingGeneration()
	entries, err := s.svc.Ranking(r.Context())
	if err != nil {
		return nil, err
	}
	entries = orEmpty(entries)
	s.storeRanking(gen, entries)
	return entries, nil
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	entries, err := s.cachedRanking(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLocalDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "localID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := s.svc.LocalDetail(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Reports

type createReportRequest struct {
	LocalID    int64           `json:"local_id"`
	ReportDate string          `json:"report_date"`
	InputType  model.InputType `json:"input_type"`
	Content    string          `json:"content"`
	FileName   string          `json:"file_name"`
}

// parseReportDate accepts RFC 3339 timestamps and plain dates. Empty means now.
func parseReportDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, &audit.ValidationError{Field: "report_date", Message: "must be YYYY-MM-DD or RFC 3339"}
	}
	return t, nil
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseReportDate(req.ReportDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.svc.CreateReport(r.Context(), audit.UploadInput{
		LocalID:    req.LocalID,
		ReportDate: date,
		InputType:  req.InputType,
		Content:    req.Content,
		FileName:   req.FileName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateRanking()
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	var filter store.ReportFilter
	var err error
	if filter.LocalID, err = queryInt(r, "local_id"); err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter.Limit, filter.Offset = int(limit), int(offset)

	reports, err := s.svc.ListReports(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(reports))
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.svc.GetReport(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sc, err := s.svc.GetScore(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

type overrideRequest struct {
	FinalScore     *int   `json:"final_score"`
	OverrideReason string `json:"override_reason"`
}

func (s *Server) handleOverrideScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.FinalScore == nil {
		writeError(w, r, &audit.ValidationError{Field: "final_score", Message: "is required"})
		return
	}

	sc, err := s.svc.OverrideScore(r.Context(), id, *req.FinalScore, req.OverrideReason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateRanking()
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.svc.AuditLog(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(entries))
}

func (s *Server) handleListScores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.svc.ListScores(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(scores))
}

type previewRequest struct {
	Content string `json:"content"`
}

func (s *Server) handlePreviewScore(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.svc.PreviewScore(r.Context(), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
