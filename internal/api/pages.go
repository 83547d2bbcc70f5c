package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/drususdark/audit-inventory-mvp/internal/model"
	"github.com/drususdark/audit-inventory-mvp/internal/scoring"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"dashboard", "local", "upload", "settings"}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("02/01/2006")
	},
	"score": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"lastScore": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.0f", *v)
	},
	"inc": func(i int) int { return i + 1 },
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(templateFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, eris.Wrapf(err, "api: parse page %s", name)
		}
		pages[name] = t
	}
	return pages, nil
}

// renderPage executes a page into a buffer first so template errors never
// produce a half-written response.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages[name].Execute(&buf, data); err != nil {
		zap.L().Error("api: render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		zap.L().Warn("api: write page", zap.String("page", name), zap.String("path", r.URL.Path), zap.Error(err))
	}
}

type dashboardPage struct {
	Title   string
	Ranking []model.RankingEntry
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	entries, err := s.cachedRanking(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.renderPage(w, r, "dashboard", dashboardPage{Title: "Ranking de locales", Ranking: entries})
}

type localPage struct {
	Title  string
	Detail *model.LocalDetail
	Chart  chart
}

func (s *Server) handleLocalPage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := s.svc.LocalDetail(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.renderPage(w, r, "local", localPage{
		Title:  detail.Local.Name,
		Detail: detail,
		Chart:  evolutionChart(detail.Evolution),
	})
}

type formPage struct {
	Title    string
	Locals   []model.Local
	Criteria []scoring.Criterion
}

func (s *Server) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	locals, err := s.svc.ListLocals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.renderPage(w, r, "upload", formPage{Title: "Subir informe", Locals: locals})
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	locals, err := s.svc.ListLocals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.renderPage(w, r, "settings", formPage{Title: "Configuración", Locals: locals, Criteria: scoring.Criteria()})
}

// chart is an SVG polyline of a score series on a 0-100 scale.
type chart struct {
	Width, Height int
	Points        string
	Empty         bool
}

const (
	chartWidth  = 600
	chartHeight = 200
	chartPad    = 10
)

func evolutionChart(points []model.EvolutionPoint) chart {
	c := chart{Width: chartWidth, Height: chartHeight, Empty: len(points) == 0}
	if c.Empty {
		return c
	}

	innerW := float64(chartWidth - 2*chartPad)
	innerH := float64(chartHeight - 2*chartPad)
	coords := make([]string, len(points))
	for i, p := range points {
		x := float64(chartPad) + innerW/2
		if len(points) > 1 {
			x = float64(chartPad) + innerW*float64(i)/float64(len(points)-1)
		}
		y := float64(chartPad) + innerH*(1-p.Score/100)
		coords[i] = fmt.Sprintf("%.1f,%.1f", x, y)
	}
	c.Points = strings.Join(coords, " ")
	return c
}
