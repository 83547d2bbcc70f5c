// Package api exposes the audit service over HTTP: a JSON API under /api
// and server-rendered dashboard pages.
package api

import (
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/drususdark/audit-inventory-mvp/internal/audit"
	"github.com/drususdark/audit-inventory-mvp/internal/config"
	"github.com/drususdark/audit-inventory-mvp/internal/model"
)

const rankingCacheKey = "ranking"

// Server holds the HTTP handlers and their shared state.
type Server struct {
	svc     *audit.Service
	env     string
	origins []string
	maxBody int64
	limiter *rate.Limiter
	ranking *gocache.Cache
	pages   map[string]*template.Template
	now     func() time.Time

	// rankingGen counts invalidations so a ranking computed before a write
	// is not cached after it.
	rankingMu  sync.Mutex
	rankingGen uint64
}

// NewServer creates a Server for svc configured by cfg.
func NewServer(svc *audit.Service, cfg *config.Config) (*Server, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:     svc,
		env:     cfg.Env,
		origins: cfg.Server.AllowedOrigins,
		maxBody: maxBodyBytes(cfg.Extract.MaxUploadMB),
		limiter: rate.NewLimiter(rate.Inf, 0),
		pages:   pages,
		now:     time.Now,
	}
	if cfg.Server.RateLimitRPS > 0 {
		burst := cfg.Server.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), burst)
	}
	if cfg.Server.RankingCacheSecs > 0 {
		ttl := time.Duration(cfg.Server.RankingCacheSecs) * time.Second
		s.ranking = gocache.New(ttl, 2*ttl)
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	return s, nil
}

// maxBodyBytes allows a base64-encoded upload of maxUploadMB plus JSON overhead.
func maxBodyBytes(maxUploadMB int) int64 {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	raw := int64(maxUploadMB) << 20
	return raw*4/3 + 1<<20
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Get("/", s.handleDashboardPage)
	r.Get("/local/{id}", s.handleLocalPage)
	r.Get("/upload", s.handleUploadPage)
	r.Get("/settings", s.handleSettingsPage)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limitBody)

		r.Get("/criteria", s.handleCriteria)

		r.Route("/locals", func(r chi.Router) {
			r.Get("/", s.handleListLocals)
			r.With(s.rateLimit).Post("/", s.handleCreateLocal)
			r.Get("/{id}", s.handleGetLocal)
			r.Get("/{id}/reports", s.handleLocalReports)
		})

		r.Get("/ranking", s.handleRanking)
		r.Get("/ranking/{localID}", s.handleLocalDetail)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", s.handleListReports)
			r.With(s.rateLimit).Post("/", s.handleCreateReport)
			r.Get("/{id}", s.handleGetReport)
			r.Get("/{id}/score", s.handleGetScore)
			r.With(s.rateLimit).Post("/{id}/score/override", s.handleOverrideScore)
			r.Get("/{id}/audit", s.handleAuditLog)
		})

		r.Get("/scores", s.handleListScores)
		r.With(s.rateLimit).Post("/score/preview", s.handlePreviewScore)
	})

	return r
}

func (s *Server) invalidateRanking() {
	if s.ranking == nil {
		return
	}
	s.rankingMu.Lock()
	defer s.rankingMu.Unlock()
	s.rankingGen++
	s.ranking.Delete(rankingCacheKey)
}

func (s *Server) rankingGeneration() uint64 {
	s.rankingMu.Lock()
	defer s.rankingMu.Unlock()
	return s.rankingGen
}

// storeRanking caches entries unless the ranking was invalidated after gen
// was read.
func (s *Server) storeRanking(gen uint64, entries []model.RankingEntry) bool {
	s.rankingMu.Lock()
	defer s.rankingMu.Unlock()
	if s.rankingGen != gen {
		return false
	}
	s.ranking.SetDefault(rankingCacheKey, entries)
	return true
}
