package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/drususdark/audit-inventory-mvp/internal/audit"
	"github.com/drususdark/audit-inventory-mvp/internal/extract"
	"github.com/drususdark/audit-inventory-mvp/internal/ocr"
	"github.com/drususdark/audit-inventory-mvp/internal/scoring"
	"github.com/drususdark/audit-inventory-mvp/internal/store"
)

// auditEnv holds the store and the service built on top of it.
type auditEnv struct {
	Store   store.Store
	Service *audit.Service
}

// Close releases resources held by the environment.
func (e *auditEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initAudit opens and migrates the store, then wires the extractor and
// scorer into an audit.Service. Callers should defer env.Close().
func initAudit(ctx context.Context) (*auditEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	svc, err := newService(st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &auditEnv{Store: st, Service: svc}, nil
}

// newService builds the service from cfg. st may be nil for commands that
// never touch the database.
func newService(st store.Store) (*audit.Service, error) {
	pdf, err := ocr.NewExtractor(cfg.Extract.OCR)
	if err != nil {
		return nil, err
	}

	scorer, err := scoring.NewScorer(cfg.Scoring, cfg.AI)
	if err != nil {
		return nil, err
	}

	return audit.New(st, scorer, extract.New(pdf), audit.WithTempDir(cfg.Extract.TempDir)), nil
}
