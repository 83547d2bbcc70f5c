package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/drususdark/audit-inventory-mvp/internal/db"
	"github.com/drususdark/audit-inventory-mvp/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS locals (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	address    TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reports (
	id             BIGSERIAL PRIMARY KEY,
	local_id       BIGINT NOT NULL REFERENCES locals(id),
	report_date    TIMESTAMPTZ NOT NULL,
	input_type     TEXT NOT NULL CHECK (input_type IN ('text', 'pdf', 'excel')),
	raw_content    TEXT,
	file_name      TEXT,
	extracted_text TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scores (
	id              BIGSERIAL PRIMARY KEY,
	report_id       BIGINT NOT NULL UNIQUE REFERENCES reports(id),
	auto_score      INTEGER NOT NULL,
	final_score     INTEGER NOT NULL,
	criteria_scores JSONB NOT NULL,
	ai_source       TEXT NOT NULL,
	ai_provider     TEXT,
	is_overridden   BOOLEAN NOT NULL DEFAULT FALSE,
	override_reason TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         BIGSERIAL PRIMARY KEY,
	report_id  BIGINT REFERENCES reports(id),
	action     TEXT NOT NULL,
	details    TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reports_local_date ON reports(local_id, report_date DESC);
CREATE INDEX IF NOT EXISTS idx_audit_log_report_id ON audit_log(report_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateLocal(ctx context.Context, name, address string) (*model.Local, error) {
	now := time.Now().UTC()
	l := &model.Local{Name: name, Address: address, CreatedAt: now, UpdatedAt: now}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO locals (name, address, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		name, nullable(address), now, now,
	).Scan(&l.ID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert local")
	}
	return l, nil
}

func (s *PostgresStore) GetLocal(ctx context.Context, id int64) (*model.Local, error) {
	l, err := scanLocal(s.pool.QueryRow(ctx, `SELECT `+localColumns+` FROM locals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "local %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get local %d", id)
	}
	return l, nil
}

func (s *PostgresStore) ListLocals(ctx context.Context) ([]model.Local, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+localColumns+` FROM locals ORDER BY name, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list locals")
	}
	defer rows.Close()

	var locals []model.Local
	for rows.Next() {
		l, err := scanLocal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan local")
		}
		locals = append(locals, *l)
	}
	return locals, eris.Wrap(rows.Err(), "postgres: iterate locals")
}

func (s *PostgresStore) CreateReportWithScore(ctx context.Context, r *model.Report, sc *model.Score, details string) error {
	now := time.Now().UTC()
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO reports (local_id, report_date, input_type, raw_content, file_name, extracted_text, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			r.LocalID, r.ReportDate.UTC(), string(r.InputType), nullable(r.RawContent),
			nullable(r.FileName), nullable(r.ExtractedText), now,
		).Scan(&r.ID)
		if err != nil {
			return eris.Wrap(err, "postgres: insert report")
		}
		r.CreatedAt = now

		sc.ReportID = r.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO scores (report_id, auto_score, final_score, criteria_scores, ai_source, ai_provider, is_overridden, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8) RETURNING id`,
			sc.ReportID, sc.AutoScore, sc.FinalScore, string(sc.CriteriaScores), sc.AISource,
			nullable(sc.AIProvider), now, now,
		).Scan(&sc.ID)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert score for report %d", r.ID)
		}
		sc.CreatedAt, sc.UpdatedAt = now, now

		return insertAuditPostgres(ctx, tx, r.ID, model.AuditReportCreated, details, now)
	})
}

func insertAuditPostgres(ctx context.Context, tx pgx.Tx, reportID int64, action model.AuditAction, details string, at time.Time) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO audit_log (report_id, action, details, created_at) VALUES ($1, $2, $3, $4)`,
		reportID, string(action), nullable(details), at,
	)
	return eris.Wrapf(err, "postgres: insert audit entry %s", action)
}

func (s *PostgresStore) GetReport(ctx context.Context, id int64) (*model.Report, error) {
	r, err := scanReport(s.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "report %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get report %d", id)
	}
	return r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE ($1::bigint = 0 OR local_id = $1) ORDER BY report_date DESC, id DESC`
	args := []any{filter.LocalID}
	if filter.Limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: iterate reports")
}

func (s *PostgresStore) ListReportsWithScores(ctx context.Context, localID int64) ([]model.ReportWithScore, error) {
	rows, err := s.pool.Query(ctx, reportsWithScoresQuery(`$1::bigint = 0 OR r.local_id = $1`), localID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports with scores")
	}
	defer rows.Close()

	var out []model.ReportWithScore
	for rows.Next() {
		rs, err := scanReportWithScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan report with score")
		}
		out = append(out, *rs)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate reports with scores")
}

func (s *PostgresStore) GetScoreByReport(ctx context.Context, reportID int64) (*model.Score, error) {
	sc, err := scanScore(s.pool.QueryRow(ctx, `SELECT `+scoreColumns+` FROM scores WHERE report_id = $1`, reportID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "score for report %d", reportID)
		}
		return nil, eris.Wrapf(err, "postgres: get score for report %d", reportID)
	}
	return sc, nil
}

func (s *PostgresStore) ListScores(ctx context.Context) ([]model.Score, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+scoreColumns+` FROM scores ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scores")
	}
	defer rows.Close()

	var scores []model.Score
	for rows.Next() {
		sc, err := scanScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		scores = append(scores, *sc)
	}
	return scores, eris.Wrap(rows.Err(), "postgres: iterate scores")
}

func (s *PostgresStore) OverrideScore(ctx context.Context, reportID int64, finalScore int, reason, details string) (*model.Score, error) {
	var out *model.Score
	now := time.Now().UTC()
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		sc, err := scanScore(tx.QueryRow(ctx,
			`UPDATE scores SET final_score = $1, is_overridden = TRUE, override_reason = $2, updated_at = $3
			 WHERE report_id = $4 RETURNING `+scoreColumns,
			finalScore, nullable(reason), now, reportID,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return eris.Wrapf(ErrNotFound, "score for report %d", reportID)
			}
			return eris.Wrapf(err, "postgres: override score for report %d", reportID)
		}
		out = sc
		return insertAuditPostgres(ctx, tx, reportID, model.AuditScoreOverride, details, now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListAuditEntries(ctx context.Context, reportID int64) ([]model.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auditColumns+` FROM audit_log WHERE ($1::bigint = 0 OR report_id = $1) ORDER BY created_at, id`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit entries")
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit entry")
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate audit entries")
}
