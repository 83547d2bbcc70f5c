package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/drususdark/audit-inventory-mvp/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas are applied by the driver to every pooled connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// sqliteDSN appends the connection pragmas as _pragma query parameters.
func sqliteDSN(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// NewSQLite opens a SQLite database at the given path in WAL mode with
// foreign keys enforced on every connection.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "sqlite: connect %s", dsn)
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS locals (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	address    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reports (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	local_id       INTEGER NOT NULL REFERENCES locals(id),
	report_date    DATETIME NOT NULL,
	input_type     TEXT NOT NULL CHECK (input_type IN ('text', 'pdf', 'excel')),
	raw_content    TEXT,
	file_name      TEXT,
	extracted_text TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scores (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	report_id       INTEGER NOT NULL UNIQUE REFERENCES reports(id),
	auto_score      INTEGER NOT NULL,
	final_score     INTEGER NOT NULL,
	criteria_scores TEXT NOT NULL,
	ai_source       TEXT NOT NULL,
	ai_provider     TEXT,
	is_overridden   BOOLEAN NOT NULL DEFAULT 0,
	override_reason TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	report_id  INTEGER REFERENCES reports(id),
	action     TEXT NOT NULL,
	details    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reports_local_date ON reports(local_id, report_date);
CREATE INDEX IF NOT EXISTS idx_audit_log_report_id ON audit_log(report_id);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLocal(ctx context.Context, name, address string) (*model.Local, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO locals (name, address, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, nullable(address), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert local")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: local id")
	}
	return &model.Local{ID: id, Name: name, Address: address, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *SQLiteStore) GetLocal(ctx context.Context, id int64) (*model.Local, error) {
	l, err := scanLocal(s.db.QueryRowContext(ctx, `SELECT `+localColumns+` FROM locals WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "local %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get local %d", id)
	}
	return l, nil
}

func (s *SQLiteStore) ListLocals(ctx context.Context) ([]model.Local, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+localColumns+` FROM locals ORDER BY name, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list locals")
	}
	defer rows.Close()

	var locals []model.Local
	for rows.Next() {
		l, err := scanLocal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan local")
		}
		locals = append(locals, *l)
	}
	return locals, eris.Wrap(rows.Err(), "sqlite: iterate locals")
}

func (s *SQLiteStore) CreateReportWithScore(ctx context.Context, r *model.Report, sc *model.Score, details string) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO reports (local_id, report_date, input_type, raw_content, file_name, extracted_text, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.LocalID, r.ReportDate.UTC(), string(r.InputType), nullable(r.RawContent),
			nullable(r.FileName), nullable(r.ExtractedText), now,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert report")
		}
		if r.ID, err = res.LastInsertId(); err != nil {
			return eris.Wrap(err, "sqlite: report id")
		}
		r.CreatedAt = now

		sc.ReportID = r.ID
		res, err = tx.ExecContext(ctx,
			`INSERT INTO scores (report_id, auto_score, final_score, criteria_scores, ai_source, ai_provider, is_overridden, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			sc.ReportID, sc.AutoScore, sc.FinalScore, string(sc.CriteriaScores), sc.AISource,
			nullable(sc.AIProvider), now, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert score for report %d", r.ID)
		}
		if sc.ID, err = res.LastInsertId(); err != nil {
			return eris.Wrap(err, "sqlite: score id")
		}
		sc.CreatedAt, sc.UpdatedAt = now, now

		return insertAuditSQLite(ctx, tx, r.ID, model.AuditReportCreated, details, now)
	})
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit transaction")
}

func insertAuditSQLite(ctx context.Context, tx *sql.Tx, reportID int64, action model.AuditAction, details string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (report_id, action, details, created_at) VALUES (?, ?, ?, ?)`,
		reportID, string(action), nullable(details), at,
	)
	return eris.Wrapf(err, "sqlite: insert audit entry %s", action)
}

func (s *SQLiteStore) GetReport(ctx context.Context, id int64) (*model.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "report %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get report %d", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE (? = 0 OR local_id = ?) ORDER BY report_date DESC, id DESC`
	args := []any{filter.LocalID, filter.LocalID}
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: iterate reports")
}

func (s *SQLiteStore) ListReportsWithScores(ctx context.Context, localID int64) ([]model.ReportWithScore, error) {
	rows, err := s.db.QueryContext(ctx, reportsWithScoresQuery(`? = 0 OR r.local_id = ?`), localID, localID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports with scores")
	}
	defer rows.Close()

	var out []model.ReportWithScore
	for rows.Next() {
		rs, err := scanReportWithScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report with score")
		}
		out = append(out, *rs)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate reports with scores")
}

func (s *SQLiteStore) GetScoreByReport(ctx context.Context, reportID int64) (*model.Score, error) {
	sc, err := scanScore(s.db.QueryRowContext(ctx, `SELECT `+scoreColumns+` FROM scores WHERE report_id = ?`, reportID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "score for report %d", reportID)
		}
		return nil, eris.Wrapf(err, "sqlite: get score for report %d", reportID)
	}
	return sc, nil
}

func (s *SQLiteStore) ListScores(ctx context.Context) ([]model.Score, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scoreColumns+` FROM scores ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scores")
	}
	defer rows.Close()

	var scores []model.Score
	for rows.Next() {
		sc, err := scanScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		scores = append(scores, *sc)
	}
	return scores, eris.Wrap(rows.Err(), "sqlite: iterate scores")
}

func (s *SQLiteStore) OverrideScore(ctx context.Context, reportID int64, finalScore int, reason, details string) (*model.Score, error) {
	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE scores SET final_score = ?, is_overridden = 1, override_reason = ?, updated_at = ? WHERE report_id = ?`,
			finalScore, nullable(reason), now, reportID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: override score for report %d", reportID)
		}
		if err := checkRowsAffected(res, "score for report", reportID); err != nil {
			return err
		}
		return insertAuditSQLite(ctx, tx, reportID, model.AuditScoreOverride, details, now)
	})
	if err != nil {
		return nil, err
	}
	return s.GetScoreByReport(ctx, reportID)
}

func (s *SQLiteStore) ListAuditEntries(ctx context.Context, reportID int64) ([]model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_log WHERE (? = 0 OR report_id = ?) ORDER BY created_at, id`,
		reportID, reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit entries")
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit entry")
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate audit entries")
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}
