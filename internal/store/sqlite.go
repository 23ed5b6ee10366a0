package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/zkcredit/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	oauth_state   TEXT NOT NULL DEFAULT '',
	realm_id      TEXT NOT NULL DEFAULT '',
	access_token  TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	token_type    TEXT NOT NULL DEFAULT '',
	expiry        DATETIME,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS proof_runs (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL DEFAULT '',
	mode        TEXT NOT NULL,
	backend     TEXT NOT NULL,
	proof       TEXT NOT NULL DEFAULT '',
	overall     TEXT NOT NULL DEFAULT 'unknown',
	status      TEXT NOT NULL,
	error_kind  TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_proof_runs_created_at ON proof_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_proof_runs_session_id ON proof_runs(session_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSession(ctx context.Context, sess *model.Session) error {
	stampSession(sess)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, oauth_state, realm_id, access_token, refresh_token, token_type, expiry, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			oauth_state = excluded.oauth_state,
			realm_id = excluded.realm_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at`,
		sess.ID, sess.OAuthState, sess.RealmID, sess.AccessToken, sess.RefreshToken, sess.TokenType,
		nullTime(sess.Expiry), sess.CreatedAt, sess.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: save session %s", sess.ID)
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, oauth_state, realm_id, access_token, refresh_token, token_type, expiry, created_at, updated_at
		 FROM sessions WHERE id = ?`,
		id,
	)
	var (
		sess   model.Session
		expiry sql.NullTime
	)
	err := row.Scan(&sess.ID, &sess.OAuthState, &sess.RealmID, &sess.AccessToken, &sess.RefreshToken,
		&sess.TokenType, &expiry, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "session %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", id)
	}
	if expiry.Valid {
		sess.Expiry = expiry.Time
	}
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete session %s", id)
	}
	return checkRowsAffected(res, "session", id)
}

func (s *SQLiteStore) CreateProofRun(ctx context.Context, run *model.ProofRun) error {
	stampRun(run)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO proof_runs (id, session_id, mode, backend, proof, overall, status, error_kind, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, string(run.Mode), run.Backend, run.Proof, run.Overall.String(),
		string(run.Status), run.ErrorKind, run.DurationMs, run.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert proof run")
}

func (s *SQLiteStore) ListProofRuns(ctx context.Context, filter RunFilter) ([]model.ProofRun, error) {
	query := `SELECT id, session_id, mode, backend, proof, overall, status, error_kind, duration_ms, created_at
		FROM proof_runs WHERE 1=1`
	var args []any
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.Mode != "" {
		query += ` AND mode = ?`
		args = append(args, string(filter.Mode))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list proof runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.ProofRun
	for rows.Next() {
		r, err := scanProofRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan proof run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate proof runs")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProofRun(row scannable) (*model.ProofRun, error) {
	var (
		r       model.ProofRun
		mode    string
		overall string
		status  string
	)
	if err := row.Scan(&r.ID, &r.SessionID, &mode, &r.Backend, &r.Proof, &overall,
		&status, &r.ErrorKind, &r.DurationMs, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Mode = model.Mode(mode)
	r.Overall = model.ParseOutcome(overall)
	r.Status = model.RunStatus(status)
	return &r, nil
}

func stampSession(sess *model.Session) {
	now := time.Now().UTC()
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
}

func stampRun(run *model.ProofRun) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
