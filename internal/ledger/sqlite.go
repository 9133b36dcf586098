package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/firwatch/notamwatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	cap int
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. cap <= 0 falls back to DefaultCap.
func NewSQLite(dsn string, cap int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "ledger: sqlite exec %s", pragma)
		}
	}
	if cap <= 0 {
		cap = DefaultCap
	}
	return &SQLiteStore{db: db, cap: cap}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	ran_at      DATETIME NOT NULL,
	active      INTEGER NOT NULL,
	new_records INTEGER NOT NULL,
	expired     INTEGER NOT NULL,
	buffered    INTEGER NOT NULL,
	notified    INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_ran_at ON runs(ran_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "ledger: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, stats model.RunStats) error {
	if stats.ID == "" {
		stats.ID = uuid.New().String()
	}
	if stats.Timestamp.IsZero() {
		stats.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "ledger: sqlite begin")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, ran_at, active, new_records, expired, buffered, notified, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stats.ID, stats.Timestamp.UTC(), stats.Active, stats.New, stats.Expired,
		stats.Buffered, stats.Notified, stats.DurationMS,
	)
	if err != nil {
		return eris.Wrap(err, "ledger: sqlite insert run")
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY ran_at DESC, id DESC LIMIT ?
		)`,
		s.cap,
	)
	if err != nil {
		return eris.Wrap(err, "ledger: sqlite prune")
	}

	return eris.Wrap(tx.Commit(), "ledger: sqlite commit")
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.RunStats, error) {
	if limit <= 0 || limit > s.cap {
		limit = s.cap
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ran_at, active, new_records, expired, buffered, notified, duration_ms
		 FROM runs ORDER BY ran_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: sqlite list")
	}
	defer rows.Close()

	var out []model.RunStats
	for rows.Next() {
		var st model.RunStats
		if err := rows.Scan(&st.ID, &st.Timestamp, &st.Active, &st.New,
			&st.Expired, &st.Buffered, &st.Notified, &st.DurationMS); err != nil {
			return nil, eris.Wrap(err, "ledger: sqlite scan run")
		}
		st.Timestamp = st.Timestamp.UTC()
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "ledger: sqlite rows")
}
