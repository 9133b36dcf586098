package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/firwatch/notamwatch/internal/model"
)

// Pool is the subset of pgxpool.Pool the ledger uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
	cap  int
}

// NewPostgres creates a PostgresStore with a connection pool. cap <= 0 falls
// back to DefaultCap.
func NewPostgres(ctx context.Context, connString string, cap int) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: postgres parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: postgres connect")
	}
	if cap <= 0 {
		cap = DefaultCap
	}
	return &PostgresStore{pool: pool, cap: cap}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	ran_at      TIMESTAMPTZ NOT NULL,
	active      INTEGER NOT NULL,
	new_records INTEGER NOT NULL,
	expired     INTEGER NOT NULL,
	buffered    INTEGER NOT NULL,
	notified    INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_ran_at ON runs(ran_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "ledger: postgres migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, stats model.RunStats) error {
	if stats.ID == "" {
		stats.ID = uuid.New().String()
	}
	if stats.Timestamp.IsZero() {
		stats.Timestamp = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, ran_at, active, new_records, expired, buffered, notified, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		stats.ID, stats.Timestamp.UTC(), stats.Active, stats.New, stats.Expired,
		stats.Buffered, stats.Notified, stats.DurationMS,
	)
	if err != nil {
		return eris.Wrap(err, "ledger: postgres insert run")
	}

	_, err = s.pool.Exec(ctx,
		`DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY ran_at DESC, id DESC LIMIT $1
		)`,
		s.cap,
	)
	return eris.Wrap(err, "ledger: postgres prune")
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]model.RunStats, error) {
	if limit <= 0 || limit > s.cap {
		limit = s.cap
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, ran_at, active, new_records, expired, buffered, notified, duration_ms
		 FROM runs ORDER BY ran_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: postgres list")
	}
	defer rows.Close()

	var out []model.RunStats
	for rows.Next() {
		var st model.RunStats
		if err := rows.Scan(&st.ID, &st.Timestamp, &st.Active, &st.New,
			&st.Expired, &st.Buffered, &st.Notified, &st.DurationMS); err != nil {
			return nil, eris.Wrap(err, "ledger: postgres scan run")
		}
		st.Timestamp = st.Timestamp.UTC()
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "ledger: postgres rows")
}
