// Package ledger persists per-run statistics in a bounded history. The
// ledger is append-only from the pipeline's perspective; each append prunes
// rows beyond the configured cap so the store never grows unbounded.
package ledger

import (
	"context"

	"github.com/firwatch/notamwatch/internal/model"
)

// DefaultCap is the number of runs retained when no cap is configured.
const DefaultCap = 250

// Store records run statistics and serves the recent history.
type Store interface {
	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// Append records one run and prunes rows beyond the cap, oldest first.
	Append(ctx context.Context, stats model.RunStats) error

	// List returns up to limit runs, newest first. limit <= 0 means all
	// retained rows.
	List(ctx context.Context, limit int) ([]model.RunStats, error)

	Close() error
}
