// Package pipeline orchestrates one monitor run: load state, fetch the feed
// snapshot, reconcile, enrich, notify and persist.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/firwatch/notamwatch/internal/config"
	"github.com/firwatch/notamwatch/internal/enrich"
	"github.com/firwatch/notamwatch/internal/ledger"
	"github.com/firwatch/notamwatch/internal/model"
	"github.com/firwatch/notamwatch/internal/recon"
	"github.com/firwatch/notamwatch/internal/state"
	"github.com/firwatch/notamwatch/pkg/avwx"
)

// Notifier is the outbound-message surface the pipeline depends on.
type Notifier interface {
	NotifyNew(ctx context.Context, raw model.RawRecord, dec *model.DecodedRecord, explanation string, severity model.Severity, provisional bool) error
	NotifyUpdate(ctx context.Context, id model.Identity, rec *model.ExplanationRecord) error
}

// Pipeline wires one run of the monitor.
type Pipeline struct {
	cfg      *config.Config
	feed     avwx.Client
	coord    *enrich.Coordinator
	notifier Notifier
	ledger   ledger.Store
	now      func() time.Time
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, feed avwx.Client, coord *enrich.Coordinator, notifier Notifier, led ledger.Store) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		feed:     feed,
		coord:    coord,
		notifier: notifier,
		ledger:   led,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one full monitor cycle and returns its stats. State-file load
// and save failures abort the run; everything in between degrades per record.
func (p *Pipeline) Run(ctx context.Context) (*model.RunStats, error) {
	started := p.now()
	log := zap.L().With(zap.String("fir", p.cfg.Region.FIR))
	log.Info("pipeline: run starting")

	agg, err := state.Load(p.cfg.State.Path)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load state")
	}

	stats := &model.RunStats{
		ID:        uuid.New().String(),
		Timestamp: started,
	}

	snapshot, fetchErr := p.fetchSnapshot(ctx)
	if fetchErr != nil || len(snapshot) == 0 {
		// A failed or empty snapshot never mutates tracking state; the
		// distinction between "feed down" and "airspace empty" is not
		// observable from here, so both are treated as a skipped cycle.
		if fetchErr != nil {
			log.Error("pipeline: snapshot fetch failed, skipping cycle", zap.Error(fetchErr))
		} else {
			log.Warn("pipeline: snapshot empty, skipping cycle")
		}
		stats.DurationMS = p.now().Sub(started).Milliseconds()
		p.appendLedger(ctx, stats)
		return stats, fetchErr
	}

	d := recon.Compute(agg, snapshot)
	recon.Apply(agg, snapshot, d, started)
	stats.Active = len(agg.Active.Raw)
	stats.New = len(d.New)
	stats.Expired = len(d.Expired)
	log.Info("pipeline: reconciled snapshot",
		zap.Int("snapshot", len(snapshot)),
		zap.Int("new", stats.New),
		zap.Int("still_active", len(d.StillActive)),
		zap.Int("expired", stats.Expired),
	)

	// Buffered explanations from earlier runs get their one deferred update.
	for _, rec := range p.coord.DrainPending(ctx, agg, started) {
		if err := p.notifier.NotifyUpdate(ctx, rec.ID, rec); err != nil {
			log.Warn("pipeline: deferred update not delivered", zap.String("id", string(rec.ID)), zap.Error(err))
		}
	}

	newRaws := make([]model.RawRecord, 0, len(d.New))
	for _, id := range d.New {
		if rec, ok := agg.Active.Raw[id]; ok {
			newRaws = append(newRaws, *rec)
		}
	}

	enriched := p.coord.EnrichAll(ctx, agg, newRaws, p.cfg.Run.MaxParallel)
	for _, e := range enriched {
		enrich.ApplyEnrichment(agg, e, started)

		explanation := e.Fallback
		severity := model.SeverityUnknown
		provisional := true
		if e.Explained != nil {
			explanation = e.Explained.Text
			severity = e.Explained.Severity
			provisional = false
		}

		if err := p.notifier.NotifyNew(ctx, e.Raw, e.Decoded, explanation, severity, provisional); err != nil {
			// Delivery is fire-and-forget: the identity is marked seen
			// regardless, so a flaky channel cannot cause duplicates.
			log.Warn("pipeline: initial notification not delivered", zap.String("id", string(e.Raw.ID)), zap.Error(err))
		} else {
			stats.Notified++
		}
		agg.MarkSeen(e.Raw.ID, started)

		if provisional {
			agg.Pending[e.Raw.ID] = started
		}
	}
	stats.Buffered = len(agg.Pending)

	if err := agg.Save(p.cfg.State.Path); err != nil {
		return nil, eris.Wrap(err, "pipeline: save state")
	}

	stats.DurationMS = p.now().Sub(started).Milliseconds()
	p.appendLedger(ctx, stats)
	log.Info("pipeline: run complete",
		zap.Int("active", stats.Active),
		zap.Int("notified", stats.Notified),
		zap.Int("buffered", stats.Buffered),
		zap.Int64("duration_ms", stats.DurationMS),
	)
	return stats, nil
}

// fetchSnapshot pulls every configured station and maps entries to tracked
// records. Entries without a number cannot be tracked and are dropped.
func (p *Pipeline) fetchSnapshot(ctx context.Context) ([]model.RawRecord, error) {
	var out []model.RawRecord
	for _, station := range p.cfg.Feed.Stations {
		items, err := p.feed.Fetch(ctx, station)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: fetch station %s", station)
		}
		for _, n := range items {
			id := model.NewIdentity(p.cfg.Region.FIR, n.Number)
			if id == "" {
				zap.L().Debug("pipeline: dropping unnumbered feed entry", zap.String("station", station))
				continue
			}
			out = append(out, model.RawRecord{
				ID:     id,
				FIR:    p.cfg.Region.FIR,
				Number: n.Number,
				Text:   n.Text(),
			})
		}
	}
	return out, nil
}

// appendLedger records the run; ledger failures are logged, never fatal.
func (p *Pipeline) appendLedger(ctx context.Context, stats *model.RunStats) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.Append(ctx, *stats); err != nil {
		zap.L().Warn("pipeline: ledger append failed", zap.Error(err))
	}
}
