// Package recon computes the new / still-active / expired partitioning of a
// fresh snapshot against the durable aggregate.
package recon

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/firwatch/notamwatch/internal/model"
	"github.com/firwatch/notamwatch/internal/state"
)

// Diff is the per-run classification of identities.
type Diff struct {
	New         []model.Identity
	StillActive []model.Identity
	Expired     []model.Identity
}

// Compute classifies every identity in the snapshot and the active store.
// An identity is new when the seen index has no entry for it; still-active
// when seen and currently active; expired when active but absent from the
// snapshot. A seen identity that is neither active nor expired this run is a
// reappeared-expired record and is deliberately ignored: the seen index is
// never pruned, so reappearances are suppressed rather than re-notified.
func Compute(agg *state.Aggregate, snapshot []model.RawRecord) Diff {
	var d Diff
	inSnapshot := make(map[model.Identity]bool, len(snapshot))

	for _, rec := range snapshot {
		if rec.ID == "" || inSnapshot[rec.ID] {
			continue
		}
		inSnapshot[rec.ID] = true

		if _, seen := agg.Seen[rec.ID]; !seen {
			d.New = append(d.New, rec.ID)
			continue
		}
		if agg.IsActive(rec.ID) {
			d.StillActive = append(d.StillActive, rec.ID)
			continue
		}
		zap.L().Debug("recon: suppressing reappeared expired record",
			zap.String("id", string(rec.ID)),
		)
	}

	for id := range agg.Active.Raw {
		if !inSnapshot[id] {
			d.Expired = append(d.Expired, id)
		}
	}

	sortIdentities(d.New)
	sortIdentities(d.StillActive)
	sortIdentities(d.Expired)
	return d
}

// Apply mutates the aggregate for one run: archives expired identities and
// refreshes the active raw store for everything currently published. Callers
// must not invoke Apply for an empty snapshot; the pipeline treats that as a
// fetch failure and leaves the state untouched.
func Apply(agg *state.Aggregate, snapshot []model.RawRecord, d Diff, now time.Time) {
	for _, id := range d.Expired {
		agg.Expire(id, now)
	}

	keep := make(map[model.Identity]bool, len(d.New)+len(d.StillActive))
	for _, id := range d.New {
		keep[id] = true
	}
	for _, id := range d.StillActive {
		keep[id] = true
	}

	for _, rec := range snapshot {
		if !keep[rec.ID] {
			continue
		}
		rec.LastSeen = now
		r := rec
		agg.Active.Raw[rec.ID] = &r
	}
}

func sortIdentities(ids []model.Identity) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
