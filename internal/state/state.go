// Package state persists the cross-run NOTAM tracking state as one versioned
// aggregate, written atomically at run end.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/firwatch/notamwatch/internal/model"
)

// SchemaVersion is the current on-disk aggregate schema.
const SchemaVersion = 2

// Partition groups the three per-identity stores for one lifecycle phase.
type Partition struct {
	Raw       map[model.Identity]*model.RawRecord         `json:"raw"`
	Decoded   map[model.Identity]*model.DecodedRecord     `json:"decoded"`
	Explained map[model.Identity]*model.ExplanationRecord `json:"explained"`
}

func newPartition() Partition {
	return Partition{
		Raw:       map[model.Identity]*model.RawRecord{},
		Decoded:   map[model.Identity]*model.DecodedRecord{},
		Explained: map[model.Identity]*model.ExplanationRecord{},
	}
}

// Aggregate is the whole durable state of the monitor. It is loaded once at
// run start and saved once at run end; nothing else touches the file.
type Aggregate struct {
	Version int `json:"version"`

	// Seen maps identity to first-seen time. An identity is present iff an
	// initial notification has been sent for it. Entries are never pruned,
	// which is what suppresses re-notification when an expired NOTAM
	// reappears in the feed.
	Seen map[model.Identity]time.Time `json:"seen"`

	Active  Partition `json:"active"`
	Expired Partition `json:"expired"`

	// ExpiredAt records when each identity was archived.
	ExpiredAt map[model.Identity]time.Time `json:"expired_at"`

	// Pending holds identities whose initial notification went out with a
	// fallback explanation; keyed to the time they were buffered.
	Pending map[model.Identity]time.Time `json:"pending"`
}

// New returns an empty aggregate at the current schema version.
func New() *Aggregate {
	return &Aggregate{
		Version:   SchemaVersion,
		Seen:      map[model.Identity]time.Time{},
		Active:    newPartition(),
		Expired:   newPartition(),
		ExpiredAt: map[model.Identity]time.Time{},
		Pending:   map[model.Identity]time.Time{},
	}
}

// Load reads the aggregate from path. A missing file yields an empty
// aggregate. A legacy v1 payload (a bare JSON array of seen identity keys,
// the format of the earliest monitor generations) is migrated in place.
func Load(path string) (*Aggregate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, eris.Wrapf(err, "state: read %s", path)
	}
	if len(data) == 0 {
		return New(), nil
	}

	var agg Aggregate
	if err := json.Unmarshal(data, &agg); err == nil && agg.Version >= SchemaVersion {
		agg.normalize()
		return &agg, nil
	}

	// One-time migration from the legacy seen-list format.
	var legacy []string
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, eris.Wrapf(err, "state: unrecognized state file %s", path)
	}
	agg2 := New()
	now := time.Now().UTC()
	for _, key := range legacy {
		if key == "" {
			continue
		}
		agg2.Seen[model.Identity(key)] = now
	}
	zap.L().Info("state: migrated legacy seen list",
		zap.Int("entries", len(agg2.Seen)),
		zap.String("path", path),
	)
	return agg2, nil
}

// Save writes the aggregate atomically: marshal to a temp file in the same
// directory, then rename over path. A failed run never leaves a half-written
// state file behind.
func (a *Aggregate) Save(path string) error {
	a.Version = SchemaVersion

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return eris.Wrap(err, "state: marshal aggregate")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return eris.Wrapf(err, "state: create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "state: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "state: close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "state: rename %s", path)
	}
	return nil
}

// MarkSeen records that an initial notification was dispatched for id.
func (a *Aggregate) MarkSeen(id model.Identity, at time.Time) {
	if _, ok := a.Seen[id]; !ok {
		a.Seen[id] = at
	}
}

// IsActive reports whether id is currently in the active partition.
func (a *Aggregate) IsActive(id model.Identity) bool {
	_, ok := a.Active.Raw[id]
	return ok
}

// Expire moves every store entry for id from Active to Expired, stamps the
// archival time and drops the identity from the pending buffer. The move is
// one-directional; callers never un-expire.
func (a *Aggregate) Expire(id model.Identity, at time.Time) {
	if _, done := a.ExpiredAt[id]; done {
		return
	}
	if rec, ok := a.Active.Raw[id]; ok {
		a.Expired.Raw[id] = rec
		delete(a.Active.Raw, id)
	}
	if rec, ok := a.Active.Decoded[id]; ok {
		a.Expired.Decoded[id] = rec
		delete(a.Active.Decoded, id)
	}
	if rec, ok := a.Active.Explained[id]; ok {
		a.Expired.Explained[id] = rec
		delete(a.Active.Explained, id)
	}
	a.ExpiredAt[id] = at
	delete(a.Pending, id)
}

func (a *Aggregate) normalize() {
	if a.Seen == nil {
		a.Seen = map[model.Identity]time.Time{}
	}
	if a.Active.Raw == nil {
		a.Active = newPartition()
	}
	if a.Expired.Raw == nil {
		a.Expired = newPartition()
	}
	if a.ExpiredAt == nil {
		a.ExpiredAt = map[model.Identity]time.Time{}
	}
	if a.Pending == nil {
		a.Pending = map[model.Identity]time.Time{}
	}
}
