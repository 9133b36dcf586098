package recon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/firwatch/notamwatch/internal/model"
	"github.com/firwatch/notamwatch/internal/state"
)

func raw(id string) model.RawRecord {
	return model.RawRecord{ID: model.Identity(id), FIR: "OIIX", Text: "RWY CLSD"}
}

func TestCompute_ColdStart(t *testing.T) {
	agg := state.New()
	d := Compute(agg, []model.RawRecord{raw("OIIX A0001/26"), raw("OIIX A0002/26")})

	assert.Equal(t, []model.Identity{"OIIX A0001/26", "OIIX A0002/26"}, d.New)
	assert.Empty(t, d.StillActive)
	assert.Empty(t, d.Expired)
}

func TestCompute_StillActiveAndExpired(t *testing.T) {
	now := time.Now().UTC()
	agg := state.New()
	for _, id := range []model.Identity{"OIIX A0001/26", "OIIX A0002/26"} {
		agg.Seen[id] = now
		agg.Active.Raw[id] = &model.RawRecord{ID: id}
	}

	// A0001 survives, A0002 vanished, A0003 is new.
	d := Compute(agg, []model.RawRecord{raw("OIIX A0001/26"), raw("OIIX A0003/26")})

	assert.Equal(t, []model.Identity{"OIIX A0003/26"}, d.New)
	assert.Equal(t, []model.Identity{"OIIX A0001/26"}, d.StillActive)
	assert.Equal(t, []model.Identity{"OIIX A0002/26"}, d.Expired)
}

func TestCompute_ReappearedExpiredIsSuppressed(t *testing.T) {
	now := time.Now().UTC()
	agg := state.New()
	id := model.Identity("OIIX A0001/26")
	agg.Seen[id] = now
	agg.Active.Raw[id] = &model.RawRecord{ID: id}
	agg.Expire(id, now)

	d := Compute(agg, []model.RawRecord{raw("OIIX A0001/26")})

	assert.Empty(t, d.New)
	assert.Empty(t, d.StillActive)
	assert.Empty(t, d.Expired)
}

func TestCompute_DropsDuplicatesAndEmptyIDs(t *testing.T) {
	agg := state.New()
	d := Compute(agg, []model.RawRecord{
		raw("OIIX A0001/26"),
		raw("OIIX A0001/26"),
		{ID: "", Text: "no number"},
	})
	assert.Equal(t, []model.Identity{"OIIX A0001/26"}, d.New)
}

func TestApply_ArchivesExpiredAndRefreshesActive(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(15 * time.Minute)

	agg := state.New()
	gone := model.Identity("OIIX A0002/26")
	kept := model.Identity("OIIX A0001/26")
	for _, id := range []model.Identity{kept, gone} {
		agg.Seen[id] = t0
		agg.Active.Raw[id] = &model.RawRecord{ID: id, LastSeen: t0}
	}
	agg.Pending[gone] = t0

	snapshot := []model.RawRecord{raw(string(kept))}
	d := Compute(agg, snapshot)
	Apply(agg, snapshot, d, t1)

	assert.False(t, agg.IsActive(gone))
	assert.Contains(t, agg.Expired.Raw, gone)
	assert.Equal(t, t1, agg.ExpiredAt[gone])
	assert.NotContains(t, agg.Pending, gone, "expired identity leaves the pending buffer")

	assert.True(t, agg.IsActive(kept))
	assert.Equal(t, t1, agg.Active.Raw[kept].LastSeen)
}

func TestApply_ExpiryIsOneWay(t *testing.T) {
	t0 := time.Now().UTC()
	agg := state.New()
	id := model.Identity("OIIX A0001/26")
	agg.Seen[id] = t0
	agg.Active.Raw[id] = &model.RawRecord{ID: id}

	// Run 1: record vanishes.
	d := Compute(agg, nil)
	Apply(agg, nil, d, t0)
	assert.Contains(t, agg.Expired.Raw, id)

	// Run 2: record reappears; it must not return to the active store.
	snapshot := []model.RawRecord{raw(string(id))}
	d = Compute(agg, snapshot)
	Apply(agg, snapshot, d, t0.Add(time.Hour))
	assert.False(t, agg.IsActive(id))
	assert.Contains(t, agg.Expired.Raw, id)
}
