package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firwatch/notamwatch/internal/model"
)

func TestLoad_MissingFile(t *testing.T) {
	agg, err := Load(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, agg.Version)
	assert.Empty(t, agg.Seen)
	assert.Empty(t, agg.Active.Raw)
	assert.Empty(t, agg.Pending)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	agg := New()
	id := model.Identity("OIIX A0001/26")
	agg.Seen[id] = now
	agg.Active.Raw[id] = &model.RawRecord{ID: id, FIR: "OIIX", Number: "A0001/26", Text: "RWY 11L/29R CLSD", LastSeen: now}
	agg.Active.Decoded[id] = &model.DecodedRecord{ID: id, Interp: &model.Interpretation{Subject: "runway", Condition: "closed"}, LastSeen: now}
	agg.Active.Explained[id] = &model.ExplanationRecord{ID: id, Text: "Runway closed.", Severity: model.SeverityCaution, LastSeen: now}
	agg.Pending[model.Identity("OIIX A0002/26")] = now

	require.NoError(t, agg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, agg.Seen, got.Seen)
	assert.Equal(t, agg.Active.Raw[id].Text, got.Active.Raw[id].Text)
	assert.Equal(t, model.SeverityCaution, got.Active.Explained[id].Severity)
	assert.Contains(t, got.Pending, model.Identity("OIIX A0002/26"))
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	require.NoError(t, New().Save(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestLoad_LegacySeenList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`["OIIX A0001/26","OIIX A0002/26"]`), 0o644))

	agg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, agg.Seen, 2)
	assert.Contains(t, agg.Seen, model.Identity("OIIX A0001/26"))
	assert.Empty(t, agg.Active.Raw)
	assert.Equal(t, SchemaVersion, agg.Version)
}

func TestLoad_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{{{not json`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestExpire_MovesAllStoresOnce(t *testing.T) {
	now := time.Now().UTC()
	agg := New()
	id := model.Identity("OIIX A0001/26")
	agg.Active.Raw[id] = &model.RawRecord{ID: id}
	agg.Active.Decoded[id] = &model.DecodedRecord{ID: id, Interp: &model.Interpretation{}}
	agg.Active.Explained[id] = &model.ExplanationRecord{ID: id, Text: "x"}
	agg.Pending[id] = now

	agg.Expire(id, now)

	assert.False(t, agg.IsActive(id))
	assert.Contains(t, agg.Expired.Raw, id)
	assert.Contains(t, agg.Expired.Decoded, id)
	assert.Contains(t, agg.Expired.Explained, id)
	assert.Equal(t, now, agg.ExpiredAt[id])
	assert.NotContains(t, agg.Pending, id)

	// A second expire is a no-op.
	agg.Expire(id, now.Add(time.Hour))
	assert.Contains(t, agg.Expired.Raw, id)
}

func TestMarkSeen_KeepsFirstTimestamp(t *testing.T) {
	agg := New()
	id := model.Identity("OIIX A0001/26")
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	agg.MarkSeen(id, first)
	agg.MarkSeen(id, first.Add(time.Hour))
	assert.Equal(t, first, agg.Seen[id])
}
