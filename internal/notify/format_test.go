package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firwatch/notamwatch/internal/model"
)

const sampleRaw = `A0001/26 NOTAMN
Q) OIIX/QMRLC/IV/NBO/A/000/999/3525N05109E005
A) OIIE B) 2603010800 C) 2603041200
E) RWY 11L/29R CLSD DUE WIP`

func TestParseValidity(t *testing.T) {
	v := parseValidity(sampleRaw)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), v.Start)
	assert.Equal(t, time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC), v.End)
	assert.False(t, v.Permanent)
	assert.False(t, v.Estimated)
}

func TestParseValidity_Permanent(t *testing.T) {
	v := parseValidity("B) 2603010800 C) PERM")
	assert.False(t, v.Start.IsZero())
	assert.True(t, v.Permanent)
	assert.True(t, v.End.IsZero())
}

func TestParseValidity_Estimated(t *testing.T) {
	v := parseValidity("B) 2603010800 C) 2604011200EST")
	assert.True(t, v.Estimated)
	assert.Equal(t, time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC), v.End)
}

func TestParseValidity_Missing(t *testing.T) {
	v := parseValidity("E) SOMETHING WITHOUT GROUPS")
	assert.True(t, v.Start.IsZero())
	assert.True(t, v.End.IsZero())
}

func TestFormatRelative(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		t    time.Time
		want string
	}{
		{now.Add(30 * time.Second), "now"},
		{now.Add(-30 * time.Second), "now"},
		{now.Add(5 * time.Minute), "in 5m"},
		{now.Add(2*time.Hour + 10*time.Minute), "in 2h 10m"},
		{now.Add(3*24*time.Hour + 4*time.Hour), "in 3d 4h"},
		{now.Add(-2 * time.Hour), "2h 0m ago"},
		{now.Add(-50 * time.Hour), "2d 2h ago"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatRelative(tc.t, now), "target %s", tc.t)
	}
}

func TestClassifyFromText(t *testing.T) {
	c := classifyFromText(sampleRaw)
	assert.Equal(t, "runway", c.Subject)
	assert.Equal(t, "closed", c.Condition)
	assert.Equal(t, "QMRLC", c.Qualifier)
}

func TestClassifyFromText_NoQualifier(t *testing.T) {
	c := classifyFromText("E) FREE TEXT ONLY")
	assert.Equal(t, "unclassified", c.Subject)
	assert.Empty(t, c.Qualifier)
}

func TestClassify_PrefersDecoder(t *testing.T) {
	raw := model.RawRecord{ID: "OIIX A0001/26", Text: sampleRaw}
	dec := &model.DecodedRecord{Interp: &model.Interpretation{Subject: "runway 11L/29R", Condition: "closed", Qualifier: "QMRLC"}}
	c := classify(raw, dec)
	assert.Equal(t, "runway 11L/29R", c.Subject)
}

func TestClassify_FallsBackOnErrorDecode(t *testing.T) {
	raw := model.RawRecord{ID: "OIIX A0001/26", Text: sampleRaw}
	dec := &model.DecodedRecord{Err: "decoder crashed"}
	c := classify(raw, dec)
	assert.Equal(t, "runway", c.Subject, "Q-code table fallback")
}

func TestBuildNewMessage(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tehran")
	require.NoError(t, err)
	now := time.Date(2026, 2, 26, 4, 0, 0, 0, time.UTC)

	raw := model.RawRecord{ID: "OIIX A0001/26", Text: sampleRaw}
	dec := &model.DecodedRecord{Interp: &model.Interpretation{Subject: "runway", Condition: "closed", Qualifier: "QMRLC"}}

	msg := buildNewMessage(raw, dec, "Runway 11L/29R is closed for construction work.", model.SeverityCaution, false, loc, now)

	assert.Contains(t, msg, "OIIX A0001/26")
	assert.Contains(t, msg, "🟠 caution")
	assert.Contains(t, msg, "runway / closed (QMRLC)")
	// 2026-03-01 08:00 UTC is 11:30 in Tehran (+03:30).
	assert.Contains(t, msg, "2026-03-01 11:30")
	assert.Contains(t, msg, "in 3d 4h")
	assert.Contains(t, msg, "Runway 11L/29R is closed for construction work.")
	assert.Contains(t, msg, "RWY 11L/29R CLSD DUE WIP", "raw text included verbatim")
	assert.NotContains(t, msg, "Provisional")
}

func TestBuildNewMessage_Provisional(t *testing.T) {
	raw := model.RawRecord{ID: "OIIX A0002/26", Text: "B) 2603010800 C) PERM\nE) TWY B CLSD"}
	msg := buildNewMessage(raw, nil, "taxiway B closed", model.SeverityUnknown, true, time.UTC, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	assert.Contains(t, msg, "⏳ severity pending")
	assert.Contains(t, msg, "Provisional reading")
	assert.Contains(t, msg, "Until: permanent")
	assert.Contains(t, msg, "taxiway B closed")
}

func TestBuildUpdateMessage(t *testing.T) {
	rec := &model.ExplanationRecord{ID: "OIIX A0001/26", Text: "Runway closed.", Severity: model.SeverityCritical}
	msg := buildUpdateMessage("OIIX A0001/26", rec)

	assert.Contains(t, msg, "Update on NOTAM OIIX A0001/26")
	assert.Contains(t, msg, "🔴 critical")
	assert.Contains(t, msg, "Runway closed.")
}
