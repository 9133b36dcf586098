package notify

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/firwatch/notamwatch/internal/model"
)

// Validity is the decoded B)/C) window of a NOTAM.
type Validity struct {
	Start     time.Time
	End       time.Time
	Permanent bool
	Estimated bool
}

var (
	startRe = regexp.MustCompile(`B\)\s*(\d{10})`)
	endRe   = regexp.MustCompile(`C\)\s*(?:(\d{10})(EST)?|(PERM))`)
)

// parseValidity extracts the coded start/end timestamps from raw NOTAM text.
// Group times are yymmddhhmm in UTC. Missing groups leave zero times.
func parseValidity(raw string) Validity {
	var v Validity
	if m := startRe.FindStringSubmatch(raw); m != nil {
		v.Start, _ = parseGroupTime(m[1])
	}
	if m := endRe.FindStringSubmatch(raw); m != nil {
		switch {
		case m[3] != "":
			v.Permanent = true
		default:
			v.End, _ = parseGroupTime(m[1])
			v.Estimated = m[2] != ""
		}
	}
	return v
}

func parseGroupTime(s string) (time.Time, error) {
	return time.Parse("0601021504", s)
}

// formatRelative renders a delta as a short human phrase: "in 3d 4h",
// "2h ago", "now".
func formatRelative(t, now time.Time) string {
	d := t.Sub(now)
	past := d < 0
	if past {
		d = -d
	}
	if d < time.Minute {
		return "now"
	}

	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	var phrase string
	switch {
	case days > 0:
		phrase = fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		phrase = fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		phrase = fmt.Sprintf("%dm", minutes)
	}

	if past {
		return phrase + " ago"
	}
	return "in " + phrase
}

func severityLabel(s model.Severity, provisional bool) string {
	if provisional {
		return "⏳ severity pending"
	}
	switch s {
	case model.SeverityCritical:
		return "🔴 critical"
	case model.SeverityCaution:
		return "🟠 caution"
	case model.SeverityInfo:
		return "🔵 info"
	default:
		return "⚪ unclassified"
	}
}

// classify prefers the decoder's interpretation and falls back to the
// Q-code tables on raw text.
func classify(raw model.RawRecord, dec *model.DecodedRecord) Classification {
	if dec.OK() {
		c := Classification{
			Subject:   dec.Interp.Subject,
			Condition: dec.Interp.Condition,
			Qualifier: dec.Interp.Qualifier,
		}
		if c.Subject != "" {
			return c
		}
	}
	return classifyFromText(raw.Text)
}

const timeLayout = "2006-01-02 15:04"

// buildNewMessage renders the initial notification for a record.
func buildNewMessage(raw model.RawRecord, dec *model.DecodedRecord, explanation string, severity model.Severity, provisional bool, loc *time.Location, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🚨 *New NOTAM %s* — %s\n", raw.ID, severityLabel(severity, provisional))

	c := classify(raw, dec)
	line := c.Subject
	if c.Condition != "" {
		line += " / " + c.Condition
	}
	if c.Qualifier != "" {
		line += " (" + c.Qualifier + ")"
	}
	fmt.Fprintf(&b, "*%s*\n", line)

	v := parseValidity(raw.Text)
	if !v.Start.IsZero() {
		fmt.Fprintf(&b, "From: %s (%s)\n", v.Start.In(loc).Format(timeLayout), formatRelative(v.Start, now))
	}
	switch {
	case v.Permanent:
		b.WriteString("Until: permanent\n")
	case !v.End.IsZero():
		until := v.End.In(loc).Format(timeLayout)
		if v.Estimated {
			until += " (estimated)"
		}
		fmt.Fprintf(&b, "Until: %s (%s)\n", until, formatRelative(v.End, now))
	}

	b.WriteString("\n")
	if provisional {
		b.WriteString("_Provisional reading (auto-expanded, explanation to follow):_\n")
	}
	b.WriteString(explanation)
	b.WriteString("\n\n```\n")
	b.WriteString(strings.TrimSpace(raw.Text))
	b.WriteString("\n```")

	return b.String()
}

// buildUpdateMessage renders the deferred follow-up once an explanation
// arrives for an already-notified record.
func buildUpdateMessage(id model.Identity, rec *model.ExplanationRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 *Update on NOTAM %s* — %s\n", id, severityLabel(rec.Severity, false))
	b.WriteString("Explanation now available:\n\n")
	b.WriteString(rec.Text)
	return b.String()
}
