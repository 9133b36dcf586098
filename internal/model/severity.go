package model

import "strings"

// Severity is the three-tier importance classification assigned by the
// explanation service. SeverityUnknown marks the provisional state shown
// before an explanation is available.
type Severity string

const (
	SeverityUnknown  Severity = ""
	SeverityInfo     Severity = "info"
	SeverityCaution  Severity = "caution"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityUnknown:  0,
	SeverityInfo:     1,
	SeverityCaution:  2,
	SeverityCritical: 3,
}

// Rank returns the ordering of a severity; higher is more important.
func (s Severity) Rank() int {
	return severityRank[s]
}

// MaxSeverity returns the higher-ranked of two severities. Displayed severity
// is never downgraded once assigned.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseSeverity maps free-form model output onto a Severity. Unrecognized
// values parse as SeverityUnknown.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info", "informational", "low", "level1", "level 1":
		return SeverityInfo
	case "caution", "advisory", "medium", "level2", "level 2":
		return SeverityCaution
	case "critical", "urgent", "high", "level3", "level 3":
		return SeverityCritical
	default:
		return SeverityUnknown
	}
}
