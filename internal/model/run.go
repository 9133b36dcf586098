package model

import "time"

// RunStats is one row of the bounded run ledger.
type RunStats struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Active     int       `json:"active"`
	New        int       `json:"new"`
	Expired    int       `json:"expired"`
	Buffered   int       `json:"buffered"`
	Notified   int       `json:"notified"`
	DurationMS int64     `json:"duration_ms"`
}
