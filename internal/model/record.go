package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/twpayne/go-geom"
)

// Identity is the stable key for one NOTAM across runs: the FIR designator
// plus the record number, e.g. "OIIX A0001/26".
type Identity string

// NewIdentity derives the identity for a record. Returns "" when the record
// number is missing; such records cannot be tracked and are dropped upstream.
func NewIdentity(fir, number string) Identity {
	fir = strings.TrimSpace(fir)
	number = strings.TrimSpace(number)
	if number == "" {
		return ""
	}
	if fir == "" {
		return Identity(number)
	}
	return Identity(fir + " " + number)
}

// RawRecord is one NOTAM exactly as received from the feed.
type RawRecord struct {
	ID       Identity  `json:"id"`
	FIR      string    `json:"fir"`
	Number   string    `json:"number"`
	Text     string    `json:"text"`
	LastSeen time.Time `json:"last_seen"`
}

// Interpretation is the structured reading of a NOTAM produced by the
// external decoder.
type Interpretation struct {
	Category  string  `json:"category,omitempty"`
	Subject   string  `json:"subject,omitempty"`
	Condition string  `json:"condition,omitempty"`
	Qualifier string  `json:"qualifier,omitempty"`
	Traffic   string  `json:"traffic,omitempty"`
	Purpose   string  `json:"purpose,omitempty"`
	Scope     string  `json:"scope,omitempty"`
	Lat       float64 `json:"lat,omitempty"`
	Lon       float64 `json:"lon,omitempty"`
	RadiusNM  int     `json:"radius_nm,omitempty"`
	Body      string  `json:"body,omitempty"`
}

// Centre returns the NOTAM's centre point, or nil when the decoder produced
// no coordinates.
func (i *Interpretation) Centre() *geom.Point {
	if i == nil || (i.Lat == 0 && i.Lon == 0) {
		return nil
	}
	return geom.NewPointFlat(geom.XY, []float64{i.Lon, i.Lat})
}

// DecodedRecord caches the decoder result for one identity. A failed decode
// is stored with Err set so it is not retried every run; a non-error decode
// is never recomputed for the same identity.
type DecodedRecord struct {
	ID       Identity        `json:"id"`
	Interp   *Interpretation `json:"interp,omitempty"`
	Err      string          `json:"err,omitempty"`
	TextHash string          `json:"text_hash,omitempty"`
	LastSeen time.Time       `json:"last_seen"`
}

// OK reports whether the record holds a usable interpretation.
func (d *DecodedRecord) OK() bool {
	return d != nil && d.Err == "" && d.Interp != nil
}

// ExplanationRecord caches a successful plain-language explanation for one
// identity. Only non-error results are ever stored.
type ExplanationRecord struct {
	ID       Identity  `json:"id"`
	Text     string    `json:"text"`
	Severity Severity  `json:"severity"`
	TextHash string    `json:"text_hash,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// HashText fingerprints raw NOTAM text so cached enrichment can detect an
// upstream amendment that kept the record number.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}
