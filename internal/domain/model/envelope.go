package model

import (
	"encoding/json"
	"time"
)

// Quality classifies a cached value's age relative to its TTL and max age.
type Quality string

const (
	QualityFresh   Quality = "fresh"
	QualityStale   Quality = "stale"
	QualityTooOld  Quality = "too_old"
	QualityMissing Quality = "missing"
)

func (q Quality) String() string { return string(q) }

// Envelope wraps a cached analytics payload with its freshness metadata.
// Envelopes for the same key are superseded by newer writes; there is no
// revision history.
type Envelope struct {
	OK            bool            `json:"ok"`
	Data          json.RawMessage `json:"data"`
	FetchedAt     time.Time       `json:"fetched_at"`
	TTLSeconds    int             `json:"ttl_seconds"`
	MaxAgeSeconds int             `json:"max_age_seconds"`
	Error         string          `json:"error,omitempty"`
	Source        string          `json:"source"`
}

// QualityRecord is the freshness metadata returned alongside cached data
// and captured in episode intel snapshots.
type QualityRecord struct {
	Quality    Quality    `json:"quality"`
	AgeSeconds *int64     `json:"age_seconds"`
	AsOf       *time.Time `json:"asof_timestamp"`
}

// MissingQuality is the record returned when no usable envelope exists.
func MissingQuality() QualityRecord {
	return QualityRecord{Quality: QualityMissing}
}

// QualityAt computes the freshness of an envelope at the given wall time.
// A nil envelope, a zero fetched_at, or ok=false all classify as missing.
func (e *Envelope) QualityAt(now time.Time, ttl, maxAge time.Duration) QualityRecord {
	if e == nil || !e.OK || e.FetchedAt.IsZero() {
		return MissingQuality()
	}
	age := now.Sub(e.FetchedAt)
	ageS := int64(age / time.Second)
	asof := e.FetchedAt
	rec := QualityRecord{AgeSeconds: &ageS, AsOf: &asof}
	switch {
	case age <= ttl:
		rec.Quality = QualityFresh
	case age <= maxAge:
		rec.Quality = QualityStale
	default:
		rec.Quality = QualityTooOld
	}
	return rec
}
