package model

import "math"

// IntelSnapshot maps canonical intel query keys to the freshness observed
// at decision time. Once written to metadata it is never rewritten.
type IntelSnapshot map[string]QualityRecord

// IntelHygiene is the aggregate freshness summary derived from a snapshot.
type IntelHygiene struct {
	TotalQueries         int     `json:"total_queries"`
	FreshCount           int     `json:"fresh_count"`
	StaleCount           int     `json:"stale_count"`
	MissingOrTooOldCount int     `json:"missing_or_too_old_count"`
	FreshPercent         float64 `json:"fresh_percent"`
}

// HygieneFromSnapshot derives the aggregate summary. FreshPercent is
// rounded to one decimal place.
func HygieneFromSnapshot(snap IntelSnapshot) IntelHygiene {
	h := IntelHygiene{TotalQueries: len(snap)}
	for _, rec := range snap {
		switch rec.Quality {
		case QualityFresh:
			h.FreshCount++
		case QualityStale:
			h.StaleCount++
		default:
			h.MissingOrTooOldCount++
		}
	}
	if h.TotalQueries > 0 {
		h.FreshPercent = math.Round(1000*float64(h.FreshCount)/float64(h.TotalQueries)) / 10
	}
	return h
}
