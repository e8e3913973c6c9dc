package model

import "time"

// Trigger is an advisory request to prioritize a refresh in the next
// scheduler tick. Triggers are appended to an on-disk log by producers and
// drained by the scheduler at tick boundaries.
type Trigger struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	Pool      string    `json:"pool,omitempty"`
	Pair      string    `json:"pair,omitempty"`

	// QueryKey optionally narrows the trigger to one catalog entry.
	// Triggers naming an unknown key are ignored.
	QueryKey string `json:"query_key,omitempty"`
}
