// Package analytics abstracts the external analytics backend the refresh
// scheduler pulls from. Episodes never touch this package; they read the
// envelope store only.
package analytics

import "context"

// Rows is the generic row set every backend method returns.
type Rows []map[string]any

// Caller executes one named analytics query. Implementations own their
// transport; the scheduler owns timeouts and converts errors into
// envelopes.
type Caller interface {
	Query(ctx context.Context, method string, params map[string]string) (Rows, error)
}
