package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ContextErrors(t *testing.T) {
	assert.Equal(t, ClassTerminal, Classify(context.Canceled).Class)
	assert.Equal(t, ClassTransient, Classify(context.DeadlineExceeded).Class)
}

func TestClassify_ExplicitMarkers(t *testing.T) {
	base := errors.New("boom")

	d := Classify(Transient(base))
	assert.True(t, d.IsTransient())
	assert.Equal(t, "explicit_transient", d.Reason)

	d = Classify(Terminal(base))
	assert.False(t, d.IsTransient())

	// Markers survive wrapping.
	wrapped := fmt.Errorf("outer: %w", Transient(base))
	assert.True(t, Classify(wrapped).IsTransient())
}

func TestClassify_MessageTokens(t *testing.T) {
	assert.True(t, Classify(errors.New("http status 429: too many requests")).IsTransient())
	assert.True(t, Classify(errors.New("connection refused")).IsTransient())
	assert.True(t, Classify(errors.New("query queued for execution")).IsTransient())

	assert.False(t, Classify(errors.New("invalid api key")).IsTransient())
	assert.False(t, Classify(errors.New("unknown method \"get_x\"")).IsTransient())
	assert.False(t, Classify(errors.New("circuit breaker is open")).IsTransient())
}

func TestClassify_DefaultsTerminal(t *testing.T) {
	d := Classify(errors.New("some novel failure"))
	assert.Equal(t, ClassTerminal, d.Class)
	assert.Equal(t, "unknown_terminal_default", d.Reason)
}

func TestMarkers_NilPassthrough(t *testing.T) {
	assert.NoError(t, Transient(nil))
	assert.NoError(t, Terminal(nil))
}
