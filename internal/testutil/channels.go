// Package testutil provides helpers shared by audiograph tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeouts.
const (
	// DefaultTestTimeout bounds waits on goroutines that should finish promptly.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout bounds waits on work already in flight.
	ShortTestTimeout = 1 * time.Second

	// PollInterval is the tick for require.Eventually conditions.
	PollInterval = 5 * time.Millisecond
)

// WaitForChannel waits for a signal on ch or fails the test after timeout.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}

// WaitForResult returns the first value received on ch, failing the test if
// none arrives within timeout.
func WaitForResult[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
	var zero T
	return zero
}
