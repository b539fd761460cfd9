package context

import (
	"context"
	"testing"
	"time"
)

// WithTest derives a context bound to the test's deadline, minus one second
// so resources can still be cleaned up when time runs out.
func WithTest(ctx context.Context, t *testing.T) (context.Context, func()) {
	if deadline, ok := t.Deadline(); ok {
		return context.WithDeadline(ctx, deadline.Add(-time.Second))
	}
	return ctx, func() {}
}
