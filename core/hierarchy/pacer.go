package hierarchy

import (
	"context"
	"time"
)

// DefaultDelay is the pause between create calls.
const DefaultDelay = 200 * time.Millisecond

// Pacer spaces out remote writes.
type Pacer interface {
	Wait(ctx context.Context)
}

// FixedDelay waits the same duration on every call, or until ctx is done.
type FixedDelay time.Duration

// Wait blocks for d. A non-positive d returns immediately.
func (d FixedDelay) Wait(ctx context.Context) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(time.Duration(d))
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
