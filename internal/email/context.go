package email

import (
	"context"
	"time"
)

func newEmailContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	// Detach cancellation so a finished request does not abort queued sends.
	parent = context.WithoutCancel(parent)
	return context.WithTimeout(parent, timeout)
}
