package websocket

import (
	"context"
	"time"
)

const DefaultKeepAliveInterval = 5 * time.Second

type keepAliveTarget interface {
	Send(ctx context.Context, data []byte)
	IsClosed() bool
}

// KeepAliveJob sends message every interval while the connection is open.
type KeepAliveJob struct {
	target   keepAliveTarget
	message  []byte
	interval time.Duration
}

func NewKeepAliveJob(target keepAliveTarget, message []byte, interval time.Duration) *KeepAliveJob {
	if interval <= 0 {
		interval = DefaultKeepAliveInterval
	}
	return &KeepAliveJob{
		target:   target,
		message:  message,
		interval: interval,
	}
}

// Run returns nil when ctx is done or the connection closed. Failed sends are
// ignored.
func (k *KeepAliveJob) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if k.target.IsClosed() {
				return nil
			}
			k.target.Send(ctx, k.message)
		}
	}
}
