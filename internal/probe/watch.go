package probe

import (
	"context"
	"time"
)

// Watch polls url every interval and calls fn with the initial
// connectivity state and then on every change. It returns when ctx is done.
func (c *Client) Watch(ctx context.Context, url string, interval time.Duration, fn func(online bool)) {
	online := c.Reachable(ctx, url)
	if ctx.Err() != nil {
		return
	}
	fn(online)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := c.Reachable(ctx, url)
			if ctx.Err() != nil {
				return
			}
			if now != online {
				online = now
				c.logger.Info("connectivity changed", "online", online)
				fn(online)
			}
		case <-ctx.Done():
			return
		}
	}
}
