// Package poller keeps client-held lists close to the API without a push
// channel: every list refetches on its own fixed interval and reconciles the
// answer with local optimistic edits.
package poller

import (
	"context"
	"sync"
	"time"
)

// Every runs fn immediately and then once per interval until the returned stop
// function is called or ctx ends. Runs never overlap. stop is idempotent.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		if ctx.Err() != nil {
			return
		}
		fn(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				fn(ctx)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }
}
