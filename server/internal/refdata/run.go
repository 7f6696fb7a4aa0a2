package refdata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Run loads the cache once and then reloads it on schedule, a standard cron
// spec or descriptor such as "@every 5m". Failed loads are logged and keep
// the previous data. Run blocks until ctx is cancelled and returns only
// after any in-flight load has finished.
func (c *Cache) Run(ctx context.Context, schedule string) error {
	sched := cron.New()
	if _, err := sched.AddFunc(schedule, func() { c.scheduledRefresh(ctx) }); err != nil {
		return fmt.Errorf("refdata: schedule %q: %w", schedule, err)
	}

	c.scheduledRefresh(ctx)
	sched.Start()
	<-ctx.Done()
	<-sched.Stop().Done()
	return nil
}

func (c *Cache) scheduledRefresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := c.ForceRefresh(ctx); err != nil {
		slog.Warn("refdata: scheduled refresh failed", "err", err)
	}
}
