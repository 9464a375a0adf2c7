package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fleetgrid/fleetgrid/pkg/observability"
)

// ScheduleCleanup registers a retention sweep on the given cron runner using
// a standard five-field cron expression. The caller owns starting and
// stopping the runner.
func ScheduleCleanup(c *cron.Cron, schedule string, logger *DBLogger, policy RetentionPolicy, log *observability.Logger) (cron.EntryID, error) {
	return c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		removed, err := logger.Cleanup(ctx, policy)
		if err != nil {
			log.WithError(err).Error("audit retention sweep failed")
			return
		}
		log.WithFields(map[string]interface{}{
			"removed":        removed,
			"retention_days": policy.RetentionDays,
		}).Info("audit retention sweep completed")
	})
}
