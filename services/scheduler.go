// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartPhaseReconciler runs Reconcile every interval until the returned
// scheduler is shut down. Runs never overlap; a slow sweep pushes the next
// one back.
func StartPhaseReconciler(svc *HackathonService, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()

			res := svc.Reconcile(ctx)
			if res.Updated > 0 || res.Failed > 0 {
				svc.Log.Info("[Scheduler] Phase reconcile finished",
					"total", res.Total, "updated", res.Updated, "failed", res.Failed)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule phase reconcile: %w", err)
	}

	sched.Start()
	return sched, nil
}
