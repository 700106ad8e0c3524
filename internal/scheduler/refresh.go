package scheduler

import (
	"context"
	"fmt"
	"time"

	"crm_assistant_backend/platform/logger"

	"github.com/robfig/cron/v3"
)

const refreshTimeout = 10 * time.Minute

// Refresher reloads every dataset and returns the names that stayed empty.
type Refresher interface {
	Refresh(ctx context.Context) []string
}

// DatasetRefresher reloads the business cache on a cron schedule.
type DatasetRefresher struct {
	cron      *cron.Cron
	refresher Refresher
	log       *logger.Logger
}

// NewDatasetRefresher registers schedule, a standard 5-field cron expression
// (e.g. "0 */6 * * *"). An empty schedule yields nil: scheduled refresh disabled.
func NewDatasetRefresher(schedule string, refresher Refresher, log *logger.Logger) (*DatasetRefresher, error) {
	if schedule == "" {
		return nil, nil
	}

	r := &DatasetRefresher{
		cron:      cron.New(),
		refresher: refresher,
		log:       log,
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("registering dataset refresh cron %q: %w", schedule, err)
	}
	return r, nil
}

func (r *DatasetRefresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	start := time.Now()
	failed := r.refresher.Refresh(ctx)
	if len(failed) > 0 {
		r.log.Warn("scheduled dataset refresh incomplete", "failed", failed, "elapsed", time.Since(start))
		return
	}
	r.log.Info("scheduled dataset refresh complete", "elapsed", time.Since(start))
}

func (r *DatasetRefresher) Start() {
	if r == nil {
		return
	}
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *DatasetRefresher) Stop() {
	if r == nil {
		return
	}
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of registered cron entries.
func (r *DatasetRefresher) Entries() int {
	if r == nil {
		return 0
	}
	return len(r.cron.Entries())
}
