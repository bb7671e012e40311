package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically sweeps uploads a crashed request could not release.
type Janitor struct {
	cron   *cron.Cron
	store  *Store
	maxAge time.Duration
	ctx    context.Context
	log    *slog.Logger
}

// NewJanitor prepares a janitor; schedule is a cron expression such as "@every 10m".
func NewJanitor(ctx context.Context, store *Store, schedule string, maxAge time.Duration, log *slog.Logger) (*Janitor, error) {
	if log == nil {
		log = slog.Default()
	}
	j := &Janitor{
		cron:   cron.New(),
		store:  store,
		maxAge: maxAge,
		ctx:    ctx,
		log:    log,
	}
	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, fmt.Errorf("add janitor job: %w", err)
	}
	return j, nil
}

func (j *Janitor) sweep() {
	removed, err := j.store.Sweep(j.ctx, j.maxAge, time.Now())
	if err != nil {
		j.log.WarnContext(j.ctx, "Upload sweep finished with errors",
			slog.Any("err", err),
			"removed", removed,
			"dir", j.store.Dir())
		return
	}
	if removed > 0 {
		j.log.InfoContext(j.ctx, "Upload sweep finished",
			"removed", removed,
			"dir", j.store.Dir())
	}
}

// Start runs one sweep immediately and then follows the schedule.
func (j *Janitor) Start() {
	j.sweep()
	j.cron.Start()
}

// Stop waits for a running sweep to complete.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
