package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/mrlobot/discord-bot/pkg/logger"
	"github.com/mrlobot/discord-bot/pkg/units"
)

type CatalogRefresher interface {
	RefreshCatalog(ctx context.Context) (*units.Index, error)
}

// CatalogRefreshJob rebuilds the unit alias index on a fixed interval. The
// first build happens on the Discord ready event, not here.
type CatalogRefreshJob struct {
	refresher CatalogRefresher
	interval  time.Duration
	timeout   time.Duration
}

func NewCatalogRefreshJob(refresher CatalogRefresher, interval, timeout time.Duration) *CatalogRefreshJob {
	return &CatalogRefreshJob{
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
	}
}

func (j *CatalogRefreshJob) Name() string {
	return "catalog-refresh"
}

func (j *CatalogRefreshJob) Run(ctx context.Context) {
	runEvery(ctx, j.Name(), j.interval, func() { j.refresh(ctx) })
}

func (j *CatalogRefreshJob) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	idx, err := j.refresher.RefreshCatalog(ctx)
	if err != nil {
		logger.Worker(j.Name(), "Catalog refresh failed, keeping the current index: %v", err)
		return
	}
	logger.Worker(j.Name(), "Catalog refreshed with %d units", idx.Len())
}

// runEvery schedules task every interval until ctx is done.
func runEvery(ctx context.Context, name string, interval time.Duration, task func()) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("Failed to create scheduler: %v", err)
		return
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to schedule job %s: %v", name, err)
		return
	}

	scheduler.Start()
	logger.Worker(name, "Scheduler started - will run every %s", interval)

	<-ctx.Done()

	if err := scheduler.Shutdown(); err != nil {
		logger.Error("Error shutting down scheduler: %v", err)
	}
}
