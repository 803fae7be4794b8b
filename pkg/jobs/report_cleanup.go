package jobs

import (
	"context"
	"time"

	"github.com/mrlobot/discord-bot/pkg/logger"
	"github.com/mrlobot/discord-bot/pkg/report"
)

// ReportCleanupJob removes report files left behind by a send that never
// finished.
type ReportCleanupJob struct {
	dir       string
	retention time.Duration
	now       func() time.Time
}

func NewReportCleanupJob(dir string, retention time.Duration) *ReportCleanupJob {
	return &ReportCleanupJob{
		dir:       dir,
		retention: retention,
		now:       time.Now,
	}
}

func (j *ReportCleanupJob) Name() string {
	return "report-cleanup"
}

func (j *ReportCleanupJob) Run(ctx context.Context) {
	runEvery(ctx, j.Name(), j.retention, j.cleanup)
}

func (j *ReportCleanupJob) cleanup() {
	removed, err := report.RemoveStale(j.dir, j.now().Add(-j.retention))
	if err != nil {
		logger.Worker(j.Name(), "Cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		logger.Worker(j.Name(), "Removed %d stale report files", removed)
	}
}
