package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mrlobot/discord-bot/pkg/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRefresher) RefreshCatalog(ctx context.Context) (*units.Index, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return units.BuildIndex([]units.RawUnit{{ID: 1, Name: "Darth Vader", BaseID: "VADER"}}), nil
}

func TestCatalogRefreshJobRunsOnInterval(t *testing.T) {
	refresher := &fakeRefresher{}
	manager := NewManager(NewCatalogRefreshJob(refresher, 50*time.Millisecond, time.Second))

	manager.Start()
	assert.Eventually(t, func() bool {
		return refresher.calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
	manager.Stop()

	stopped := refresher.calls.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, stopped, refresher.calls.Load())
}

func TestCatalogRefreshFailureKeepsRunning(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("provider down")}
	job := NewCatalogRefreshJob(refresher, time.Hour, time.Second)

	job.refresh(context.Background())
	job.refresh(context.Background())
	assert.Equal(t, int32(2), refresher.calls.Load())
}

func TestReportCleanupJob(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "1_tw_power_x.csv")
	require.NoError(t, os.WriteFile(stale, []byte("PLAYER\n"), 0o644))

	job := NewReportCleanupJob(dir, time.Hour)
	job.cleanup()
	assert.FileExists(t, stale)

	job.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	job.cleanup()
	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestManagerStopWithoutStart(t *testing.T) {
	manager := NewManager()
	assert.NotPanics(t, manager.Stop)
}
