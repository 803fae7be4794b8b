package repositories

import (
	"context"

	"github.com/mrlobot/discord-bot/pkg/database"
	"gorm.io/gorm"
)

type ReportRunRepository struct {
	db *gorm.DB
}

func NewReportRunRepository(db *gorm.DB) *ReportRunRepository {
	return &ReportRunRepository{
		db: db,
	}
}

func (r *ReportRunRepository) Create(ctx context.Context, run *database.ReportRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// RecentByGuild returns the latest runs of a guild, newest first.
func (r *ReportRunRepository) RecentByGuild(ctx context.Context, guildID string, limit int) ([]database.ReportRun, error) {
	var runs []database.ReportRun
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (r *ReportRunRepository) CountByGuild(ctx context.Context, guildID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&database.ReportRun{}).
		Where("guild_id = ?", guildID).
		Count(&count).Error
	return count, err
}
