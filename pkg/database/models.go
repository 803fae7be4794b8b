package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReportRun records one sheet report sent to a server.
type ReportRun struct {
	ID        uuid.UUID      `gorm:"type:char(36);primaryKey"`
	ServerID  string         `gorm:"not null;index"`
	GuildID   string         `gorm:"not null;index"`
	Sheet     string         `gorm:"not null"`
	StatKinds datatypes.JSON `gorm:"not null"`
	UnitIDs   datatypes.JSON `gorm:"not null"`
	Players   int            `gorm:"not null;default:0"`
	CreatedAt time.Time      `gorm:"index"`
}

func (ReportRun) TableName() string {
	return "report_runs"
}

func (r *ReportRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// NewReportRun encodes the stat kinds and unit ids as JSON columns.
func NewReportRun(serverID, guildID, sheet string, kinds []string, unitIDs []int, players int) (*ReportRun, error) {
	rawKinds, err := json.Marshal(kinds)
	if err != nil {
		return nil, err
	}
	rawIDs, err := json.Marshal(unitIDs)
	if err != nil {
		return nil, err
	}

	return &ReportRun{
		ServerID:  serverID,
		GuildID:   guildID,
		Sheet:     sheet,
		StatKinds: datatypes.JSON(rawKinds),
		UnitIDs:   datatypes.JSON(rawIDs),
		Players:   players,
	}, nil
}

func (r ReportRun) Kinds() []string {
	var kinds []string
	_ = json.Unmarshal(r.StatKinds, &kinds)
	return kinds
}

func (r ReportRun) Units() []int {
	var ids []int
	_ = json.Unmarshal(r.UnitIDs, &ids)
	return ids
}
