// Package domain contains the monthly AI-usage ledger models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageRecord is one row per (owner, year, month). UsedCount only ever
// grows; BonusCount only ever grows and is consumed implicitly through the
// remaining-quota formula.
type UsageRecord struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OwnerID    snowflake.ID `gorm:"not null;uniqueIndex:idx_usage_owner_month" json:"owner_id"`
	Year       int          `gorm:"not null;uniqueIndex:idx_usage_owner_month" json:"year"`
	Month      int          `gorm:"not null;uniqueIndex:idx_usage_owner_month" json:"month"`
	UsedCount  int          `gorm:"not null;default:0" json:"used_count"`
	BonusCount int          `gorm:"not null;default:0" json:"bonus_count"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// Rollover marks that a downgrade event already granted its bonus, so a
// retried webhook or double-submitted request cannot grant it twice.
type Rollover struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OwnerID   snowflake.ID `gorm:"not null;index" json:"owner_id"`
	EventID   string       `gorm:"type:text;not null;uniqueIndex" json:"event_id"`
	Amount    int          `gorm:"not null" json:"amount"`
	Year      int          `gorm:"not null" json:"year"`
	Month     int          `gorm:"not null" json:"month"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Rollover) TableName() string { return "quota_rollovers" }
