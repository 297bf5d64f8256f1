package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindUsage(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, year, month int) (*UsageRecord, error)
	// UpsertIncrementUsed adds 1 to used_count, creating the month row with
	// used_count = 1 when absent.
	UpsertIncrementUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, ownerID snowflake.ID, year, month int, now time.Time) error
	// UpsertAddBonus adds amount to bonus_count, creating the month row when
	// absent. amount may be 0 to just ensure the row exists.
	UpsertAddBonus(ctx context.Context, db *gorm.DB, id snowflake.ID, ownerID snowflake.ID, year, month, amount int, now time.Time) error

	InsertRollover(ctx context.Context, db *gorm.DB, rollover *Rollover) error
	FindRollover(ctx context.Context, db *gorm.DB, eventID string) (*Rollover, error)
}
