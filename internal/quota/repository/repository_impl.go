package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskforge/internal/quota/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindUsage(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, year, month int) (*domain.UsageRecord, error) {
	var record domain.UsageRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_id, year, month, used_count, bonus_count, created_at, updated_at
		 FROM usage_records WHERE owner_id = ? AND year = ? AND month = ?`,
		ownerID,
		year,
		month,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

// ON CONFLICT targets the (owner_id, year, month) unique index; the syntax
// is shared by postgres and sqlite.
func (r *repo) UpsertIncrementUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, ownerID snowflake.ID, year, month int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_records (id, owner_id, year, month, used_count, bonus_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, 0, ?, ?)
		 ON CONFLICT (owner_id, year, month)
		 DO UPDATE SET used_count = usage_records.used_count + 1, updated_at = ?`,
		id,
		ownerID,
		year,
		month,
		now,
		now,
		now,
	).Error
}

func (r *repo) UpsertAddBonus(ctx context.Context, db *gorm.DB, id snowflake.ID, ownerID snowflake.ID, year, month, amount int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_records (id, owner_id, year, month, used_count, bonus_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?, ?)
		 ON CONFLICT (owner_id, year, month)
		 DO UPDATE SET bonus_count = usage_records.bonus_count + ?, updated_at = ?`,
		id,
		ownerID,
		year,
		month,
		amount,
		now,
		now,
		amount,
		now,
	).Error
}

func (r *repo) InsertRollover(ctx context.Context, db *gorm.DB, rollover *domain.Rollover) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO quota_rollovers (id, owner_id, event_id, amount, year, month, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rollover.ID,
		rollover.OwnerID,
		rollover.EventID,
		rollover.Amount,
		rollover.Year,
		rollover.Month,
		rollover.CreatedAt,
	).Error
}

func (r *repo) FindRollover(ctx context.Context, db *gorm.DB, eventID string) (*domain.Rollover, error) {
	var rollover domain.Rollover
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_id, event_id, amount, year, month, created_at
		 FROM quota_rollovers WHERE event_id = ?`,
		eventID,
	).Scan(&rollover).Error
	if err != nil {
		return nil, err
	}
	if rollover.ID == 0 {
		return nil, nil
	}
	return &rollover, nil
}
