package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskforge/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListPlans(ctx context.Context, db *gorm.DB) ([]*domain.Plan, error) {
	var plans []*domain.Plan
	err := db.WithContext(ctx).
		Model(&domain.Plan{}).
		Order("price_jpy asc, id asc").
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repo) FindPlanByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, ai_quota, unlimited, price_jpy, created_at, updated_at
		 FROM subscription_plans WHERE id = ?`,
		id,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) FindPlanByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, ai_quota, unlimited, price_jpy, created_at, updated_at
		 FROM subscription_plans WHERE code = ?`,
		code,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) InsertSubscription(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (id, owner_id, plan_id, status, started_at, canceled_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.OwnerID,
		sub.PlanID,
		sub.Status,
		sub.StartedAt,
		sub.CanceledAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) FindActiveSubscription(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_id, plan_id, status, started_at, canceled_at, created_at, updated_at
		 FROM subscriptions WHERE owner_id = ? AND status = ?
		 ORDER BY started_at DESC LIMIT 1`,
		ownerID,
		domain.SubscriptionStatusActive,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *repo) CancelActiveSubscriptions(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, canceled_at = ?, updated_at = ?
		 WHERE owner_id = ? AND status = ?`,
		domain.SubscriptionStatusCancelled,
		at,
		at,
		ownerID,
		domain.SubscriptionStatusActive,
	).Error
}
