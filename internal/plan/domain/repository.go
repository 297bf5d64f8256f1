package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListPlans(ctx context.Context, db *gorm.DB) ([]*Plan, error)
	FindPlanByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	FindPlanByCode(ctx context.Context, db *gorm.DB, code string) (*Plan, error)

	InsertSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindActiveSubscription(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*Subscription, error)
	CancelActiveSubscriptions(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, at time.Time) error
}
