// Package domain contains the subscription plan reference data.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Plan describes what a subscription tier allows. The unlimited flag is
// explicit: AIQuota is meaningful only when Unlimited is false, and a
// quota of 0 disables decomposition entirely.
type Plan struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	AIQuota   int          `gorm:"not null;default:0" json:"ai_quota"`
	Unlimited bool         `gorm:"not null;default:false" json:"unlimited"`
	PriceJPY  int64        `gorm:"not null;default:0" json:"price_jpy"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "subscription_plans" }

// Subscription records which plan a user is on. Cancelling flips Status and
// is what triggers the quota rollover.
type Subscription struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OwnerID    snowflake.ID `gorm:"not null;index" json:"owner_id"`
	PlanID     snowflake.ID `gorm:"not null" json:"plan_id"`
	Status     string       `gorm:"type:text;not null" json:"status"`
	StartedAt  time.Time    `gorm:"not null" json:"started_at"`
	CanceledAt *time.Time   `gorm:"" json:"canceled_at"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

const (
	SubscriptionStatusActive    = "ACTIVE"
	SubscriptionStatusCancelled = "CANCELLED"
)
