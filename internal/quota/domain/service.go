package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/taskforge/internal/plan/domain"
	"gorm.io/gorm"
)

// FreeBaselineBonus is granted when an unlimited plan rolls down to a
// limited one: "remaining of unlimited" is undefined, so a fixed baseline
// stands in for the unused allotment.
const FreeBaselineBonus = 450

// Snapshot is the caller-facing view of this month's allowance.
type Snapshot struct {
	PlanID         snowflake.ID `json:"plan_id"`
	PlanName       string       `json:"plan_name"`
	Unlimited      bool         `json:"unlimited"`
	Remaining      *int         `json:"remaining"`
	Used           int          `json:"used"`
	Bonus          int          `json:"bonus"`
	AIConfigured   bool         `json:"ai_configured"`
	ResetDate      string       `json:"reset_date"`
	DaysUntilReset int          `json:"days_until_reset"`
}

// Service is the credit ledger: it gates decomposition calls against the
// month's allowance and accounts for usage, bonuses, and downgrade
// rollover. Mutating methods take the *gorm.DB so they compose under the
// orchestrator's transaction.
type Service interface {
	// Remaining returns max(0, quota+bonus-used); unlimited plans report
	// unlimited=true and remaining 0.
	Remaining(ctx context.Context, ownerID snowflake.ID, plan *plandomain.Plan, now time.Time) (remaining int, unlimited bool, err error)
	// CheckAndReserve fails with ErrServiceUnavailable when the provider
	// credential is absent and ErrQuotaExceeded when nothing remains. It
	// never mutates state: the increment happens after a successful call.
	CheckAndReserve(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, plan *plandomain.Plan, now time.Time) error
	RecordUsage(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, now time.Time) error
	AddBonus(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, now time.Time, amount int) error
	// GrantBonusOnce adds amount at most once per eventID; it reports
	// whether this call performed the grant.
	GrantBonusOnce(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, eventID string, amount int, now time.Time) (bool, error)
	// RolloverOnDowngrade converts the unused portion of oldPlan into bonus
	// credits, at most once per eventID. Returns the amount granted (0 when
	// the event was already applied).
	RolloverOnDowngrade(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, oldPlan *plandomain.Plan, eventID string, now time.Time) (int, error)
	Snapshot(ctx context.Context, ownerID snowflake.ID, planHint *snowflake.ID, now time.Time) (*Snapshot, error)
}

var (
	ErrQuotaExceeded      = errors.New("quota_exceeded")
	ErrServiceUnavailable = errors.New("ai_service_unavailable")
)
