package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	List(ctx context.Context) ([]*Plan, error)
	Get(ctx context.Context, id snowflake.ID) (*Plan, error)
	GetByCode(ctx context.Context, code string) (*Plan, error)
	// Resolve picks the plan for a caller: the token hint wins when present,
	// otherwise the active subscription, otherwise the free plan.
	Resolve(ctx context.Context, ownerID snowflake.ID, hint *snowflake.ID) (*Plan, error)
	ActiveSubscription(ctx context.Context, ownerID snowflake.ID) (*Subscription, error)
	Subscribe(ctx context.Context, ownerID, planID snowflake.ID) (*Subscription, error)
}

var (
	ErrPlanNotFound = errors.New("plan_not_found")
)

// FreePlanCode identifies the fallback tier every user can land on.
const FreePlanCode = "free"
