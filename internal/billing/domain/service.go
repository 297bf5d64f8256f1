// Package domain defines the thin billing boundary: credit packs and the
// downgrade path. Checkout-session creation and webhook signature checks
// live outside this service.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// CreditPackEvent is a completed credit-pack purchase, already verified
// upstream.
type CreditPackEvent struct {
	EventID string `json:"event_id"`
	Credits int    `json:"credits"`
}

type Service interface {
	// ApplyCreditPack adds the purchased credits to this month's bonus,
	// at most once per event id.
	ApplyCreditPack(ctx context.Context, ownerID snowflake.ID, event CreditPackEvent) error
	// DowngradeToFree cancels the active subscription and rolls its unused
	// allotment into bonus credits. Returns the bonus granted.
	DowngradeToFree(ctx context.Context, ownerID snowflake.ID) (int, error)
}

var (
	ErrInvalidEvent   = errors.New("invalid_billing_event")
	ErrNoSubscription = errors.New("no_active_subscription")
)
