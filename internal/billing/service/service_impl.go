package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskforge/internal/billing/domain"
	"github.com/smallbiznis/taskforge/internal/clock"
	plandomain "github.com/smallbiznis/taskforge/internal/plan/domain"
	quotadomain "github.com/smallbiznis/taskforge/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	QuotaSvc quotadomain.Service
	PlanSvc  plandomain.Service
	PlanRepo plandomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	quotasvc quotadomain.Service
	plansvc  plandomain.Service
	planrepo plandomain.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("billing.service"),
		clock:    p.Clock,
		quotasvc: p.QuotaSvc,
		plansvc:  p.PlanSvc,
		planrepo: p.PlanRepo,
	}
}

func (s *Service) ApplyCreditPack(ctx context.Context, ownerID snowflake.ID, event domain.CreditPackEvent) error {
	if strings.TrimSpace(event.EventID) == "" || event.Credits <= 0 {
		return domain.ErrInvalidEvent
	}

	granted, err := s.quotasvc.GrantBonusOnce(ctx, s.db, ownerID, "credit-pack:"+event.EventID, event.Credits, s.clock.Now())
	if err != nil {
		return err
	}
	if !granted {
		s.log.Info("credit pack already applied", zap.String("event_id", event.EventID))
		return nil
	}

	s.log.Info("credit pack applied",
		zap.String("event_id", event.EventID),
		zap.Int64("owner_id", int64(ownerID)),
		zap.Int("credits", event.Credits))
	return nil
}

// DowngradeToFree cancels the active subscription and rolls the unused
// allotment of its plan into this month's bonus. The cancellation and the
// rollover share one transaction; the subscription id keys the rollover so
// a double-submitted downgrade grants nothing twice.
func (s *Service) DowngradeToFree(ctx context.Context, ownerID snowflake.ID) (int, error) {
	sub, err := s.plansvc.ActiveSubscription(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if sub == nil {
		return 0, domain.ErrNoSubscription
	}

	oldPlan, err := s.plansvc.Get(ctx, sub.PlanID)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	var granted int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eventID := fmt.Sprintf("downgrade:%d", sub.ID)
		amount, err := s.quotasvc.RolloverOnDowngrade(ctx, tx, ownerID, oldPlan, eventID, now)
		if err != nil {
			return err
		}
		granted = amount
		return s.planrepo.CancelActiveSubscriptions(ctx, tx, ownerID, now)
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("downgraded to free",
		zap.Int64("owner_id", int64(ownerID)),
		zap.Int("bonus_granted", granted))
	return granted, nil
}
