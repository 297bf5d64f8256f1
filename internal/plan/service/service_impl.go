package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskforge/internal/clock"
	"github.com/smallbiznis/taskforge/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) List(ctx context.Context) ([]*domain.Plan, error) {
	return s.repo.ListPlans(ctx, s.db)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Plan, error) {
	plan, err := s.repo.FindPlanByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Plan, error) {
	plan, err := s.repo.FindPlanByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) Resolve(ctx context.Context, ownerID snowflake.ID, hint *snowflake.ID) (*domain.Plan, error) {
	if hint != nil {
		plan, err := s.repo.FindPlanByID(ctx, s.db, *hint)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			return plan, nil
		}
		s.log.Warn("plan hint does not resolve, falling back",
			zap.Int64("owner_id", int64(ownerID)),
			zap.Int64("plan_id", int64(*hint)))
	}

	sub, err := s.repo.FindActiveSubscription(ctx, s.db, ownerID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		plan, err := s.repo.FindPlanByID(ctx, s.db, sub.PlanID)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			return plan, nil
		}
	}

	return s.GetByCode(ctx, domain.FreePlanCode)
}

func (s *Service) ActiveSubscription(ctx context.Context, ownerID snowflake.ID) (*domain.Subscription, error) {
	return s.repo.FindActiveSubscription(ctx, s.db, ownerID)
}

func (s *Service) Subscribe(ctx context.Context, ownerID, planID snowflake.ID) (*domain.Subscription, error) {
	plan, err := s.Get(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sub := &domain.Subscription{
		ID:        s.genID.Generate(),
		OwnerID:   ownerID,
		PlanID:    plan.ID,
		Status:    domain.SubscriptionStatusActive,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CancelActiveSubscriptions(ctx, tx, ownerID, now); err != nil {
			return fmt.Errorf("cancel previous subscriptions: %w", err)
		}
		return s.repo.InsertSubscription(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}
