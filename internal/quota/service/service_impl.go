package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskforge/internal/config"
	plandomain "github.com/smallbiznis/taskforge/internal/plan/domain"
	"github.com/smallbiznis/taskforge/internal/quota/domain"
	pkgdb "github.com/smallbiznis/taskforge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	GenID   *snowflake.Node
	Repo    domain.Repository
	PlanSvc plandomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     config.Config
	genID   *snowflake.Node
	repo    domain.Repository
	plansvc plandomain.Service
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("quota.service"),
		cfg:     p.Cfg,
		genID:   p.GenID,
		repo:    p.Repo,
		plansvc: p.PlanSvc,
	}
}

func (s *Service) usage(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, now time.Time) (used, bonus int, err error) {
	record, err := s.repo.FindUsage(ctx, db, ownerID, now.Year(), int(now.Month()))
	if err != nil {
		return 0, 0, err
	}
	if record == nil {
		return 0, 0, nil
	}
	return record.UsedCount, record.BonusCount, nil
}

func (s *Service) Remaining(ctx context.Context, ownerID snowflake.ID, plan *plandomain.Plan, now time.Time) (int, bool, error) {
	return s.remaining(ctx, s.db, ownerID, plan, now)
}

func (s *Service) remaining(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, plan *plandomain.Plan, now time.Time) (int, bool, error) {
	if plan.Unlimited {
		return 0, true, nil
	}
	used, bonus, err := s.usage(ctx, db, ownerID, now)
	if err != nil {
		return 0, false, err
	}
	remaining := plan.AIQuota + bonus - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, false, nil
}

func (s *Service) CheckAndReserve(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, plan *plandomain.Plan, now time.Time) error {
	if !s.cfg.AIConfigured() {
		return domain.ErrServiceUnavailable
	}
	remaining, unlimited, err := s.remaining(ctx, db, ownerID, plan, now)
	if err != nil {
		return err
	}
	if unlimited {
		return nil
	}
	if remaining == 0 {
		return domain.ErrQuotaExceeded
	}
	return nil
}

func (s *Service) RecordUsage(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, now time.Time) error {
	err := s.repo.UpsertIncrementUsed(ctx, db, s.genID.Generate(), ownerID, now.Year(), int(now.Month()), now)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (s *Service) AddBonus(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, now time.Time, amount int) error {
	if amount < 0 {
		return fmt.Errorf("bonus amount cannot be negative: %d", amount)
	}
	err := s.repo.UpsertAddBonus(ctx, db, s.genID.Generate(), ownerID, now.Year(), int(now.Month()), amount, now)
	if err != nil {
		return fmt.Errorf("add bonus: %w", err)
	}
	return nil
}

// GrantBonusOnce writes an idempotency marker and the bonus grant in one
// transaction: a retried event either finds the marker or conflicts on
// it, never double-grants.
func (s *Service) GrantBonusOnce(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, eventID string, amount int, now time.Time) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("bonus amount cannot be negative: %d", amount)
	}

	existing, err := s.repo.FindRollover(ctx, db, eventID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		s.log.Info("bonus grant already applied",
			zap.String("event_id", eventID),
			zap.Int64("owner_id", int64(ownerID)))
		return false, nil
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marker := &domain.Rollover{
			ID:        s.genID.Generate(),
			OwnerID:   ownerID,
			EventID:   eventID,
			Amount:    amount,
			Year:      now.Year(),
			Month:     int(now.Month()),
			CreatedAt: now,
		}
		if err := s.repo.InsertRollover(ctx, tx, marker); err != nil {
			return err
		}
		if amount == 0 {
			return nil
		}
		return s.repo.UpsertAddBonus(ctx, tx, s.genID.Generate(), ownerID, now.Year(), int(now.Month()), amount, now)
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			// lost the race against a concurrent delivery of the same event
			return false, nil
		}
		return false, fmt.Errorf("grant bonus: %w", err)
	}
	return true, nil
}

// RolloverOnDowngrade converts the unused portion of the old plan into
// bonus credits, at most once per downgrade event. An unlimited plan has
// no meaningful "remaining", so it grants the fixed baseline instead.
func (s *Service) RolloverOnDowngrade(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, oldPlan *plandomain.Plan, eventID string, now time.Time) (int, error) {
	amount := domain.FreeBaselineBonus
	if !oldPlan.Unlimited {
		used, _, err := s.usage(ctx, db, ownerID, now)
		if err != nil {
			return 0, err
		}
		amount = oldPlan.AIQuota - used
		if amount < 0 {
			amount = 0
		}
	}

	granted, err := s.GrantBonusOnce(ctx, db, ownerID, eventID, amount, now)
	if err != nil {
		return 0, fmt.Errorf("rollover: %w", err)
	}
	if !granted {
		return 0, nil
	}

	s.log.Info("rollover applied",
		zap.String("event_id", eventID),
		zap.Int64("owner_id", int64(ownerID)),
		zap.Int("amount", amount))
	return amount, nil
}

func (s *Service) Snapshot(ctx context.Context, ownerID snowflake.ID, planHint *snowflake.ID, now time.Time) (*domain.Snapshot, error) {
	plan, err := s.plansvc.Resolve(ctx, ownerID, planHint)
	if err != nil {
		return nil, err
	}

	used, bonus, err := s.usage(ctx, s.db, ownerID, now)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.Snapshot{
		PlanID:       plan.ID,
		PlanName:     plan.Name,
		Unlimited:    plan.Unlimited,
		Used:         used,
		Bonus:        bonus,
		AIConfigured: s.cfg.AIConfigured(),
	}
	if !plan.Unlimited {
		remaining := plan.AIQuota + bonus - used
		if remaining < 0 {
			remaining = 0
		}
		snapshot.Remaining = &remaining
	}

	reset := s.resetDate(ctx, ownerID, now)
	snapshot.ResetDate = reset.Format("2006-01-02")
	days := int(reset.Sub(now.Truncate(24*time.Hour)).Hours() / 24)
	if days < 0 {
		days = 0
	}
	snapshot.DaysUntilReset = days

	return snapshot, nil
}

// resetDate anchors the monthly reset to the subscription start day,
// clamped to the target month's length; without a contract it falls back
// to the first of next month.
func (s *Service) resetDate(ctx context.Context, ownerID snowflake.ID, now time.Time) time.Time {
	sub, err := s.plansvc.ActiveSubscription(ctx, ownerID)
	if err != nil || sub == nil {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	}

	started := sub.StartedAt
	candidate := time.Date(started.Year(), started.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	lastDay := candidate.AddDate(0, 1, -1).Day()
	day := started.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(candidate.Year(), candidate.Month(), day, 0, 0, 0, 0, time.UTC)
}
