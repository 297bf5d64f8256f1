package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/taskforge/internal/config"
	plandomain "github.com/smallbiznis/taskforge/internal/plan/domain"
	"github.com/smallbiznis/taskforge/internal/quota/domain"
	"github.com/smallbiznis/taskforge/internal/quota/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type planStub struct {
	plan *plandomain.Plan
	sub  *plandomain.Subscription
}

func (p *planStub) List(ctx context.Context) ([]*plandomain.Plan, error) {
	return []*plandomain.Plan{p.plan}, nil
}

func (p *planStub) Get(ctx context.Context, id snowflake.ID) (*plandomain.Plan, error) {
	return p.plan, nil
}

func (p *planStub) GetByCode(ctx context.Context, code string) (*plandomain.Plan, error) {
	return p.plan, nil
}

func (p *planStub) Resolve(ctx context.Context, ownerID snowflake.ID, hint *snowflake.ID) (*plandomain.Plan, error) {
	return p.plan, nil
}

func (p *planStub) ActiveSubscription(ctx context.Context, ownerID snowflake.ID) (*plandomain.Subscription, error) {
	return p.sub, nil
}

func (p *planStub) Subscribe(ctx context.Context, ownerID, planID snowflake.ID) (*plandomain.Subscription, error) {
	return nil, nil
}

func limitedPlan(quota int) *plandomain.Plan {
	return &plandomain.Plan{ID: snowflake.ID(1), Code: "pro", Name: "Pro", AIQuota: quota}
}

func unlimitedPlan() *plandomain.Plan {
	return &plandomain.Plan{ID: snowflake.ID(2), Code: "unlimited", Name: "Unlimited", Unlimited: true}
}

func setupQuotaService(t *testing.T, cfg config.Config, plans *planStub) (domain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.UsageRecord{}, &domain.Rollover{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:      db,
		Log:     zap.NewNop(),
		Cfg:     cfg,
		GenID:   node,
		Repo:    repository.Provide(),
		PlanSvc: plans,
	})
	return svc, db
}

var testNow = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

func configuredAI() config.Config {
	return config.Config{OpenAIAPIKey: "sk-test"}
}

func TestRemainingClampsAtZero(t *testing.T) {
	svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: limitedPlan(5)})
	ctx := context.Background()
	owner := snowflake.ID(7)

	for i := 0; i < 7; i++ {
		require.NoError(t, svc.RecordUsage(ctx, db, owner, testNow))
	}

	remaining, unlimited, err := svc.Remaining(ctx, owner, limitedPlan(5), testNow)
	require.NoError(t, err)
	assert.False(t, unlimited)
	assert.Equal(t, 0, remaining)
}

func TestRemainingCountsBonus(t *testing.T) {
	svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: limitedPlan(5)})
	ctx := context.Background()
	owner := snowflake.ID(7)

	require.NoError(t, svc.RecordUsage(ctx, db, owner, testNow))
	require.NoError(t, svc.RecordUsage(ctx, db, owner, testNow))
	require.NoError(t, svc.AddBonus(ctx, db, owner, testNow, 3))

	remaining, _, err := svc.Remaining(ctx, owner, limitedPlan(5), testNow)
	require.NoError(t, err)
	assert.Equal(t, 6, remaining)
}

func TestRemainingResetsEachMonth(t *testing.T) {
	svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: limitedPlan(5)})
	ctx := context.Background()
	owner := snowflake.ID(7)

	require.NoError(t, svc.RecordUsage(ctx, db, owner, testNow))

	nextMonth := testNow.AddDate(0, 1, 0)
	remaining, _, err := svc.Remaining(ctx, owner, limitedPlan(5), nextMonth)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)
}

func TestCheckAndReserve(t *testing.T) {
	ctx := context.Background()
	owner := snowflake.ID(7)

	t.Run("missing credential", func(t *testing.T) {
		svc, db := setupQuotaService(t, config.Config{}, &planStub{plan: limitedPlan(5)})
		err := svc.CheckAndReserve(ctx, db, owner, limitedPlan(5), testNow)
		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	})

	t.Run("exhausted quota", func(t *testing.T) {
		svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: limitedPlan(0)})
		err := svc.CheckAndReserve(ctx, db, owner, limitedPlan(0), testNow)
		assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	})

	t.Run("unlimited always passes", func(t *testing.T) {
		svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: unlimitedPlan()})
		assert.NoError(t, svc.CheckAndReserve(ctx, db, owner, unlimitedPlan(), testNow))
	})

	t.Run("never mutates the ledger", func(t *testing.T) {
		svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: limitedPlan(5)})
		require.NoError(t, svc.CheckAndReserve(ctx, db, owner, limitedPlan(5), testNow))

		remaining, _, err := svc.Remaining(ctx, owner, limitedPlan(5), testNow)
		require.NoError(t, err)
		assert.Equal(t, 5, remaining)
	})
}

func TestRecordUsageUpserts(t *testing.T) {
	svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: limitedPlan(10)})
	ctx := context.Background()
	owner := snowflake.ID(7)

	require.NoError(t, svc.RecordUsage(ctx, db, owner, testNow))
	require.NoError(t, svc.RecordUsage(ctx, db, owner, testNow))

	var count int64
	require.NoError(t, db.Model(&domain.UsageRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	remaining, _, err := svc.Remaining(ctx, owner, limitedPlan(10), testNow)
	require.NoError(t, err)
	assert.Equal(t, 8, remaining)
}

func TestGrantBonusOnce(t *testing.T) {
	svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: limitedPlan(10)})
	ctx := context.Background()
	owner := snowflake.ID(7)

	granted, err := svc.GrantBonusOnce(ctx, db, owner, "credit-pack:evt_1", 25, testNow)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = svc.GrantBonusOnce(ctx, db, owner, "credit-pack:evt_1", 25, testNow)
	require.NoError(t, err)
	assert.False(t, granted)

	remaining, _, err := svc.Remaining(ctx, owner, limitedPlan(10), testNow)
	require.NoError(t, err)
	assert.Equal(t, 35, remaining)
}

func TestRolloverOnDowngrade(t *testing.T) {
	ctx := context.Background()
	owner := snowflake.ID(7)

	t.Run("limited plan carries the unused allotment", func(t *testing.T) {
		svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: limitedPlan(100)})
		for i := 0; i < 30; i++ {
			require.NoError(t, svc.RecordUsage(ctx, db, owner, testNow))
		}

		amount, err := svc.RolloverOnDowngrade(ctx, db, owner, limitedPlan(100), "downgrade:1", testNow)
		require.NoError(t, err)
		assert.Equal(t, 70, amount)
	})

	t.Run("overdrawn plan rolls zero", func(t *testing.T) {
		svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: limitedPlan(2)})
		for i := 0; i < 5; i++ {
			require.NoError(t, svc.RecordUsage(ctx, db, owner, testNow))
		}

		amount, err := svc.RolloverOnDowngrade(ctx, db, owner, limitedPlan(2), "downgrade:2", testNow)
		require.NoError(t, err)
		assert.Equal(t, 0, amount)
	})

	t.Run("unlimited plan grants the baseline", func(t *testing.T) {
		svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: unlimitedPlan()})

		amount, err := svc.RolloverOnDowngrade(ctx, db, owner, unlimitedPlan(), "downgrade:3", testNow)
		require.NoError(t, err)
		assert.Equal(t, domain.FreeBaselineBonus, amount)
	})

	t.Run("repeated event grants nothing", func(t *testing.T) {
		svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: limitedPlan(100)})

		amount, err := svc.RolloverOnDowngrade(ctx, db, owner, limitedPlan(100), "downgrade:4", testNow)
		require.NoError(t, err)
		assert.Equal(t, 100, amount)

		amount, err = svc.RolloverOnDowngrade(ctx, db, owner, limitedPlan(100), "downgrade:4", testNow)
		require.NoError(t, err)
		assert.Equal(t, 0, amount)

		remaining, _, err := svc.Remaining(ctx, owner, limitedPlan(100), testNow)
		require.NoError(t, err)
		assert.Equal(t, 200, remaining)
	})
}

func TestSnapshotLimitedPlan(t *testing.T) {
	svc, db := setupQuotaService(t, configuredAI(), &planStub{plan: limitedPlan(10)})
	ctx := context.Background()
	owner := snowflake.ID(7)

	require.NoError(t, svc.RecordUsage(ctx, db, owner, testNow))
	require.NoError(t, svc.AddBonus(ctx, db, owner, testNow, 2))

	snapshot, err := svc.Snapshot(ctx, owner, nil, testNow)
	require.NoError(t, err)

	assert.Equal(t, "Pro", snapshot.PlanName)
	assert.False(t, snapshot.Unlimited)
	require.NotNil(t, snapshot.Remaining)
	assert.Equal(t, 11, *snapshot.Remaining)
	assert.Equal(t, 1, snapshot.Used)
	assert.Equal(t, 2, snapshot.Bonus)
	assert.True(t, snapshot.AIConfigured)

	// no subscription on record, so the window resets on the first of next month
	assert.Equal(t, "2025-07-01", snapshot.ResetDate)
	assert.Equal(t, 16, snapshot.DaysUntilReset)
}

func TestSnapshotUnlimitedPlanOmitsRemaining(t *testing.T) {
	svc, _ := setupQuotaService(t, configuredAI(), &planStub{plan: unlimitedPlan()})

	snapshot, err := svc.Snapshot(context.Background(), snowflake.ID(7), nil, testNow)
	require.NoError(t, err)
	assert.True(t, snapshot.Unlimited)
	assert.Nil(t, snapshot.Remaining)
}

func TestSnapshotAnchorsResetToSubscriptionStart(t *testing.T) {
	started := time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC)
	stub := &planStub{
		plan: limitedPlan(10),
		sub: &plandomain.Subscription{
			ID:        snowflake.ID(9),
			OwnerID:   snowflake.ID(7),
			PlanID:    snowflake.ID(1),
			Status:    plandomain.SubscriptionStatusActive,
			StartedAt: started,
		},
	}
	svc, _ := setupQuotaService(t, configuredAI(), stub)

	snapshot, err := svc.Snapshot(context.Background(), snowflake.ID(7), nil, testNow)
	require.NoError(t, err)

	// started on the 31st, June only has 30 days
	assert.Equal(t, "2025-06-30", snapshot.ResetDate)
	assert.Equal(t, 15, snapshot.DaysUntilReset)
}
