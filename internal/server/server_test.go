package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	billingdomain "github.com/smallbiznis/taskforge/internal/billing/domain"
	"github.com/smallbiznis/taskforge/internal/clock"
	"github.com/smallbiznis/taskforge/internal/config"
	decomposedomain "github.com/smallbiznis/taskforge/internal/decompose/domain"
	holidaydomain "github.com/smallbiznis/taskforge/internal/holiday/domain"
	plandomain "github.com/smallbiznis/taskforge/internal/plan/domain"
	quotadomain "github.com/smallbiznis/taskforge/internal/quota/domain"
	taskdomain "github.com/smallbiznis/taskforge/internal/task/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type fakeTaskService struct {
	task *taskdomain.Task
	node *taskdomain.TreeNode
	err  error
}

func (f *fakeTaskService) List(ctx context.Context, ownerID snowflake.ID) ([]*taskdomain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*taskdomain.Task{f.task}, nil
}

func (f *fakeTaskService) Tree(ctx context.Context, ownerID snowflake.ID) ([]*taskdomain.TreeNode, error) {
	return []*taskdomain.TreeNode{f.node}, f.err
}

func (f *fakeTaskService) Subtree(ctx context.Context, ownerID, id snowflake.ID) (*taskdomain.TreeNode, error) {
	return f.node, f.err
}

func (f *fakeTaskService) Get(ctx context.Context, ownerID, id snowflake.ID) (*taskdomain.Task, error) {
	return f.task, f.err
}

func (f *fakeTaskService) Create(ctx context.Context, ownerID snowflake.ID, req taskdomain.CreateTaskRequest) (*taskdomain.Task, error) {
	return f.task, f.err
}

func (f *fakeTaskService) Update(ctx context.Context, ownerID, id snowflake.ID, req taskdomain.UpdateTaskRequest) (*taskdomain.Task, error) {
	return f.task, f.err
}

func (f *fakeTaskService) DeleteSubtree(ctx context.Context, ownerID, id snowflake.ID) error {
	return f.err
}

func (f *fakeTaskService) DepthOf(ctx context.Context, ownerID, id snowflake.ID) (int, error) {
	return 1, f.err
}

func (f *fakeTaskService) CanAddChildUnder(ctx context.Context, ownerID, parentID snowflake.ID) (bool, error) {
	return true, f.err
}

func (f *fakeTaskService) CreateChildTx(ctx context.Context, tx *gorm.DB, ownerID, parentID snowflake.ID, fields taskdomain.NewChild) (*taskdomain.Task, error) {
	return f.task, f.err
}

func (f *fakeTaskService) DeleteDescendantsTx(ctx context.Context, tx *gorm.DB, ownerID, id snowflake.ID) error {
	return f.err
}

func (f *fakeTaskService) StampDecomposedTx(ctx context.Context, tx *gorm.DB, ownerID, id snowflake.ID, at time.Time) error {
	return f.err
}

type fakeDecomposeService struct {
	node *taskdomain.TreeNode
	err  error
}

func (f *fakeDecomposeService) Decompose(ctx context.Context, ownerID, taskID snowflake.ID, req decomposedomain.Request, planHint *snowflake.ID) (*taskdomain.TreeNode, error) {
	return f.node, f.err
}

type fakeQuotaService struct {
	snapshot *quotadomain.Snapshot
	hint     *snowflake.ID
	err      error
}

func (f *fakeQuotaService) Remaining(ctx context.Context, ownerID snowflake.ID, plan *plandomain.Plan, now time.Time) (int, bool, error) {
	return 0, false, f.err
}

func (f *fakeQuotaService) CheckAndReserve(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, plan *plandomain.Plan, now time.Time) error {
	return f.err
}

func (f *fakeQuotaService) RecordUsage(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, now time.Time) error {
	return f.err
}

func (f *fakeQuotaService) AddBonus(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, now time.Time, amount int) error {
	return f.err
}

func (f *fakeQuotaService) GrantBonusOnce(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, eventID string, amount int, now time.Time) (bool, error) {
	return true, f.err
}

func (f *fakeQuotaService) RolloverOnDowngrade(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, oldPlan *plandomain.Plan, eventID string, now time.Time) (int, error) {
	return 0, f.err
}

func (f *fakeQuotaService) Snapshot(ctx context.Context, ownerID snowflake.ID, planHint *snowflake.ID, now time.Time) (*quotadomain.Snapshot, error) {
	f.hint = planHint
	return f.snapshot, f.err
}

type fakePlanService struct {
	plan *plandomain.Plan
	sub  *plandomain.Subscription
	err  error
}

func (f *fakePlanService) List(ctx context.Context) ([]*plandomain.Plan, error) {
	return []*plandomain.Plan{f.plan}, f.err
}

func (f *fakePlanService) Get(ctx context.Context, id snowflake.ID) (*plandomain.Plan, error) {
	return f.plan, f.err
}

func (f *fakePlanService) GetByCode(ctx context.Context, code string) (*plandomain.Plan, error) {
	return f.plan, f.err
}

func (f *fakePlanService) Resolve(ctx context.Context, ownerID snowflake.ID, hint *snowflake.ID) (*plandomain.Plan, error) {
	return f.plan, f.err
}

func (f *fakePlanService) ActiveSubscription(ctx context.Context, ownerID snowflake.ID) (*plandomain.Subscription, error) {
	return f.sub, f.err
}

func (f *fakePlanService) Subscribe(ctx context.Context, ownerID, planID snowflake.ID) (*plandomain.Subscription, error) {
	return f.sub, f.err
}

type fakeBillingService struct {
	granted int
	err     error
	applied []billingdomain.CreditPackEvent
}

func (f *fakeBillingService) ApplyCreditPack(ctx context.Context, ownerID snowflake.ID, event billingdomain.CreditPackEvent) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, event)
	return nil
}

func (f *fakeBillingService) DowngradeToFree(ctx context.Context, ownerID snowflake.ID) (int, error) {
	return f.granted, f.err
}

type fakeHolidayService struct {
	holidays []holidaydomain.Holiday
	err      error
}

func (f *fakeHolidayService) List(ctx context.Context, country string, year int) ([]holidaydomain.Holiday, error) {
	return f.holidays, f.err
}

type serverFixture struct {
	server    *Server
	task      *fakeTaskService
	decompose *fakeDecomposeService
	quota     *fakeQuotaService
	plan      *fakePlanService
	billing   *fakeBillingService
	holiday   *fakeHolidayService
}

func setupServer(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	taskFake := &fakeTaskService{
		task: &taskdomain.Task{ID: snowflake.ID(1), OwnerID: snowflake.ID(42), Title: "a task"},
		node: &taskdomain.TreeNode{
			Task:     taskdomain.Task{ID: snowflake.ID(1), Title: "a task"},
			Children: []*taskdomain.TreeNode{},
		},
	}
	decomposeFake := &fakeDecomposeService{node: taskFake.node}
	remaining := 5
	quotaFake := &fakeQuotaService{snapshot: &quotadomain.Snapshot{
		PlanName:     "Pro",
		Remaining:    &remaining,
		Used:         3,
		AIConfigured: true,
		ResetDate:    "2025-07-01",
	}}
	planFake := &fakePlanService{plan: &plandomain.Plan{ID: snowflake.ID(1), Code: "pro", Name: "Pro"}}
	billingFake := &fakeBillingService{granted: 70}
	holidayFake := &fakeHolidayService{holidays: []holidaydomain.Holiday{{Date: "2025-01-01", Name: "New Year's Day"}}}

	srv := NewServer(ServerParams{
		Gin:          NewEngine(),
		Cfg:          config.Config{AuthJWTSecret: testSecret},
		Log:          zap.NewNop(),
		Clock:        clock.NewFakeClock(time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)),
		TaskSvc:      taskFake,
		PlanSvc:      planFake,
		QuotaSvc:     quotaFake,
		DecomposeSvc: decomposeFake,
		BillingSvc:   billingFake,
		HolidaySvc:   holidayFake,
	})

	return &serverFixture{
		server:    srv,
		task:      taskFake,
		decompose: decomposeFake,
		quota:     quotaFake,
		plan:      planFake,
		billing:   billingFake,
		holiday:   holidayFake,
	}
}

func bearerToken(t *testing.T, ownerID snowflake.ID) string {
	return bearerTokenWithClaims(t, ownerID, nil)
}

func bearerTokenWithClaims(t *testing.T, ownerID snowflake.ID, extra jwt.MapClaims) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": ownerID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (f *serverFixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodGet, "/api/tasks", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/tasks", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/tasks", nil, bearerToken(t, snowflake.ID(42)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDecomposeErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"task missing", taskdomain.ErrNotFound, http.StatusNotFound},
		{"quota exhausted", quotadomain.ErrQuotaExceeded, http.StatusPaymentRequired},
		{"provider unavailable", quotadomain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"nothing usable generated", decomposedomain.ErrDecompositionFailed, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupServer(t)
			f.decompose.err = tt.err

			w := f.do(t, http.MethodPost, "/api/ai/tasks/1/decompose", nil, bearerToken(t, snowflake.ID(42)))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestDecomposeSuccess(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodPost, "/api/ai/tasks/1/decompose", decomposedomain.Request{Title: "override"}, bearerToken(t, snowflake.ID(42)))
	require.Equal(t, http.StatusOK, w.Code)

	var node taskdomain.TreeNode
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &node))
	assert.Equal(t, "a task", node.Title)
}

func TestCreateTaskValidationMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"invalid parent", taskdomain.ErrInvalidParent},
		{"depth exceeded", taskdomain.ErrDepthExceeded},
		{"blank title", taskdomain.ErrInvalidTitle},
		{"bad due date", taskdomain.ErrInvalidDue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupServer(t)
			f.task.err = tt.err

			w := f.do(t, http.MethodPost, "/api/tasks", taskdomain.CreateTaskRequest{Title: "x"}, bearerToken(t, snowflake.ID(42)))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetQuotaSnapshot(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodGet, "/api/ai/quota", nil, bearerToken(t, snowflake.ID(42)))
	require.Equal(t, http.StatusOK, w.Code)

	var snapshot quotadomain.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, "Pro", snapshot.PlanName)
	require.NotNil(t, snapshot.Remaining)
	assert.Equal(t, 5, *snapshot.Remaining)
}

func TestPlanHintClaimForms(t *testing.T) {
	want := snowflake.ID(7)
	tests := []struct {
		name   string
		claims jwt.MapClaims
		hint   *snowflake.ID
	}{
		{"absent", nil, nil},
		{"string", jwt.MapClaims{"plan_id": "7"}, &want},
		{"number", jwt.MapClaims{"plan_id": 7}, &want},
		{"garbage", jwt.MapClaims{"plan_id": "not-an-id"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupServer(t)

			token := bearerTokenWithClaims(t, snowflake.ID(42), tt.claims)
			w := f.do(t, http.MethodGet, "/api/ai/quota", nil, token)
			require.Equal(t, http.StatusOK, w.Code)

			if tt.hint == nil {
				assert.Nil(t, f.quota.hint)
			} else {
				require.NotNil(t, f.quota.hint)
				assert.Equal(t, *tt.hint, *f.quota.hint)
			}
		})
	}
}

func TestCreditPackWebhook(t *testing.T) {
	f := setupServer(t)

	// webhook carries its own identity, no bearer token
	w := f.do(t, http.MethodPost, "/api/billing/webhooks/credit-pack", creditPackWebhook{
		EventID: "evt_1",
		OwnerID: snowflake.ID(42).String(),
		Credits: 50,
	}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.billing.applied, 1)
	assert.Equal(t, "evt_1", f.billing.applied[0].EventID)

	w = f.do(t, http.MethodPost, "/api/billing/webhooks/credit-pack", creditPackWebhook{
		EventID: "evt_2",
		OwnerID: "not-an-id",
		Credits: 50,
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDowngradeEndpoint(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodPost, "/api/billing/downgrade", nil, bearerToken(t, snowflake.ID(42)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "70")

	f.billing.err = billingdomain.ErrNoSubscription
	w = f.do(t, http.MethodPost, "/api/billing/downgrade", nil, bearerToken(t, snowflake.ID(42)))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListHolidays(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodGet, "/api/holidays?country=JP&year=2025", nil, bearerToken(t, snowflake.ID(42)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "New Year's Day")
}

func TestHealth(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
