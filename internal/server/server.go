package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/taskforge/internal/ai"
	"github.com/smallbiznis/taskforge/internal/billing"
	billingdomain "github.com/smallbiznis/taskforge/internal/billing/domain"
	"github.com/smallbiznis/taskforge/internal/clock"
	"github.com/smallbiznis/taskforge/internal/config"
	"github.com/smallbiznis/taskforge/internal/decompose"
	decomposedomain "github.com/smallbiznis/taskforge/internal/decompose/domain"
	"github.com/smallbiznis/taskforge/internal/holiday"
	holidaydomain "github.com/smallbiznis/taskforge/internal/holiday/domain"
	"github.com/smallbiznis/taskforge/internal/lock"
	"github.com/smallbiznis/taskforge/internal/metrics"
	"github.com/smallbiznis/taskforge/internal/plan"
	plandomain "github.com/smallbiznis/taskforge/internal/plan/domain"
	"github.com/smallbiznis/taskforge/internal/quota"
	quotadomain "github.com/smallbiznis/taskforge/internal/quota/domain"
	"github.com/smallbiznis/taskforge/internal/task"
	taskdomain "github.com/smallbiznis/taskforge/internal/task/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	metrics.Module,
	lock.Module,
	task.Module,
	plan.Module,
	quota.Module,
	ai.Module,
	decompose.Module,
	billing.Module,
	holiday.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	genID        *snowflake.Node
	tasksvc      taskdomain.Service
	plansvc      plandomain.Service
	quotasvc     quotadomain.Service
	decomposesvc decomposedomain.Service
	billingsvc   billingdomain.Service
	holidaysvc   holidaydomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	GenID        *snowflake.Node
	TaskSvc      taskdomain.Service
	PlanSvc      plandomain.Service
	QuotaSvc     quotadomain.Service
	DecomposeSvc decomposedomain.Service
	BillingSvc   billingdomain.Service
	HolidaySvc   holidaydomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		log:          p.Log.Named("server"),
		clock:        p.Clock,
		genID:        p.GenID,
		tasksvc:      p.TaskSvc,
		plansvc:      p.PlanSvc,
		quotasvc:     p.QuotaSvc,
		decomposesvc: p.DecomposeSvc,
		billingsvc:   p.BillingSvc,
		holidaysvc:   p.HolidaySvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Tasks --------
	api.GET("/tasks", s.AuthRequired(), s.ListTasks)
	api.GET("/tasks/tree", s.AuthRequired(), s.GetTaskTree)
	api.POST("/tasks", s.AuthRequired(), s.CreateTask)
	api.GET("/tasks/:id", s.AuthRequired(), s.GetTaskByID)
	api.GET("/tasks/:id/tree", s.AuthRequired(), s.GetTaskSubtree)
	api.PUT("/tasks/:id", s.AuthRequired(), s.UpdateTask)
	api.DELETE("/tasks/:id", s.AuthRequired(), s.DeleteTask)

	// -------- AI --------
	api.POST("/ai/tasks/:id/decompose", s.AuthRequired(), s.DecomposeTask)
	api.GET("/ai/quota", s.AuthRequired(), s.GetQuota)

	// -------- Subscriptions --------
	api.GET("/plans", s.ListPlans)
	api.POST("/subscriptions", s.AuthRequired(), s.Subscribe)

	// -------- Billing --------
	// Webhook is verified upstream and carries its own idempotency key.
	api.POST("/billing/webhooks/credit-pack", s.HandleCreditPackWebhook)
	api.POST("/billing/downgrade", s.AuthRequired(), s.DowngradeToFree)

	// -------- Holidays --------
	api.GET("/holidays", s.AuthRequired(), s.ListHolidays)
}
