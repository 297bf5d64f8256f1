package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	aidomain "github.com/smallbiznis/taskforge/internal/ai/domain"
	"github.com/smallbiznis/taskforge/internal/clock"
	"github.com/smallbiznis/taskforge/internal/decompose/domain"
	"github.com/smallbiznis/taskforge/internal/lock"
	"github.com/smallbiznis/taskforge/internal/metrics"
	plandomain "github.com/smallbiznis/taskforge/internal/plan/domain"
	quotadomain "github.com/smallbiznis/taskforge/internal/quota/domain"
	taskdomain "github.com/smallbiznis/taskforge/internal/task/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// lockTTL bounds how long a crashed worker can hold a task's decompose
// lock.
const lockTTL = 2 * time.Minute

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	TaskSvc   taskdomain.Service
	QuotaSvc  quotadomain.Service
	PlanSvc   plandomain.Service
	Generator aidomain.Generator
	Clock     clock.Clock
	Locker    *lock.Locker     `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	tasksvc   taskdomain.Service
	quotasvc  quotadomain.Service
	plansvc   plandomain.Service
	generator aidomain.Generator
	clock     clock.Clock
	locker    *lock.Locker
	metrics   *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("decompose.service"),
		tasksvc:   p.TaskSvc,
		quotasvc:  p.QuotaSvc,
		plansvc:   p.PlanSvc,
		generator: p.Generator,
		clock:     p.Clock,
		locker:    p.Locker,
		metrics:   p.Metrics,
	}
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.DecomposeTotal.WithLabelValues(result).Inc()
	}
}

// Decompose clears the task's stale descendants and materializes freshly
// generated children in one transaction. The external call is not rolled
// back: a retried request may call upstream twice, but DB effects stay
// atomic.
func (s *Service) Decompose(ctx context.Context, ownerID, taskID snowflake.ID, req domain.Request, planHint *snowflake.ID) (*taskdomain.TreeNode, error) {
	task, err := s.tasksvc.Get(ctx, ownerID, taskID)
	if err != nil {
		s.count("not_found")
		return nil, err
	}

	depth, err := s.tasksvc.DepthOf(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if depth >= taskdomain.MaxDepth {
		// a node at the cap keeps its current content; this is a skip,
		// not an error
		s.count("skipped_depth")
		return s.tasksvc.Subtree(ctx, ownerID, taskID)
	}

	plan, err := s.plansvc.Resolve(ctx, ownerID, planHint)
	if err != nil {
		return nil, err
	}

	genReq := effectiveRequest(task, req)

	if s.locker != nil {
		key := fmt.Sprintf("decompose:%d", taskID)
		token, ok, lockErr := s.locker.TryLock(ctx, key, lockTTL)
		if lockErr != nil {
			s.log.Warn("decompose lock unavailable, proceeding unlocked", zap.Error(lockErr))
		} else if !ok {
			s.log.Warn("concurrent decompose detected, proceeding last-writer-wins",
				zap.Int64("task_id", int64(taskID)))
		} else {
			defer func() {
				if err := s.locker.Release(ctx, key, token); err != nil {
					s.log.Warn("decompose lock release failed", zap.Error(err))
				}
			}()
		}
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tasksvc.DeleteDescendantsTx(ctx, tx, ownerID, taskID); err != nil {
			return err
		}

		if err := s.quotasvc.CheckAndReserve(ctx, tx, ownerID, plan, now); err != nil {
			return err
		}

		items, err := s.generator.GenerateSubTasks(ctx, genReq)
		if err != nil {
			if errors.Is(err, aidomain.ErrNotConfigured) {
				return quotadomain.ErrServiceUnavailable
			}
			s.log.Warn("generation failed", zap.Error(err))
			return domain.ErrDecompositionFailed
		}
		if len(items) == 0 {
			return domain.ErrDecompositionFailed
		}

		for i, item := range items {
			title := item.Title
			if title == "" {
				title = fmt.Sprintf("%s - subtask %d", genReq.Title, i+1)
			}
			_, err := s.tasksvc.CreateChildTx(ctx, tx, ownerID, taskID, taskdomain.NewChild{
				Title:       title,
				Description: item.Description,
				DueDate:     task.DueDate,
				Priority:    task.Priority,
			})
			if err != nil {
				return err
			}
		}

		if err := s.tasksvc.StampDecomposedTx(ctx, tx, ownerID, taskID, now); err != nil {
			return err
		}

		// exactly once per successful materialization, never on failure
		return s.quotasvc.RecordUsage(ctx, tx, ownerID, now)
	})
	if err != nil {
		switch {
		case errors.Is(err, quotadomain.ErrQuotaExceeded):
			s.count("quota_exceeded")
		case errors.Is(err, quotadomain.ErrServiceUnavailable):
			s.count("unavailable")
		case errors.Is(err, domain.ErrDecompositionFailed):
			s.count("failed")
		default:
			s.count("error")
		}
		return nil, err
	}

	s.count("success")
	return s.tasksvc.Subtree(ctx, ownerID, taskID)
}

// effectiveRequest prefers caller overrides and falls back to the stored
// task fields.
func effectiveRequest(task *taskdomain.Task, req domain.Request) aidomain.Request {
	out := aidomain.Request{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
	}
	if out.Title == "" {
		out.Title = task.Title
	}
	if out.Description == "" {
		out.Description = task.Description
	}
	if out.DueDate == "" && task.DueDate != nil {
		out.DueDate = task.DueDate.Format("2006-01-02")
	}
	if out.Priority == "" {
		out.Priority = string(task.Priority)
	}
	return out
}
