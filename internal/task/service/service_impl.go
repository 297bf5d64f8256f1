package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskforge/internal/clock"
	"github.com/smallbiznis/taskforge/internal/task/domain"
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
		log:   p.Log.Named("task.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) List(ctx context.Context, ownerID snowflake.ID) ([]*domain.Task, error) {
	return s.repo.ListByOwner(ctx, s.db, ownerID)
}

func (s *Service) Get(ctx context.Context, ownerID, id snowflake.ID) (*domain.Task, error) {
	task, err := s.repo.FindByID(ctx, s.db, ownerID, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

func (s *Service) Create(ctx context.Context, ownerID snowflake.ID, req domain.CreateTaskRequest) (*domain.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}
	due, err := domain.ParseDueDate(req.DueDate)
	if err != nil {
		return nil, domain.ErrInvalidDue
	}

	if req.ParentID != nil {
		forest, err := s.loadForest(ctx, s.db, ownerID)
		if err != nil {
			return nil, err
		}
		if _, ok := forest.nodes[*req.ParentID]; !ok {
			return nil, domain.ErrInvalidParent
		}
		if forest.depthOf(*req.ParentID) >= domain.MaxDepth {
			return nil, domain.ErrDepthExceeded
		}
	}

	now := s.clock.Now()
	task := &domain.Task{
		ID:          s.genID.Generate(),
		OwnerID:     ownerID,
		ParentID:    req.ParentID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		DueDate:     due,
		Priority:    domain.NormalizePriority(req.Priority),
		Status:      domain.NormalizeStatus(req.Status),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, task); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// Update replaces mutable fields. The parent link never changes here.
func (s *Service) Update(ctx context.Context, ownerID, id snowflake.ID, req domain.UpdateTaskRequest) (*domain.Task, error) {
	task, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}
	due, err := domain.ParseDueDate(req.DueDate)
	if err != nil {
		return nil, domain.ErrInvalidDue
	}

	task.Title = title
	task.Description = strings.TrimSpace(req.Description)
	task.DueDate = due
	task.Priority = domain.NormalizePriority(req.Priority)
	task.Status = domain.NormalizeStatus(req.Status)
	task.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (s *Service) DepthOf(ctx context.Context, ownerID, id snowflake.ID) (int, error) {
	forest, err := s.loadForest(ctx, s.db, ownerID)
	if err != nil {
		return 0, err
	}
	if _, ok := forest.nodes[id]; !ok {
		return 0, domain.ErrNotFound
	}
	return forest.depthOf(id), nil
}

func (s *Service) CanAddChildUnder(ctx context.Context, ownerID, parentID snowflake.ID) (bool, error) {
	depth, err := s.DepthOf(ctx, ownerID, parentID)
	if err != nil {
		return false, err
	}
	return depth < domain.MaxDepth, nil
}

func (s *Service) CreateChildTx(ctx context.Context, tx *gorm.DB, ownerID, parentID snowflake.ID, fields domain.NewChild) (*domain.Task, error) {
	forest, err := s.loadForest(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	if _, ok := forest.nodes[parentID]; !ok {
		return nil, domain.ErrInvalidParent
	}
	if forest.depthOf(parentID) >= domain.MaxDepth {
		return nil, domain.ErrDepthExceeded
	}

	title := strings.TrimSpace(fields.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}

	now := s.clock.Now()
	parent := parentID
	task := &domain.Task{
		ID:          s.genID.Generate(),
		OwnerID:     ownerID,
		ParentID:    &parent,
		Title:       title,
		Description: strings.TrimSpace(fields.Description),
		DueDate:     fields.DueDate,
		Priority:    fields.Priority,
		Status:      domain.StatusTodo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, tx, task); err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	return task, nil
}

// DeleteSubtree removes the node and every descendant, children before
// parents, so referential integrity holds at each step.
func (s *Service) DeleteSubtree(ctx context.Context, ownerID, id snowflake.ID) error {
	task, err := s.repo.FindByID(ctx, s.db, ownerID, id)
	if err != nil {
		return err
	}
	if task == nil {
		return domain.ErrNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		forest, err := s.loadForest(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		order := forest.postOrder(id)
		for _, victim := range order {
			if err := s.repo.Delete(ctx, tx, ownerID, victim); err != nil {
				return fmt.Errorf("delete %d: %w", victim, err)
			}
		}
		return nil
	})
}

// DeleteDescendantsTx clears everything below the node but keeps the node
// itself. Used to replace a stale subtree before regeneration.
func (s *Service) DeleteDescendantsTx(ctx context.Context, tx *gorm.DB, ownerID, id snowflake.ID) error {
	forest, err := s.loadForest(ctx, tx, ownerID)
	if err != nil {
		return err
	}
	if _, ok := forest.nodes[id]; !ok {
		return domain.ErrNotFound
	}
	order := forest.postOrder(id)
	for _, victim := range order {
		if victim == id {
			continue
		}
		if err := s.repo.Delete(ctx, tx, ownerID, victim); err != nil {
			return fmt.Errorf("delete descendant %d: %w", victim, err)
		}
	}
	return nil
}

func (s *Service) StampDecomposedTx(ctx context.Context, tx *gorm.DB, ownerID, id snowflake.ID, at time.Time) error {
	return s.repo.SetDecomposedAt(ctx, tx, ownerID, id, at)
}
