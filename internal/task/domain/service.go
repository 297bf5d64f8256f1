package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateTaskRequest struct {
	ParentID    *snowflake.ID `json:"parent_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	DueDate     string        `json:"due_date"`
	Priority    string        `json:"priority"`
	Status      string        `json:"status"`
}

type UpdateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
}

// NewChild carries the fields for a managed child insert. Status always
// starts at TODO.
type NewChild struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    Priority
}

// Service owns the tree invariants: depth never exceeds MaxDepth and parents
// are immutable after creation. Tx variants run against a caller-owned
// transaction so subtree replacement stays atomic.
type Service interface {
	List(ctx context.Context, ownerID snowflake.ID) ([]*Task, error)
	Tree(ctx context.Context, ownerID snowflake.ID) ([]*TreeNode, error)
	Subtree(ctx context.Context, ownerID, id snowflake.ID) (*TreeNode, error)
	Get(ctx context.Context, ownerID, id snowflake.ID) (*Task, error)
	Create(ctx context.Context, ownerID snowflake.ID, req CreateTaskRequest) (*Task, error)
	Update(ctx context.Context, ownerID, id snowflake.ID, req UpdateTaskRequest) (*Task, error)
	DeleteSubtree(ctx context.Context, ownerID, id snowflake.ID) error

	DepthOf(ctx context.Context, ownerID, id snowflake.ID) (int, error)
	CanAddChildUnder(ctx context.Context, ownerID, parentID snowflake.ID) (bool, error)

	CreateChildTx(ctx context.Context, tx *gorm.DB, ownerID, parentID snowflake.ID, fields NewChild) (*Task, error)
	DeleteDescendantsTx(ctx context.Context, tx *gorm.DB, ownerID, id snowflake.ID) error
	StampDecomposedTx(ctx context.Context, tx *gorm.DB, ownerID, id snowflake.ID, at time.Time) error
}

var (
	ErrNotFound      = errors.New("task_not_found")
	ErrInvalidParent = errors.New("invalid_parent")
	ErrDepthExceeded = errors.New("depth_exceeded")
	ErrInvalidTitle  = errors.New("invalid_title")
	ErrInvalidDue    = errors.New("invalid_due_date")
)
