package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository performs row-level task persistence. The *gorm.DB is passed per
// call so operations compose under a caller-owned transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, task *Task) error
	FindByID(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (*Task, error)
	ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]*Task, error)
	ListChildren(ctx context.Context, db *gorm.DB, ownerID, parentID snowflake.ID) ([]*Task, error)
	CountChildren(ctx context.Context, db *gorm.DB, ownerID, parentID snowflake.ID) (int64, error)
	Update(ctx context.Context, db *gorm.DB, task *Task) error
	SetDecomposedAt(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) error
}
