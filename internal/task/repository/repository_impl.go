package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskforge/internal/task/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, task *domain.Task) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tasks (id, owner_id, parent_id, title, description, due_date, priority, status, decomposed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.OwnerID,
		task.ParentID,
		task.Title,
		task.Description,
		task.DueDate,
		task.Priority,
		task.Status,
		task.DecomposedAt,
		task.CreatedAt,
		task.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (*domain.Task, error) {
	var task domain.Task
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_id, parent_id, title, description, due_date, priority, status, decomposed_at, created_at, updated_at
		 FROM tasks WHERE owner_id = ? AND id = ?`,
		ownerID,
		id,
	).Scan(&task).Error
	if err != nil {
		return nil, err
	}
	if task.ID == 0 {
		return nil, nil
	}
	return &task, nil
}

func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("owner_id = ?", ownerID).
		Order("created_at asc, id asc").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repo) ListChildren(ctx context.Context, db *gorm.DB, ownerID, parentID snowflake.ID) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("owner_id = ? AND parent_id = ?", ownerID, parentID).
		Order("created_at asc, id asc").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repo) CountChildren(ctx context.Context, db *gorm.DB, ownerID, parentID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("owner_id = ? AND parent_id = ?", ownerID, parentID).
		Count(&count).Error
	return count, err
}

// Update replaces mutable fields. ParentID is deliberately absent: parents
// are immutable after creation.
func (r *repo) Update(ctx context.Context, db *gorm.DB, task *domain.Task) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tasks SET title = ?, description = ?, due_date = ?, priority = ?, status = ?, updated_at = ?
		 WHERE owner_id = ? AND id = ?`,
		task.Title,
		task.Description,
		task.DueDate,
		task.Priority,
		task.Status,
		task.UpdatedAt,
		task.OwnerID,
		task.ID,
	).Error
}

func (r *repo) SetDecomposedAt(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tasks SET decomposed_at = ?, updated_at = ? WHERE owner_id = ? AND id = ?`,
		at,
		at,
		ownerID,
		id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM tasks WHERE owner_id = ? AND id = ?`,
		ownerID,
		id,
	).Error
}
