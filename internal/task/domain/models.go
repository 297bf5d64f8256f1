// Package domain contains persistence models for the per-user task forest.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Priority ranks a task. Unknown input normalizes to NORMAL.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

// Status tracks task progress. Unknown input normalizes to TODO.
type Status string

const (
	StatusTodo  Status = "TODO"
	StatusDoing Status = "DOING"
	StatusDone  Status = "DONE"
)

const (
	// MaxDepth is the maximum tree height, counted 1-based from a root.
	MaxDepth = 4

	// depth walks never iterate past this bound, even over corrupted parent links
	MaxDepthWalk = 16
)

// Task is a node in a per-user forest. ParentID is assigned once at creation
// and never reassigned; nil means root.
type Task struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	OwnerID      snowflake.ID  `gorm:"not null;index" json:"owner_id"`
	ParentID     *snowflake.ID `gorm:"index" json:"parent_id"`
	Title        string        `gorm:"type:text;not null" json:"title"`
	Description  string        `gorm:"type:text" json:"description"`
	DueDate      *time.Time    `gorm:"" json:"due_date"`
	Priority     Priority      `gorm:"type:text;not null" json:"priority"`
	Status       Status        `gorm:"type:text;not null" json:"status"`
	DecomposedAt *time.Time    `gorm:"" json:"decomposed_at"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Task) TableName() string { return "tasks" }

// TreeNode is a task with its resolved children, used for presentation.
type TreeNode struct {
	Task
	Children []*TreeNode `json:"children"`
}

// NormalizePriority coerces arbitrary input to a valid Priority.
func NormalizePriority(p string) Priority {
	switch Priority(p) {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return Priority(p)
	default:
		return PriorityNormal
	}
}

// NormalizeStatus coerces arbitrary input to a valid Status.
func NormalizeStatus(s string) Status {
	switch Status(s) {
	case StatusTodo, StatusDoing, StatusDone:
		return Status(s)
	default:
		return StatusTodo
	}
}

// ParseDueDate accepts 2006/01/02 or 2006-01-02. Empty input yields nil.
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006/01/02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
