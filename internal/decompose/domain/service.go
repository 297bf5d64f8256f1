// Package domain defines the decomposition orchestrator boundary.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	taskdomain "github.com/smallbiznis/taskforge/internal/task/domain"
)

// Request optionally overrides the parent task's fields for prompt
// building. Empty fields fall back to what is stored on the task.
type Request struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Priority    string `json:"priority"`
}

// Service replaces a task's descendant subtree with freshly generated
// children, gated by the quota ledger.
type Service interface {
	Decompose(ctx context.Context, ownerID, taskID snowflake.ID, req Request, planHint *snowflake.ID) (*taskdomain.TreeNode, error)
}

// ErrDecompositionFailed means the external call produced no usable items
// after the ambiguity gate passed. The user can recover by adding detail.
var ErrDecompositionFailed = errors.New("decomposition_failed")
