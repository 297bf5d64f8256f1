package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskforge/internal/task/domain"
	"gorm.io/gorm"
)

// forest is the in-memory adjacency of one owner's tasks, built from a
// single fetch so tree walks never fan out into per-node queries.
type forest struct {
	nodes    map[snowflake.ID]*domain.Task
	children map[snowflake.ID][]snowflake.ID
	roots    []snowflake.ID
}

func (s *Service) loadForest(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*forest, error) {
	tasks, err := s.repo.ListByOwner(ctx, db, ownerID)
	if err != nil {
		return nil, err
	}
	f := &forest{
		nodes:    make(map[snowflake.ID]*domain.Task, len(tasks)),
		children: make(map[snowflake.ID][]snowflake.ID),
	}
	for _, t := range tasks {
		f.nodes[t.ID] = t
	}
	for _, t := range tasks {
		if t.ParentID == nil {
			f.roots = append(f.roots, t.ID)
			continue
		}
		if _, ok := f.nodes[*t.ParentID]; !ok {
			// parent outside the owner's forest: surface as a root rather
			// than dropping the node
			f.roots = append(f.roots, t.ID)
			continue
		}
		f.children[*t.ParentID] = append(f.children[*t.ParentID], t.ID)
	}
	return f, nil
}

// depthOf counts nodes from the root, 1-based. The walk is capped so
// corrupted parent links cannot loop forever.
func (f *forest) depthOf(id snowflake.ID) int {
	depth := 0
	cur, ok := f.nodes[id]
	for ok && depth < domain.MaxDepthWalk {
		depth++
		if cur.ParentID == nil {
			break
		}
		cur, ok = f.nodes[*cur.ParentID]
	}
	return depth
}

// postOrder lists the subtree rooted at id, children strictly before parents.
func (f *forest) postOrder(id snowflake.ID) []snowflake.ID {
	var order []snowflake.ID
	var walk func(snowflake.ID)
	walk = func(cur snowflake.ID) {
		for _, child := range f.children[cur] {
			walk(child)
		}
		order = append(order, cur)
	}
	walk(id)
	return order
}

func (f *forest) node(id snowflake.ID) *domain.TreeNode {
	t, ok := f.nodes[id]
	if !ok {
		return nil
	}
	node := &domain.TreeNode{Task: *t, Children: []*domain.TreeNode{}}
	for _, child := range f.children[id] {
		node.Children = append(node.Children, f.node(child))
	}
	return node
}

// Tree assembles the owner's whole forest as nested nodes.
func (s *Service) Tree(ctx context.Context, ownerID snowflake.ID) ([]*domain.TreeNode, error) {
	f, err := s.loadForest(ctx, s.db, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.TreeNode, 0, len(f.roots))
	for _, root := range f.roots {
		out = append(out, f.node(root))
	}
	return out, nil
}

// Subtree returns the nested view rooted at one task.
func (s *Service) Subtree(ctx context.Context, ownerID, id snowflake.ID) (*domain.TreeNode, error) {
	f, err := s.loadForest(ctx, s.db, ownerID)
	if err != nil {
		return nil, err
	}
	node := f.node(id)
	if node == nil {
		return nil, domain.ErrNotFound
	}
	return node, nil
}
