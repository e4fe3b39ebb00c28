package models

import (
	"sort"

	"github.com/shopfeed/backend/internal/db"
)

// CommentFromRow converts a stored comment into its wire form with no
// replies attached.
func CommentFromRow(c db.CommentWithAuthor) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		Content:   c.Content,
		CreatedAt: FormatTime(c.CreatedAt),
		Author:    UserResponse{Username: c.AuthorUsername, Avatar: nullString(c.AuthorAvatar.String, c.AuthorAvatar.Valid)},
		Replies:   []CommentResponse{},
	}
}

// BuildCommentTree nests comments under their parents without recursion.
//
// rows must list every parent before its replies, which holds for the
// creation order ListCommentsByPost returns. Top-level comments sit at depth
// 0; a reply that would land below maxDepth is attached to the deepest
// allowed ancestor instead. A reply whose parent is not in rows is treated
// as top-level.
func BuildCommentTree(rows []db.CommentWithAuthor, maxDepth int) []CommentResponse {
	if maxDepth < 1 {
		maxDepth = 1
	}

	index := make(map[int64]int, len(rows))
	parent := make([]int, len(rows))
	depth := make([]int, len(rows))

	for i, row := range rows {
		index[row.ID] = i
		parent[i] = -1

		if !row.ParentID.Valid {
			continue
		}
		p, ok := index[row.ParentID.Int64]
		if !ok || p == i {
			continue
		}
		if depth[p] == maxDepth {
			// p already sits at the bottom, so hang alongside it.
			parent[i] = parent[p]
			depth[i] = maxDepth
			continue
		}
		parent[i] = p
		depth[i] = depth[p] + 1
	}

	children := make([][]int, len(rows))
	var roots []int
	for i := range rows {
		if parent[i] < 0 {
			roots = append(roots, i)
		} else {
			children[parent[i]] = append(children[parent[i]], i)
		}
	}

	// Materialise deepest nodes first so every child is complete before it
	// is copied into its parent.
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return depth[order[a]] > depth[order[b]] })

	built := make([]CommentResponse, len(rows))
	for _, i := range order {
		node := CommentFromRow(rows[i])
		for _, c := range children[i] {
			node.Replies = append(node.Replies, built[c])
		}
		built[i] = node
	}

	tree := make([]CommentResponse, 0, len(roots))
	for _, r := range roots {
		tree = append(tree, built[r])
	}
	return tree
}

func nullString(s string, valid bool) *string {
	if !valid {
		return nil
	}
	return &s
}
