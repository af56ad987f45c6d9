package reorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-console/internal/core/domain"
)

// board is a mutable structure standing in for the rendered board.
type board struct {
	domain.Layout
}

func newBoard(groups map[string][]string, order ...string) *board {
	b := &board{}
	for _, id := range order {
		b.Groups = append(b.Groups, domain.Group{
			Category: domain.Category{ID: id},
			Items:    groups[id],
		})
	}
	return b
}

func (b *board) set(category string, items ...string) {
	for i := range b.Groups {
		if b.Groups[i].Category.ID == category {
			b.Groups[i].Items = items
		}
	}
}

func TestDrop_MoveAcrossCategories(t *testing.T) {
	b := newBoard(map[string][]string{
		"monitoring": {"prometheus", "loki"},
		"Other":      {"grafana"},
	}, "monitoring", "Other")
	e := New(b, nil)

	g, err := e.Start("grafana")
	require.NoError(t, err)
	assert.Equal(t, "Other", g.SourceCategory)
	assert.NotEmpty(t, g.ID)

	plan, err := e.Drop(domain.DropTarget{Category: "monitoring", Sibling: "prometheus"})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanMove, plan.Kind)
	assert.Equal(t, Resolving, e.State())

	req := MoveRequest(plan)
	assert.Equal(t, "grafana", req.ContainerName)
	assert.Equal(t, "Other", req.SourceCategory)
	assert.Equal(t, "monitoring", req.TargetCategory)
	assert.Equal(t, 0, req.TargetPosition)
}

func TestDrop_MoveOntoAreaAppends(t *testing.T) {
	b := newBoard(map[string][]string{"a": {"x"}, "b": {"y"}}, "a", "b")
	e := New(b, nil)
	_, err := e.Start("x")
	require.NoError(t, err)

	plan, err := e.Drop(domain.DropTarget{Category: "b"})
	require.NoError(t, err)
	assert.Equal(t, -1, MoveRequest(plan).TargetPosition)
}

func TestDrop_ReorderRederivesIndexFromLiveStructure(t *testing.T) {
	b := newBoard(map[string][]string{"apps": {"a", "b", "grafana"}}, "apps")
	e := New(b, nil)

	g, err := e.Start("grafana")
	require.NoError(t, err)
	assert.Equal(t, 2, g.StartIndex)

	// A status refresh re-renders the group mid-drag.
	b.set("apps", "a", "grafana", "b")

	plan, err := e.Drop(domain.DropTarget{Category: "apps", Sibling: "a"})
	require.NoError(t, err)
	req := ReorderRequest(plan)
	assert.Equal(t, 1, req.FromPosition, "index must come from the post-refresh structure")
	assert.Equal(t, 0, req.ToPosition)
	assert.Equal(t, "apps", req.CategoryID)
}

func TestDrop_SameIndexIsNoop(t *testing.T) {
	b := newBoard(map[string][]string{"apps": {"a", "b", "c"}}, "apps")
	e := New(b, nil)
	_, err := e.Start("b")
	require.NoError(t, err)

	plan, err := e.Drop(domain.DropTarget{Category: "apps", Sibling: "b"})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanNoop, plan.Kind)
	assert.Equal(t, Idle, e.State())
}

func TestDrop_AreaInSameCategoryMovesToEnd(t *testing.T) {
	b := newBoard(map[string][]string{"apps": {"a", "b", "c"}}, "apps")
	e := New(b, nil)

	_, err := e.Start("a")
	require.NoError(t, err)
	plan, err := e.Drop(domain.DropTarget{Category: "apps"})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanReorder, plan.Kind)
	assert.Equal(t, 0, plan.FromIndex)
	assert.Equal(t, 2, plan.TargetIndex)
	e.Resolve()

	_, err = e.Start("c")
	require.NoError(t, err)
	plan, err = e.Drop(domain.DropTarget{Category: "apps"})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanNoop, plan.Kind)
}

func TestSingleFlight(t *testing.T) {
	b := newBoard(map[string][]string{"a": {"x", "y"}, "b": {}}, "a", "b")
	e := New(b, nil)

	_, err := e.Start("x")
	require.NoError(t, err)
	_, err = e.Drop(domain.DropTarget{Category: "b"})
	require.NoError(t, err)

	_, err = e.Start("y")
	assert.ErrorIs(t, err, ErrInFlight)
	_, err = e.Drop(domain.DropTarget{Category: "b"})
	assert.ErrorIs(t, err, ErrInFlight)
	assert.ErrorIs(t, e.Acquire(domain.Plan{Kind: domain.PlanOrder}), ErrInFlight)

	e.Resolve()
	_, err = e.Start("y")
	assert.NoError(t, err)
}

func TestDrop_Errors(t *testing.T) {
	b := newBoard(map[string][]string{"a": {"x"}}, "a")
	e := New(b, nil)

	_, err := e.Drop(domain.DropTarget{Category: "a"})
	assert.ErrorIs(t, err, ErrNotDragging)

	_, err = e.Start("missing")
	assert.ErrorIs(t, err, ErrUnknownContainer)
	assert.Equal(t, Idle, e.State())

	_, err = e.Start("x")
	require.NoError(t, err)
	_, err = e.Drop(domain.DropTarget{Category: "nope"})
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.Equal(t, Idle, e.State())

	_, err = e.Start("x")
	require.NoError(t, err)
	b.set("a")
	_, err = e.Drop(domain.DropTarget{Category: "a"})
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, Idle, e.State())
}

func TestDrop_VanishedSiblingIsStale(t *testing.T) {
	tests := []struct {
		name   string
		target domain.DropTarget
	}{
		{"move", domain.DropTarget{Category: "db", Sibling: "redis"}},
		{"reorder", domain.DropTarget{Category: "apps", Sibling: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBoard(map[string][]string{
				"apps": {"a", "b", "c"},
				"db":   {"postgres", "redis"},
			}, "apps", "db")
			e := New(b, nil)

			_, err := e.Start("a")
			require.NoError(t, err)
			b.set("apps", "a", "c")
			b.set("db", "postgres")

			_, err = e.Drop(tt.target)
			assert.ErrorIs(t, err, ErrStale)
			assert.Equal(t, Idle, e.State())
		})
	}
}

func TestCancel(t *testing.T) {
	b := newBoard(map[string][]string{"a": {"x"}}, "a")
	e := New(b, nil)

	assert.False(t, e.Cancel())
	_, err := e.Start("x")
	require.NoError(t, err)
	assert.True(t, e.Cancel())
	assert.Equal(t, Idle, e.State())
}

func TestAcquire_DiscardsAbandonedGesture(t *testing.T) {
	b := newBoard(map[string][]string{"a": {"x"}}, "a")
	e := New(b, nil)
	_, err := e.Start("x")
	require.NoError(t, err)

	require.NoError(t, e.Acquire(domain.Plan{Kind: domain.PlanOrder, CategoryOrder: []string{"a"}}))
	plan, ok := e.InFlight()
	require.True(t, ok)
	assert.Equal(t, domain.PlanOrder, plan.Kind)
}
