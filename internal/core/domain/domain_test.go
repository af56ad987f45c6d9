package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(n int) *int { return &n }

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
		ok   bool
	}{
		{"running", StatusRunning, true},
		{" Up ", StatusRunning, true},
		{"restarting", StatusRunning, true},
		{"exited", StatusStopped, true},
		{"created", StatusStopped, true},
		{"paused", StatusStopped, true},
		{"STOPPED", StatusStopped, true},
		{"dead", StatusError, true},
		{"unhealthy", StatusError, true},
		{"failed", StatusError, true},
		{"", "", false},
		{"booting", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseStatus(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_ClassAndAffordance(t *testing.T) {
	assert.Equal(t, "status-running", StatusRunning.Class())
	assert.Equal(t, "status-unknown", Status("").Class())

	assert.Equal(t, ActionInstall, Affordance(false, StatusRunning))
	assert.Equal(t, ActionStop, Affordance(true, StatusRunning))
	assert.Equal(t, ActionStart, Affordance(true, StatusError))
}

func TestOrderCategories(t *testing.T) {
	tests := []struct {
		name  string
		input []Category
		want  []string
	}{
		{
			name: "explicit positions first, document order after",
			input: []Category{
				{ID: "web"},
				{ID: "db", Position: pos(1)},
				{ID: "cache"},
				{ID: "monitoring", Position: pos(0)},
			},
			want: []string{"monitoring", "db", "web", "cache", ReservedCategoryID},
		},
		{
			name: "reserved always last even with a position",
			input: []Category{
				{ID: ReservedCategoryID, Position: pos(0)},
				{ID: "web", Position: pos(5)},
			},
			want: []string{"web", ReservedCategoryID},
		},
		{
			name:  "reserved synthesized when missing",
			input: []Category{{ID: "web"}},
			want:  []string{"web", ReservedCategoryID},
		},
		{
			name:  "duplicates and empty ids dropped",
			input: []Category{{ID: "web"}, {ID: ""}, {ID: "web", Name: "again"}},
			want:  []string{"web", ReservedCategoryID},
		},
		{
			name:  "empty input",
			input: nil,
			want:  []string{ReservedCategoryID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ordered := OrderCategories(tt.input)
			ids := make([]string, 0, len(ordered))
			for _, c := range ordered {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestOrderCategories_KeepsBackendReservedCategory(t *testing.T) {
	ordered := OrderCategories([]Category{{ID: ReservedCategoryID, Name: "Misc", Containers: []string{"a"}}})

	require.Len(t, ordered, 1)
	assert.Equal(t, "Misc", ordered[0].Name)
	assert.Equal(t, []string{"a"}, ordered[0].Containers)
}

func TestPositionsFor(t *testing.T) {
	tests := []struct {
		name  string
		order []string
		want  map[string]int
	}{
		{
			name:  "reserved pinned last",
			order: []string{ReservedCategoryID, "db", "web"},
			want:  map[string]int{"db": 0, "web": 1, ReservedCategoryID: 2},
		},
		{
			name:  "duplicates skipped",
			order: []string{"db", "web", "db", ""},
			want:  map[string]int{"db": 0, "web": 1, ReservedCategoryID: 2},
		},
		{
			name:  "empty order",
			order: nil,
			want:  map[string]int{ReservedCategoryID: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PositionsFor(tt.order))
		})
	}
}

func TestAssign(t *testing.T) {
	categories := []Category{
		{ID: "databases", Containers: []string{"postgres", "redis", "ghost"}},
		{ID: "monitoring", Containers: []string{"redis", "grafana"}},
	}
	containers := []Container{
		{Name: "postgres", Installed: true},
		{Name: "redis", Installed: true},
		{Name: "grafana", Installed: true},
		{Name: "nginx", Installed: true},
		{Name: "jellyfin", Installed: false},
	}

	layout := Assign(categories, containers)

	require.Equal(t, []string{"databases", "monitoring", ReservedCategoryID}, layout.CategoryIDs())

	databases, _ := layout.Children("databases")
	assert.Equal(t, []string{"postgres", "redis"}, databases, "unknown references are dropped")

	monitoring, _ := layout.Children("monitoring")
	assert.Equal(t, []string{"grafana"}, monitoring, "first declared category wins a contested container")

	other, _ := layout.Children(ReservedCategoryID)
	assert.Equal(t, []string{"nginx"}, other, "uninstalled unassigned containers stay off the board")
}

func TestAssign_CategorizedUninstalledIsShown(t *testing.T) {
	layout := Assign(
		[]Category{{ID: "media", Containers: []string{"jellyfin"}}},
		[]Container{{Name: "jellyfin", Installed: false}},
	)

	category, index, ok := layout.Locate("jellyfin")
	require.True(t, ok)
	assert.Equal(t, "media", category)
	assert.Equal(t, 0, index)
}

func TestLayout_LocateAndChildren(t *testing.T) {
	layout := Assign(nil, []Container{{Name: "a", Installed: true}, {Name: "b", Installed: true}})

	category, index, ok := layout.Locate("b")
	require.True(t, ok)
	assert.Equal(t, ReservedCategoryID, category)
	assert.Equal(t, 1, index)

	_, _, ok = layout.Locate("missing")
	assert.False(t, ok)

	items, ok := layout.Children(ReservedCategoryID)
	require.True(t, ok)
	items[0] = "mutated"
	again, _ := layout.Children(ReservedCategoryID)
	assert.Equal(t, "a", again[0], "Children returns a copy")

	_, ok = layout.Children("nope")
	assert.False(t, ok)
}

func TestStatusesOf_SkipsUnknown(t *testing.T) {
	got := StatusesOf([]Container{
		{Name: "a", Status: StatusRunning},
		{Name: "b"},
		{Name: "", Status: StatusError},
	})
	assert.Equal(t, map[string]Status{"a": StatusRunning}, got)
}
