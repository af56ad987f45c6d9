package view

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-console/internal/core/domain"
)

func sampleBoard(t *testing.T) (*Board, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	b := NewBoard(clock)
	containers := []domain.Container{
		{Name: "prometheus", Status: domain.StatusRunning, Installed: true, Port: "9090"},
		{Name: "grafana", Status: domain.StatusStopped, Installed: true},
		{Name: "jellyfin", Installed: false},
	}
	layout := domain.Assign([]domain.Category{
		{ID: "monitoring", Name: "Monitoring", Containers: []string{"prometheus"}},
		{ID: "media", Name: "Media", Containers: []string{"jellyfin"}},
	}, containers)
	b.Render(layout, containers)
	return b, clock
}

func TestRender_GroupsAndStrip(t *testing.T) {
	b, clock := sampleBoard(t)
	snap := b.Snapshot()

	require.Len(t, snap.Groups, 3)
	assert.Equal(t, "monitoring", snap.Groups[0].ID)
	assert.Equal(t, "media", snap.Groups[1].ID)
	assert.True(t, snap.Groups[2].Reserved)
	assert.Equal(t, "grafana", snap.Groups[2].Cards[0].Name)

	jellyfin := snap.Groups[1].Cards[0]
	assert.Equal(t, domain.ActionInstall, jellyfin.Action)
	assert.Equal(t, "status-unknown", jellyfin.StatusClass)

	require.Len(t, snap.Strip, 2, "only installed containers are in the strip")
	assert.Equal(t, "grafana", snap.Strip[0].Name)
	assert.Equal(t, "prometheus", snap.Strip[1].Name)
	assert.Equal(t, RegionStrip, snap.Strip[1].Region)
	assert.Equal(t, clock.Now(), snap.RenderedAt)
}

func TestSetStatus_UpdatesEveryBoundCard(t *testing.T) {
	b, _ := sampleBoard(t)

	b.SetStatus("prometheus", domain.StatusError, true)
	snap := b.Snapshot()

	group := snap.Groups[0].Cards[0]
	strip := snap.Strip[1]
	for _, card := range []Card{group, strip} {
		assert.Equal(t, domain.StatusError, card.Status)
		assert.Equal(t, "status-error", card.StatusClass)
		assert.Equal(t, domain.ActionStart, card.Action)
		assert.Equal(t, 1, card.Flashes)
	}

	b.SetStatus("prometheus", domain.StatusError, false)
	assert.Equal(t, 1, b.Snapshot().Strip[1].Flashes, "repaint does not flash")
}

func TestRender_KeepsFlashCounters(t *testing.T) {
	b, _ := sampleBoard(t)
	b.SetStatus("grafana", domain.StatusRunning, true)

	containers := []domain.Container{{Name: "grafana", Status: domain.StatusRunning, Installed: true}}
	b.Render(domain.Assign(nil, containers), containers)

	snap := b.Snapshot()
	require.Len(t, snap.Groups, 1)
	assert.Equal(t, 1, snap.Groups[0].Cards[0].Flashes)
}

func TestStructure(t *testing.T) {
	b, _ := sampleBoard(t)

	cat, idx, ok := b.Locate("grafana")
	require.True(t, ok)
	assert.Equal(t, domain.ReservedCategoryID, cat)
	assert.Equal(t, 0, idx)

	_, _, ok = b.Locate("missing")
	assert.False(t, ok)

	children, ok := b.Children("monitoring")
	require.True(t, ok)
	children[0] = "mutated"
	again, _ := b.Children("monitoring")
	assert.Equal(t, []string{"prometheus"}, again)

	assert.Equal(t, []string{"monitoring", "media", domain.ReservedCategoryID}, b.CategoryIDs())
}

func TestNotifications(t *testing.T) {
	b, clock := sampleBoard(t)

	b.Notify(domain.Notification{Level: domain.NotifySuccess, Message: "first"})
	all := b.Notifications("")
	require.Len(t, all, 1)
	assert.NotEmpty(t, all[0].ID)
	assert.Equal(t, clock.Now(), all[0].At)

	b.Notify(domain.Notification{Level: domain.NotifyError, Message: "second"})
	after := b.Notifications(all[0].ID)
	require.Len(t, after, 1)
	assert.Equal(t, "second", after[0].Message)

	assert.Len(t, b.Notifications("unknown"), 2)
}

func TestNotifications_AreCapped(t *testing.T) {
	b := NewBoard(clockwork.NewFakeClock())
	for i := 0; i < maxNotifications+10; i++ {
		b.Notify(domain.Notification{Message: fmt.Sprintf("n%d", i)})
	}
	got := b.Notifications("")
	require.Len(t, got, maxNotifications)
	assert.Equal(t, "n10", got[0].Message)
}

func TestBusyAndConnection(t *testing.T) {
	b := NewBoard(nil)
	assert.Equal(t, domain.ConnectionDisconnected, b.Snapshot().Connection)

	b.SetBusy(true)
	b.SetConnection(domain.ConnectionConnected)
	snap := b.Snapshot()
	assert.True(t, snap.Busy)
	assert.Equal(t, domain.ConnectionConnected, snap.Connection)
}
