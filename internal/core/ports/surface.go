package ports

import (
	"context"
	"time"

	"github.com/melih/lighthouse-console/internal/core/domain"
)

// StatusSurface receives per-entity status updates. Every rendered place
// bound to name must reflect status; changed asks for the transient flash.
type StatusSurface interface {
	SetStatus(name string, status domain.Status, changed bool)
}

// Structure exposes the live rendered order. Callers must resolve
// positions through it at the moment of use.
type Structure interface {
	Locate(name string) (category string, index int, ok bool)
	Children(category string) ([]string, bool)
	CategoryIDs() []string
}

// Indicator shows the passive connection state.
type Indicator interface {
	SetConnection(state domain.ConnectionState)
}

// Surface is everything the sync engine drives on the display side.
type Surface interface {
	StatusSurface
	Structure
	Indicator
	Render(layout domain.Layout, containers []domain.Container)
	SetBusy(busy bool)
	Notify(n domain.Notification)
}

// Preferences are owned elsewhere and re-read on every scheduling
// decision.
type Preferences interface {
	AutoUpdate() bool
	RefreshInterval() time.Duration
}

// ConsoleService is what the control surface's handlers drive.
type ConsoleService interface {
	Reload(ctx context.Context, force bool) error
	StartDrag(ctx context.Context, container string) (domain.DragGesture, error)
	Drop(ctx context.Context, target domain.DropTarget) (domain.Plan, error)
	CancelDrag(ctx context.Context) error
	ReorderCategories(ctx context.Context, order []string) (domain.Plan, error)
	AfterMutation(ctx context.Context) error
	PreferencesChanged(ctx context.Context) error
	Status(ctx context.Context) (domain.SyncStatus, error)
}
