package ports

import (
	"context"

	"github.com/melih/lighthouse-console/internal/core/domain"
)

// Push channel event names.
const (
	EventInitialStatus    = "initial_status"
	EventStatusUpdate     = "container_status_update"
	EventStatusRefresh    = "container_status_refresh"
	EventGetInitialStatus = "get_initial_status"
)

// PushEvent is a decoded server-to-client message.
type PushEvent struct {
	Name     string
	Snapshot domain.StatusSnapshot
}

// PushConn is one live push channel instance.
type PushConn interface {
	// Receive blocks until the next recognized event or a terminal error.
	Receive() (PushEvent, error)
	// RequestInitialStatus asks the server for a full snapshot.
	RequestInitialStatus() error
	Close() error
}

// PushDialer opens push channels to the backend's container-events scope.
type PushDialer interface {
	Dial(ctx context.Context) (PushConn, error)
}
