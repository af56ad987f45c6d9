package domain

import "time"

// DragGesture is an in-progress drag as captured at drag start.
type DragGesture struct {
	ID             string    `json:"id"`
	Container      string    `json:"container"`
	SourceCategory string    `json:"sourceCategory"`
	StartIndex     int       `json:"startIndex"`
	StartedAt      time.Time `json:"startedAt"`
}

// DropTarget describes where a gesture ended. Sibling is the item the
// container was dropped on; empty means the category's open area.
type DropTarget struct {
	Category string `json:"category"`
	Sibling  string `json:"sibling,omitempty"`
}

// PlanKind is the mutation a drop resolves to.
type PlanKind string

const (
	PlanNoop    PlanKind = "noop"
	PlanMove    PlanKind = "move"
	PlanReorder PlanKind = "reorder"
	PlanOrder   PlanKind = "category-order"
)

// Plan is a resolved gesture, ready to be sent to the backend.
type Plan struct {
	Kind           PlanKind `json:"kind"`
	GestureID      string   `json:"gestureId,omitempty"`
	Container      string   `json:"container,omitempty"`
	SourceCategory string   `json:"sourceCategory,omitempty"`
	TargetCategory string   `json:"targetCategory,omitempty"`
	TargetIndex    int      `json:"targetIndex"`
	FromIndex      int      `json:"fromIndex"`
	CategoryOrder  []string `json:"categoryOrder,omitempty"`
}

// ConnectionState is the passive push channel indicator.
type ConnectionState string

const (
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionOffline      ConnectionState = "offline"
)

// NotificationLevel grades a user-visible notification.
type NotificationLevel string

const (
	NotifySuccess NotificationLevel = "success"
	NotifyError   NotificationLevel = "error"
	NotifyInfo    NotificationLevel = "info"
)

// Notification is a user-visible message.
type Notification struct {
	ID      string            `json:"id"`
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
	At      time.Time         `json:"at"`
}

// SyncStatus is a diagnostic view of the sync engine.
type SyncStatus struct {
	Connection        ConnectionState `json:"connection"`
	ReconnectAttempts int             `json:"reconnectAttempts"`
	PollingArmed      bool            `json:"pollingArmed"`
	PollInterval      time.Duration   `json:"pollInterval"`
	Engine            string          `json:"engine"`
	KnownStatuses     int             `json:"knownStatuses"`
	LastReload        time.Time       `json:"lastReload"`
}
