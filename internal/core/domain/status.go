package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a container as displayed.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
)

// ParseStatus normalizes the backend's status vocabulary. The second return
// value is false when raw carries no usable information; callers must treat
// that as "unknown", never as a state change.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "running", "up", "restarting":
		return StatusRunning, true
	case "stopped", "exited", "created", "paused":
		return StatusStopped, true
	case "error", "dead", "unhealthy", "failed":
		return StatusError, true
	default:
		return "", false
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusStopped, StatusError:
		return true
	}
	return false
}

// Class is the status class a card carries.
func (s Status) Class() string {
	if !s.Valid() {
		return "status-unknown"
	}
	return "status-" + string(s)
}

// Affordances offered on a card.
const (
	ActionInstall = "install"
	ActionStart   = "start"
	ActionStop    = "stop"
)

// Affordance returns the primary button a card shows.
func Affordance(installed bool, s Status) string {
	switch {
	case !installed:
		return ActionInstall
	case s == StatusRunning:
		return ActionStop
	default:
		return ActionStart
	}
}

// Source identifies which path delivered a status fact.
type Source string

const (
	SourcePush   Source = "push"
	SourcePoll   Source = "poll"
	SourceRender Source = "render"
)

// StatusSnapshot is a point-in-time set of status facts. A delta names a
// single entity; a full snapshot names every entity the sender knows about.
// Entities absent from either shape are simply not described.
type StatusSnapshot struct {
	Statuses   map[string]Status
	Delta      bool
	Source     Source
	ObservedAt time.Time
}
