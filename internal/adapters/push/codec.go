// Package push is the websocket adapter for the backend's container-events
// channel.
package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/melih/lighthouse-console/internal/adapters/backend"
	"github.com/melih/lighthouse-console/internal/core/domain"
	"github.com/melih/lighthouse-console/internal/core/ports"
)

// ErrUnknownEvent is returned for well-formed envelopes naming an event the
// console does not consume.
var ErrUnknownEvent = errors.New("unknown push event")

type envelope struct {
	Event string          `json:"event"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	// Timestamp is the server's clock. It is kept for logs only.
	Timestamp string `json:"timestamp,omitempty"`
}

type request struct {
	Event string `json:"event"`
}

// Decode parses one server message. ObservedAt is left zero: the sync
// loop stamps push facts with their receive time.
func Decode(data []byte) (ports.PushEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ports.PushEvent{}, fmt.Errorf("%w: %v", backend.ErrMalformed, err)
	}
	name := strings.TrimSpace(env.Event)
	if name == "" {
		name = strings.TrimSpace(env.Type)
	}

	var delta bool
	switch name {
	case ports.EventInitialStatus, ports.EventStatusRefresh:
	case ports.EventStatusUpdate:
		delta = true
	default:
		return ports.PushEvent{}, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return ports.PushEvent{}, fmt.Errorf("%w: %s without data", backend.ErrMalformed, name)
	}

	statuses, err := backend.DecodeStatuses(env.Data)
	if err != nil {
		return ports.PushEvent{}, err
	}
	return ports.PushEvent{
		Name: name,
		Snapshot: domain.StatusSnapshot{
			Statuses: statuses,
			Delta:    delta,
			Source:   domain.SourcePush,
		},
	}, nil
}
