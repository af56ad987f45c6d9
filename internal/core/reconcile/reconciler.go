// Package reconcile merges incoming status facts into the displayed state.
package reconcile

import (
	"log/slog"
	"sort"
	"time"

	"github.com/melih/lighthouse-console/internal/core/domain"
	"github.com/melih/lighthouse-console/internal/core/ports"
)

// Change is a status transition observed while applying a snapshot.
type Change struct {
	Name string
	From domain.Status
	To   domain.Status
}

type fact struct {
	status     domain.Status
	observedAt time.Time
}

// Reconciler keeps the last-known status per entity and pushes differences
// to the surface. It never creates or removes entities; that belongs to the
// full render path.
//
// A Reconciler is not safe for concurrent use. It is owned by the sync
// service loop.
type Reconciler struct {
	known   map[string]fact
	surface ports.StatusSurface
	logger  *slog.Logger
}

// New creates a Reconciler writing to surface.
func New(surface ports.StatusSurface, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		known:   make(map[string]fact),
		surface: surface,
		logger:  logger,
	}
}

// Apply merges snapshot and returns the transitions it caused. Deltas and
// full snapshots are handled the same way: only named entities are touched.
// Facts observed earlier than what is already known are ignored, so stale
// and fresh messages converge regardless of arrival order.
func (r *Reconciler) Apply(snapshot domain.StatusSnapshot) []Change {
	names := make([]string, 0, len(snapshot.Statuses))
	for name := range snapshot.Statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	var changes []Change
	for _, name := range names {
		status := snapshot.Statuses[name]
		if name == "" || !status.Valid() {
			continue
		}

		prev, seen := r.known[name]
		if seen && snapshot.ObservedAt.Before(prev.observedAt) {
			r.logger.Debug("ignoring stale status",
				"container", name, "source", snapshot.Source, "status", status, "known", prev.status)
			continue
		}

		changed := seen && prev.status != status
		r.known[name] = fact{status: status, observedAt: snapshot.ObservedAt}
		r.surface.SetStatus(name, status, changed)
		if changed {
			changes = append(changes, Change{Name: name, From: prev.status, To: status})
		}
	}
	return changes
}

// Repaint pushes every known status to the surface without flashing. The
// render path calls it after rebuilding cards.
func (r *Reconciler) Repaint() {
	for name, f := range r.known {
		r.surface.SetStatus(name, f.status, false)
	}
}

// Known returns the last-known status of name.
func (r *Reconciler) Known(name string) (domain.Status, bool) {
	f, ok := r.known[name]
	return f.status, ok
}

// Len is the number of tracked entities.
func (r *Reconciler) Len() int {
	return len(r.known)
}
