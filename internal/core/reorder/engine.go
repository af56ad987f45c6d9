// Package reorder turns drag gestures into move or reorder requests.
//
// Positions are always resolved against the live structure at the moment
// they are used. The index captured at drag start is kept for diagnostics
// only: a status refresh may re-render the list while the pointer is down.
package reorder

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/melih/lighthouse-console/internal/core/domain"
	"github.com/melih/lighthouse-console/internal/core/ports"
)

var (
	// ErrInFlight rejects a gesture while a previous mutation is resolving.
	ErrInFlight = errors.New("a reorder is already in flight")
	// ErrNotDragging is returned by Drop without a preceding Start.
	ErrNotDragging = errors.New("no drag in progress")
	// ErrUnknownContainer means the container is not on the board.
	ErrUnknownContainer = errors.New("container is not on the board")
	// ErrUnknownCategory means the drop target is not on the board.
	ErrUnknownCategory = errors.New("category is not on the board")
	// ErrStale means the board changed underneath the gesture so that it
	// no longer describes a valid mutation.
	ErrStale = errors.New("board changed during drag")
)

// State of the engine.
type State int

const (
	Idle State = iota
	Dragging
	Resolving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Resolving:
		return "resolving"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Engine is the single-flight drag state machine. It is not safe for
// concurrent use; the sync service loop owns it.
type Engine struct {
	structure ports.Structure
	clock     clockwork.Clock
	state     State
	gesture   domain.DragGesture
	plan      domain.Plan
}

// New creates an Engine resolving positions through structure.
func New(structure ports.Structure, clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{structure: structure, clock: clock}
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// InFlight returns the plan being resolved, if any.
func (e *Engine) InFlight() (domain.Plan, bool) {
	if e.state != Resolving {
		return domain.Plan{}, false
	}
	return e.plan, true
}

// Start begins a gesture on container. The source category comes from the
// group enclosing the container right now. A Start while dragging replaces
// the abandoned gesture.
func (e *Engine) Start(container string) (domain.DragGesture, error) {
	if e.state == Resolving {
		return domain.DragGesture{}, ErrInFlight
	}
	category, index, ok := e.structure.Locate(container)
	if !ok {
		return domain.DragGesture{}, fmt.Errorf("%w: %s", ErrUnknownContainer, container)
	}
	e.gesture = domain.DragGesture{
		ID:             uuid.NewString(),
		Container:      container,
		SourceCategory: category,
		StartIndex:     index,
		StartedAt:      e.clock.Now(),
	}
	e.state = Dragging
	return e.gesture, nil
}

// Cancel abandons the current gesture. It reports whether one existed.
func (e *Engine) Cancel() bool {
	if e.state != Dragging {
		return false
	}
	e.state = Idle
	e.gesture = domain.DragGesture{}
	return true
}

// Drop resolves the gesture against target. A Noop plan leaves the engine
// idle; Move and Reorder plans put it in Resolving until Resolve is called.
// Any error also returns the engine to idle, except ErrNotDragging and
// ErrInFlight which leave state as it was.
func (e *Engine) Drop(target domain.DropTarget) (domain.Plan, error) {
	switch e.state {
	case Resolving:
		return domain.Plan{}, ErrInFlight
	case Idle:
		return domain.Plan{}, ErrNotDragging
	}
	g := e.gesture

	children, ok := e.structure.Children(target.Category)
	if !ok {
		e.Cancel()
		return domain.Plan{}, fmt.Errorf("%w: %s", ErrUnknownCategory, target.Category)
	}

	targetIndex := -1
	if target.Sibling != "" {
		targetIndex = slices.Index(children, target.Sibling)
		if targetIndex < 0 {
			e.Cancel()
			return domain.Plan{}, fmt.Errorf("%w: %s is no longer in %s", ErrStale, target.Sibling, target.Category)
		}
	}

	if target.Category != g.SourceCategory {
		return e.commit(domain.Plan{
			Kind:           domain.PlanMove,
			GestureID:      g.ID,
			Container:      g.Container,
			SourceCategory: g.SourceCategory,
			TargetCategory: target.Category,
			TargetIndex:    targetIndex,
			FromIndex:      -1,
		}), nil
	}

	// Same category: the current index comes from the live structure, never
	// from g.StartIndex.
	from := slices.Index(children, g.Container)
	if from < 0 {
		e.Cancel()
		return domain.Plan{}, fmt.Errorf("%w: %s left %s", ErrStale, g.Container, target.Category)
	}
	if targetIndex < 0 {
		targetIndex = len(children) - 1
	}

	plan := domain.Plan{
		Kind:           domain.PlanReorder,
		GestureID:      g.ID,
		Container:      g.Container,
		SourceCategory: g.SourceCategory,
		TargetCategory: target.Category,
		TargetIndex:    targetIndex,
		FromIndex:      from,
	}
	if from == targetIndex {
		plan.Kind = domain.PlanNoop
		e.Cancel()
		return plan, nil
	}
	return e.commit(plan), nil
}

// Acquire takes the single-flight guard for a mutation that did not start
// as a container drag, such as a category reorder. An abandoned container
// gesture is discarded.
func (e *Engine) Acquire(plan domain.Plan) error {
	if e.state == Resolving {
		return ErrInFlight
	}
	e.Cancel()
	e.commit(plan)
	return nil
}

// Resolve releases the single-flight guard.
func (e *Engine) Resolve() {
	e.state = Idle
	e.gesture = domain.DragGesture{}
	e.plan = domain.Plan{}
}

func (e *Engine) commit(plan domain.Plan) domain.Plan {
	e.state = Resolving
	e.plan = plan
	return plan
}

// MoveRequest is the backend request for a move plan.
func MoveRequest(p domain.Plan) ports.MoveRequest {
	return ports.MoveRequest{
		ContainerName:  p.Container,
		SourceCategory: p.SourceCategory,
		TargetCategory: p.TargetCategory,
		TargetPosition: p.TargetIndex,
	}
}

// ReorderRequest is the backend request for a reorder plan.
func ReorderRequest(p domain.Plan) ports.ReorderRequest {
	return ports.ReorderRequest{
		ContainerName: p.Container,
		CategoryID:    p.TargetCategory,
		FromPosition:  p.FromIndex,
		ToPosition:    p.TargetIndex,
	}
}
