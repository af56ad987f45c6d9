// Package view holds the board: the rendered structure the control surface
// serves to the browser.
package view

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/melih/lighthouse-console/internal/core/domain"
	"github.com/melih/lighthouse-console/internal/core/ports"
)

// Regions a card can be rendered in. One container has a card in its
// category group and, when installed, another in the status strip.
const (
	RegionGroup = "group"
	RegionStrip = "strip"
)

const maxNotifications = 50

// Card is one rendered place bound to a container.
type Card struct {
	Name        string        `json:"name"`
	Region      string        `json:"region"`
	Category    string        `json:"category,omitempty"`
	Status      domain.Status `json:"status"`
	StatusClass string        `json:"statusClass"`
	Action      string        `json:"action"`
	Installed   bool          `json:"installed"`
	Port        string        `json:"port,omitempty"`
	Image       string        `json:"image,omitempty"`
	// Flashes counts status transitions; the browser animates when it grows.
	Flashes int `json:"flashes"`
}

// GroupView is a rendered category.
type GroupView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
	Reserved    bool   `json:"reserved"`
	Cards       []Card `json:"cards"`
}

// Snapshot is a consistent copy of the board.
type Snapshot struct {
	Groups     []GroupView            `json:"groups"`
	Strip      []Card                 `json:"strip"`
	Busy       bool                   `json:"busy"`
	Connection domain.ConnectionState `json:"connection"`
	RenderedAt time.Time              `json:"renderedAt"`
}

type group struct {
	category domain.Category
	cards    []*Card
}

// Board implements ports.Surface. Writes come from the sync loop; reads
// may come from any goroutine.
type Board struct {
	mu            sync.RWMutex
	clock         clockwork.Clock
	layout        domain.Layout
	groups        []*group
	strip         []*Card
	bindings      map[string][]*Card
	flashes       map[string]int
	busy          bool
	connection    domain.ConnectionState
	renderedAt    time.Time
	notifications []domain.Notification
}

// NewBoard creates an empty board.
func NewBoard(clock clockwork.Clock) *Board {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Board{
		clock:      clock,
		bindings:   make(map[string][]*Card),
		flashes:    make(map[string]int),
		connection: domain.ConnectionDisconnected,
	}
}

// Render rebuilds every card from layout.
func (b *Board) Render(layout domain.Layout, containers []domain.Container) {
	byName := make(map[string]domain.Container, len(containers))
	for _, c := range containers {
		byName[c.Name] = c
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.layout = layout
	b.groups = b.groups[:0]
	b.strip = nil
	b.bindings = make(map[string][]*Card, len(containers))

	for _, g := range layout.Groups {
		rg := &group{category: g.Category}
		for _, name := range g.Items {
			card := b.newCard(byName[name], RegionGroup)
			card.Name = name
			card.Category = g.Category.ID
			rg.cards = append(rg.cards, card)
		}
		b.groups = append(b.groups, rg)
	}

	installed := make([]domain.Container, 0, len(containers))
	for _, c := range containers {
		if c.Installed && c.Name != "" {
			installed = append(installed, c)
		}
	}
	sort.Slice(installed, func(i, j int) bool { return installed[i].Name < installed[j].Name })
	for _, c := range installed {
		b.strip = append(b.strip, b.newCard(c, RegionStrip))
	}

	b.renderedAt = b.clock.Now()
}

// newCard must be called with mu held.
func (b *Board) newCard(c domain.Container, region string) *Card {
	card := &Card{
		Name:        c.Name,
		Region:      region,
		Status:      c.Status,
		StatusClass: c.Status.Class(),
		Action:      domain.Affordance(c.Installed, c.Status),
		Installed:   c.Installed,
		Port:        c.Port,
		Image:       c.Image,
		Flashes:     b.flashes[c.Name],
	}
	if c.Name != "" {
		b.bindings[c.Name] = append(b.bindings[c.Name], card)
	}
	return card
}

// SetStatus updates every card bound to name.
func (b *Board) SetStatus(name string, status domain.Status, changed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if changed {
		b.flashes[name]++
	}
	for _, card := range b.bindings[name] {
		card.Status = status
		card.StatusClass = status.Class()
		card.Action = domain.Affordance(card.Installed, status)
		card.Flashes = b.flashes[name]
	}
}

// Locate implements ports.Structure.
func (b *Board) Locate(name string) (string, int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.layout.Locate(name)
}

// Children implements ports.Structure.
func (b *Board) Children(category string) ([]string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.layout.Children(category)
}

// CategoryIDs implements ports.Structure.
func (b *Board) CategoryIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.layout.CategoryIDs()
}

// SetBusy shows or hides the blocking busy indicator.
func (b *Board) SetBusy(busy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.busy = busy
}

// SetConnection implements ports.Indicator.
func (b *Board) SetConnection(state domain.ConnectionState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connection = state
}

// Notify records a notification, keeping the most recent ones.
func (b *Board) Notify(n domain.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.At.IsZero() {
		n.At = b.clock.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = append(b.notifications, n)
	if over := len(b.notifications) - maxNotifications; over > 0 {
		b.notifications = append([]domain.Notification(nil), b.notifications[over:]...)
	}
}

// Notifications returns notifications recorded after the one with ID
// after. An empty or unknown ID returns everything retained.
func (b *Board) Notifications(after string) []domain.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := 0
	if after != "" {
		for i, n := range b.notifications {
			if n.ID == after {
				start = i + 1
				break
			}
		}
	}
	out := make([]domain.Notification, len(b.notifications)-start)
	copy(out, b.notifications[start:])
	return out
}

// Snapshot copies the board.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := Snapshot{
		Groups:     make([]GroupView, 0, len(b.groups)),
		Strip:      make([]Card, 0, len(b.strip)),
		Busy:       b.busy,
		Connection: b.connection,
		RenderedAt: b.renderedAt,
	}
	for _, g := range b.groups {
		gv := GroupView{
			ID:          g.category.ID,
			Name:        g.category.Name,
			Icon:        g.category.Icon,
			Description: g.category.Description,
			Reserved:    g.category.Reserved(),
			Cards:       make([]Card, 0, len(g.cards)),
		}
		for _, c := range g.cards {
			gv.Cards = append(gv.Cards, *c)
		}
		snap.Groups = append(snap.Groups, gv)
	}
	for _, c := range b.strip {
		snap.Strip = append(snap.Strip, *c)
	}
	return snap
}

var _ ports.Surface = (*Board)(nil)
