package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-console/internal/adapters/prefs"
	"github.com/melih/lighthouse-console/internal/adapters/view"
	"github.com/melih/lighthouse-console/internal/core/domain"
	"github.com/melih/lighthouse-console/internal/core/ports"
	"github.com/melih/lighthouse-console/internal/core/reorder"
	"github.com/melih/lighthouse-console/internal/core/services"
)

// BoardReader is the read side of the board.
type BoardReader interface {
	Snapshot() view.Snapshot
	Notifications(after string) []domain.Notification
}

// PreferenceStore reads and persists preferences.
type PreferenceStore interface {
	Values() prefs.Values
	Update(v prefs.Values) (prefs.Values, error)
}

type ConsoleHandler struct {
	service ports.ConsoleService
	board   BoardReader
	prefs   PreferenceStore
}

func NewConsoleHandler(service ports.ConsoleService, board BoardReader, store PreferenceStore) *ConsoleHandler {
	return &ConsoleHandler{service: service, board: board, prefs: store}
}

// errorStatus maps engine errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, reorder.ErrInFlight), errors.Is(err, reorder.ErrNotDragging):
		return fiber.StatusConflict
	case errors.Is(err, reorder.ErrUnknownContainer),
		errors.Is(err, reorder.ErrUnknownCategory),
		errors.Is(err, reorder.ErrStale):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrStopped):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func (h *ConsoleHandler) GetBoard(c *fiber.Ctx) error {
	return c.JSON(h.board.Snapshot())
}

func (h *ConsoleHandler) GetNotifications(c *fiber.Ctx) error {
	return c.JSON(h.board.Notifications(c.Query("after")))
}

func (h *ConsoleHandler) Reload(c *fiber.Ctx) error {
	if err := h.service.Reload(c.UserContext(), true); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "reloading",
	})
}

type StartDragRequest struct {
	Container string `json:"container"`
}

func (h *ConsoleHandler) StartDrag(c *fiber.Ctx) error {
	var req StartDragRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Container == "" {
		return badRequest(c, "Container name is required")
	}

	gesture, err := h.service.StartDrag(c.UserContext(), req.Container)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(gesture)
}

type DropRequest struct {
	Category string `json:"category"`
	Sibling  string `json:"sibling"`
}

// Drop answers 202: the mutation outcome arrives as a notification.
func (h *ConsoleHandler) Drop(c *fiber.Ctx) error {
	var req DropRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Category == "" {
		return badRequest(c, "Target category is required")
	}

	plan, err := h.service.Drop(c.UserContext(), domain.DropTarget{Category: req.Category, Sibling: req.Sibling})
	if err != nil {
		return fail(c, err)
	}
	if plan.Kind == domain.PlanNoop {
		return c.JSON(plan)
	}
	return c.Status(fiber.StatusAccepted).JSON(plan)
}

func (h *ConsoleHandler) CancelDrag(c *fiber.Ctx) error {
	if err := h.service.CancelDrag(c.UserContext()); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type CategoryOrderRequest struct {
	Order []string `json:"order"`
}

func (h *ConsoleHandler) ReorderCategories(c *fiber.Ctx) error {
	var req CategoryOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.Order) == 0 {
		return badRequest(c, "Category order is required")
	}

	plan, err := h.service.ReorderCategories(c.UserContext(), req.Order)
	if err != nil {
		return fail(c, err)
	}
	if plan.Kind == domain.PlanNoop {
		return c.JSON(plan)
	}
	return c.Status(fiber.StatusAccepted).JSON(plan)
}

func (h *ConsoleHandler) GetPreferences(c *fiber.Ctx) error {
	return c.JSON(h.prefs.Values())
}

// PreferencesRequest is a partial update; omitted fields keep their value.
type PreferencesRequest struct {
	AutoUpdate      *bool `json:"autoUpdate"`
	RefreshInterval *int  `json:"refreshInterval"`
}

func (h *ConsoleHandler) UpdatePreferences(c *fiber.Ctx) error {
	var req PreferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	v := h.prefs.Values()
	if req.AutoUpdate != nil {
		v.AutoUpdate = *req.AutoUpdate
	}
	if req.RefreshInterval != nil {
		v.RefreshInterval = *req.RefreshInterval
	}
	saved, err := h.prefs.Update(v)
	if err != nil {
		return fail(c, err)
	}
	if err := h.service.PreferencesChanged(c.UserContext()); err != nil {
		return fail(c, err)
	}
	return c.JSON(saved)
}

func (h *ConsoleHandler) GetStatus(c *fiber.Ctx) error {
	st, err := h.service.Status(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"connection":        st.Connection,
		"reconnectAttempts": st.ReconnectAttempts,
		"pollingArmed":      st.PollingArmed,
		"pollInterval":      st.PollInterval.String(),
		"engine":            st.Engine,
		"knownStatuses":     st.KnownStatuses,
		"lastReload":        st.LastReload,
	})
}

// Register mounts the console routes on router.
func (h *ConsoleHandler) Register(router fiber.Router) {
	router.Get("/board", h.GetBoard)
	router.Get("/notifications", h.GetNotifications)
	router.Post("/reload", h.Reload)

	drag := router.Group("/drag")
	drag.Post("/start", h.StartDrag)
	drag.Post("/drop", h.Drop)
	drag.Post("/cancel", h.CancelDrag)

	router.Put("/categories/order", h.ReorderCategories)
	router.Get("/preferences", h.GetPreferences)
	router.Put("/preferences", h.UpdatePreferences)
	router.Get("/status", h.GetStatus)
}
