package ports

import (
	"context"
	"fmt"

	"github.com/melih/lighthouse-console/internal/core/domain"
)

// BackendService is the request/response surface of the remote container
// backend that the sync engine consumes. Implementations may talk REST,
// or be an in-memory fake in tests.
type BackendService interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListContainers(ctx context.Context) ([]domain.Container, error)
	// ContainerStatuses is the lightweight polling payload.
	ContainerStatuses(ctx context.Context) (map[string]domain.Status, error)

	MoveContainer(ctx context.Context, req MoveRequest) error
	ReorderContainer(ctx context.Context, req ReorderRequest) error
	SaveCategoryOrder(ctx context.Context, positions map[string]int) error
}

// MoveRequest moves a container across categories. TargetPosition is -1
// when the container should be appended.
type MoveRequest struct {
	ContainerName  string `json:"containerName"`
	SourceCategory string `json:"sourceCategory"`
	TargetCategory string `json:"targetCategory"`
	TargetPosition int    `json:"targetPosition"`
}

// ReorderRequest repositions a container inside one category.
type ReorderRequest struct {
	ContainerName string `json:"containerName"`
	CategoryID    string `json:"categoryId"`
	FromPosition  int    `json:"fromPosition"`
	ToPosition    int    `json:"toPosition"`
}

// RejectedError is a mutation the backend refused. Reason carries the
// server-provided message meant for the operator.
type RejectedError struct {
	StatusCode int
	Reason     string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("backend rejected request (%d): %s", e.StatusCode, e.Reason)
}
