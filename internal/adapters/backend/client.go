// Package backend is the REST adapter for the container backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/melih/lighthouse-console/internal/core/domain"
	"github.com/melih/lighthouse-console/internal/core/ports"
)

// Backend routes.
const (
	PathCategories     = "/api/categories"
	PathContainers     = "/api/containers"
	PathStatuses       = "/api/containers/status"
	PathMove           = "/api/container/move"
	PathReorder        = "/api/container/reorder"
	PathCategoryOrder  = "/api/categories/order"
	maxErrorBodyLength = 64 << 10
)

// Client implements ports.BackendService over HTTP.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported backend url scheme %q", u.Scheme)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: timeout},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL is the backend root.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// ListCategories fetches the category collection.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	body, err := c.get(ctx, PathCategories)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	cats, err := decodeCategories(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	return cats, nil
}

// ListContainers fetches the container collection.
func (c *Client) ListContainers(ctx context.Context) ([]domain.Container, error) {
	body, err := c.get(ctx, PathContainers)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	containers, err := decodeContainers(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode containers: %w", err)
	}
	return containers, nil
}

// ContainerStatuses fetches the lightweight status list used by polling.
func (c *Client) ContainerStatuses(ctx context.Context) (map[string]domain.Status, error) {
	body, err := c.get(ctx, PathStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch statuses: %w", err)
	}
	statuses, err := DecodeStatuses(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode statuses: %w", err)
	}
	return statuses, nil
}

// MoveContainer moves a container to another category.
func (c *Client) MoveContainer(ctx context.Context, req ports.MoveRequest) error {
	if err := c.post(ctx, PathMove, req); err != nil {
		return fmt.Errorf("failed to move %s: %w", req.ContainerName, err)
	}
	return nil
}

// ReorderContainer changes a container's position within its category.
func (c *Client) ReorderContainer(ctx context.Context, req ports.ReorderRequest) error {
	if err := c.post(ctx, PathReorder, req); err != nil {
		return fmt.Errorf("failed to reorder %s: %w", req.ContainerName, err)
	}
	return nil
}

// SaveCategoryOrder persists category positions.
func (c *Client) SaveCategoryOrder(ctx context.Context, positions map[string]int) error {
	type pos struct {
		Position int `json:"position"`
	}
	payload := make(map[string]pos, len(positions))
	for id, p := range positions {
		payload[id] = pos{Position: p}
	}
	if err := c.post(ctx, PathCategoryOrder, payload); err != nil {
		return fmt.Errorf("failed to save category order: %w", err)
	}
	return nil
}

func (c *Client) url(path string) string {
	return c.base.JoinPath(path).String()
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, rejected(resp.StatusCode, body)
	}
	return body, nil
}

type mutationResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// post sends a mutation. A non-2xx response or a body carrying an error
// field is a *ports.RejectedError.
func (c *Client) post(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rejected(resp.StatusCode, body)
	}

	var mr mutationResponse
	if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, &mr) == nil && mr.Error != "" {
		return &ports.RejectedError{StatusCode: resp.StatusCode, Reason: mr.Error}
	}
	c.logger.Debug("backend mutation accepted", "path", path, "status", mr.Status)
	return nil
}

func rejected(code int, body []byte) *ports.RejectedError {
	reason := http.StatusText(code)
	var mr mutationResponse
	if json.Unmarshal(body, &mr) == nil {
		switch {
		case mr.Error != "":
			reason = mr.Error
		case mr.Message != "":
			reason = mr.Message
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 256 {
		reason = text
	}
	return &ports.RejectedError{StatusCode: code, Reason: reason}
}

var _ ports.BackendService = (*Client)(nil)
