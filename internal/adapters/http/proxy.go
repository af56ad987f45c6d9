package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/melih/lighthouse-console/internal/core/cache"
	"github.com/melih/lighthouse-console/internal/core/ports"
)

// ProxyRecorder receives passthrough metrics.
type ProxyRecorder interface {
	ProxyRequest(method string, code int)
}

// cachedResponse is a backend GET response kept in the generic TTL class.
type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

// ProxyHandler forwards backend-owned operations (container CRUD, install,
// start/stop, category edits, shell and file access) to the backend. A
// successful mutation invalidates the console's caches and reloads the
// board.
type ProxyHandler struct {
	target   *url.URL
	mount    string
	proxy    *httputil.ReverseProxy
	cache    *cache.Cache
	prefixes []string
	service  ports.ConsoleService
	metrics  ProxyRecorder
	logger   *slog.Logger
}

// NewProxyHandler proxies requests under mount to target. GET responses for
// paths under one of prefixes are cached.
func NewProxyHandler(target *url.URL, mount string, service ports.ConsoleService, c *cache.Cache,
	prefixes []string, metrics ProxyRecorder, logger *slog.Logger) *ProxyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &ProxyHandler{
		target:   target,
		mount:    strings.TrimRight(mount, "/"),
		cache:    c,
		prefixes: prefixes,
		service:  service,
		metrics:  metrics,
		logger:   logger,
	}

	proxy := httputil.NewSingleHostReverseProxy(target)

	// Strip the mount point and present the backend's own Host header.
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		req.URL.Path = h.backendPath(req.URL.Path)
		req.URL.RawPath = ""
		originalDirector(req)
		req.Host = target.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		h.logger.Warn("backend passthrough failed", "path", r.URL.Path, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, `{"error":%q}`, "backend unavailable: "+err.Error())
	}

	h.proxy = proxy
	return h
}

func (h *ProxyHandler) backendPath(p string) string {
	p = strings.TrimPrefix(p, h.mount)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func (h *ProxyHandler) cacheable(method, path string) bool {
	if method != fiber.MethodGet || h.cache == nil {
		return false
	}
	for _, prefix := range h.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func mutating(method string) bool {
	switch method {
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
		return true
	}
	return false
}

// ProxyRequest forwards one request.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	method := c.Method()
	path := h.backendPath(c.Path())

	key := "proxy:" + path
	if q := string(c.Request().URI().QueryString()); q != "" {
		key += "?" + q
	}

	cacheable := h.cacheable(method, path)
	var epoch uint64
	if cacheable {
		if resp, _, ok := cache.Lookup[cachedResponse](h.cache, key, false); ok {
			c.Set(fiber.HeaderContentType, resp.contentType)
			c.Set("X-Cache", "HIT")
			h.record(method, resp.status)
			return c.Status(resp.status).Send(resp.body)
		}
		epoch = h.cache.Epoch(key)
	}

	if err := adaptor.HTTPHandler(h.proxy)(c); err != nil {
		return err
	}

	status := c.Response().StatusCode()
	h.record(method, status)
	ok := status >= 200 && status < 300

	switch {
	case cacheable && ok:
		body := append([]byte(nil), c.Response().Body()...)
		h.cache.SetIfCurrent(key, epoch, cachedResponse{
			status:      status,
			contentType: string(c.Response().Header.ContentType()),
			body:        body,
		}, time.Time{})
	case mutating(method) && ok:
		if h.cache != nil {
			h.cache.InvalidateAll()
		}
		if err := h.service.AfterMutation(c.UserContext()); err != nil {
			h.logger.Warn("reload after passthrough mutation failed", "path", path, "error", err)
		}
	}
	return nil
}

func (h *ProxyHandler) record(method string, status int) {
	if h.metrics != nil {
		h.metrics.ProxyRequest(method, status)
	}
}
