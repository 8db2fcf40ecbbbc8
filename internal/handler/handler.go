package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/internal/controller"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/resource"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/router"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/view"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/errors"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, userID string) error
}

type ViewHandler struct {
	router        *router.Router
	registry      *controller.Registry
	renderer      *view.Renderer
	renderTimeout time.Duration
	refresher     RefreshPublisher
}

func NewViewHandler(r *router.Router, registry *controller.Registry, renderer *view.Renderer, renderTimeout time.Duration, refresher RefreshPublisher) *ViewHandler {
	return &ViewHandler{
		router:        r,
		registry:      registry,
		renderer:      renderer,
		renderTimeout: renderTimeout,
		refresher:     refresher,
	}
}

// * RegisterRoutes mounts one page per view route on root, the JSON API on api,
// * and sends every other non-API path back to the fallback view
func (h *ViewHandler) RegisterRoutes(root, api *mux.Router) {
	for _, route := range h.router.Routes() {
		root.HandleFunc(route.Pattern, h.renderView).Methods("GET")
	}
	root.NotFoundHandler = http.HandlerFunc(h.redirect)

	api.NotFoundHandler = http.HandlerFunc(h.apiNotFound)
	api.HandleFunc("/views", h.getView).Methods("GET")
	api.HandleFunc("/refresh", h.refresh).Methods("POST")
	api.HandleFunc("/health", h.health).Methods("GET")
}

func writeSuccess(w http.ResponseWriter, status int, data any, message ...string) {
	resp := APIResponse{
		Status: "success",
		Data:   data,
	}
	if len(message) > 0 {
		resp.Message = message[0]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (h *ViewHandler) redirect(w http.ResponseWriter, r *http.Request) {
	m := h.router.Resolve(r.URL.Path)
	target := m.Redirect
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *ViewHandler) apiNotFound(w http.ResponseWriter, r *http.Request) {
	errors.WriteHTTPError(w, errors.New(
		"ROUTE_NOT_FOUND",
		"No such endpoint",
		fmt.Sprintf("%s %s is not part of the API", r.Method, r.URL.Path),
		nil,
		errors.LevelInfo,
	))
}

// * activate resolves path and waits for the scope up to the render timeout.
// * A timeout is not an error, pending results render as loading.
func (h *ViewHandler) activate(ctx context.Context, path string) (router.Match, *controller.Scope, error) {
	m := h.router.Resolve(path)
	if !m.Matched() {
		return m, nil, nil
	}

	scope, err := h.registry.Activate(ctx, m.Route, m.Params)
	if err != nil {
		return m, nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.renderTimeout)
	defer cancel()
	if err := scope.Wait(waitCtx); err != nil {
		logger.Warn("view %s still loading after %s", path, h.renderTimeout)
	}

	return m, scope, nil
}

// * statusFor maps the first failed result of scope to the page status
func statusFor(scope *controller.Scope) int {
	for _, result := range []*resource.Result{scope.Users, scope.Repos} {
		if result == nil || result.Err() == nil {
			continue
		}
		err := result.Err()
		switch {
		case errors.HasReference(err, "RESOURCE_NOT_FOUND"):
			return http.StatusNotFound
		case errors.HasReference(err, "ROUTE_PARAM_MISSING"):
			return http.StatusBadRequest
		default:
			return http.StatusBadGateway
		}
	}
	return http.StatusOK
}

func (h *ViewHandler) renderView(w http.ResponseWriter, r *http.Request) {
	m, scope, err := h.activate(r.Context(), r.URL.Path)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}
	if !m.Matched() {
		http.Redirect(w, r, m.Redirect, http.StatusFound)
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, scope); err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusFor(scope))
	buf.WriteTo(w)
}

// getView godoc
// @Summary Resolve View
// @Description Resolve a front-end path to its view and return the bound scope
// @Tags Views
// @Produce json
// @Param path query string false "Front-end path" default(/)
// @Success 200 {object} APIResponse
// @Failure 500 {object} errors.HTTPErrorResponse
// @Router /views [get]
func (h *ViewHandler) getView(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	m, scope, err := h.activate(r.Context(), path)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if !m.Matched() {
		writeSuccess(w, http.StatusOK, RedirectResponse{Redirect: m.Redirect}, "Path redirects")
		return
	}

	logger.Debug("Resolved %s to view %s", path, scope.View)
	writeSuccess(w, http.StatusOK, scope, "Successfully resolved view")
}

// refresh godoc
// @Summary Refresh Snapshots
// @Description Queue a snapshot refresh for one user, or for every user when id is omitted
// @Tags Snapshots
// @Accept json
// @Produce json
// @Param request body RefreshRequest false "User to refresh"
// @Success 202 {object} APIResponse
// @Failure 400 {object} errors.HTTPErrorResponse
// @Failure 503 {object} errors.HTTPErrorResponse
// @Router /refresh [post]
func (h *ViewHandler) refresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		errors.WriteHTTPError(w, errors.New(
			"REFRESH_DISABLED",
			"Snapshots are disabled",
			"Configure DB_PATH to enable snapshot refreshes",
			nil,
			errors.LevelError,
		).WithStatus(http.StatusServiceUnavailable))
		return
	}

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		errors.WriteHTTPError(w, errors.New(
			"INVALID_REQUEST",
			"Invalid refresh request",
			"The body should be a JSON object like {\"id\": \"7\"}",
			err,
			errors.LevelWarning,
		))
		return
	}

	if err := h.refresher.PublishRefresh(r.Context(), req.ID); err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	logger.Info("Queued refresh for %q", req.ID)
	writeSuccess(w, http.StatusAccepted, map[string]string{"id": req.ID}, "Refresh queued")
}

// health godoc
// @Summary Health
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse
// @Router /health [get]
func (h *ViewHandler) health(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}
