package resource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/internal/models"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/errors"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/logger"
)

const (
	ActionQuery = "query"
	ActionGet   = "get"
)

// * Params binds URL template placeholders. A default value of "@field" is
// * read from the entity instance by Reload.
type Params map[string]string

type Action struct {
	Method  string
	IsArray bool
}

// * Cache keeps the last good body per request so a failing backend can be papered over
type Cache interface {
	Load(ctx context.Context, key string) (body []byte, fetchedAt time.Time, err error)
	Store(ctx context.Context, key string, body []byte) error
}

// * Resource maps one URL template onto CRUD-style actions
type Resource struct {
	client   *Client
	template string
	defaults Params
	actions  map[string]Action
	cache    Cache

	fallbackAfter time.Duration
}

type Option func(*Resource)

// * WithAction adds or replaces an action, e.g. get with IsArray for the array-shaped backend
func WithAction(name string, action Action) Option {
	return func(r *Resource) {
		r.actions[name] = action
	}
}

func WithCache(cache Cache) Option {
	return func(r *Resource) {
		r.cache = cache
	}
}

// * WithFallbackAfter serves the cached snapshot once a request has been pending for d.
// * Keep d below the render timeout so a hanging backend still renders data.
func WithFallbackAfter(d time.Duration) Option {
	return func(r *Resource) {
		r.fallbackAfter = d
	}
}

func New(client *Client, template string, defaults Params, opts ...Option) *Resource {
	r := &Resource{
		client:   client,
		template: template,
		defaults: defaults,
		actions: map[string]Action{
			ActionQuery: {Method: http.MethodGet, IsArray: true},
			ActionGet:   {Method: http.MethodGet},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resource) Template() string {
	return r.template
}

func (r *Resource) Action(name string) (Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// * Query lists the collection
func (r *Resource) Query(ctx context.Context, params Params) *Result {
	return r.Invoke(ctx, ActionQuery, params)
}

// * Get fetches one instance
func (r *Resource) Get(ctx context.Context, params Params) *Result {
	return r.Invoke(ctx, ActionGet, params)
}

// * Reload re-fetches an instance, deriving params from its "@field" defaults
func (r *Resource) Reload(ctx context.Context, e models.Entity) *Result {
	return r.Invoke(ctx, ActionGet, r.InstanceParams(e))
}

// * InstanceParams resolves every "@field" default against the entity
func (r *Resource) InstanceParams(e models.Entity) Params {
	params := Params{}
	for name, value := range r.defaults {
		if field, ok := strings.CutPrefix(value, "@"); ok {
			params[name] = e.String(field)
		}
	}
	return params
}

// * Invoke runs the named action asynchronously and returns its placeholder at once
func (r *Resource) Invoke(ctx context.Context, name string, params Params) *Result {
	action, ok := r.actions[name]
	if !ok {
		return Failed(false, errors.New(
			"RESOURCE_ACTION_UNKNOWN",
			"Unknown resource action",
			fmt.Sprintf("Resource %s has no action %q", r.template, name),
			nil,
			errors.LevelFatal,
		))
	}

	path := r.URL(params)
	result := newResult(action.IsArray)

	go r.load(ctx, action, path, result)

	return result
}

type response struct {
	body []byte
	err  error
}

// * load settles result from the backend. With a cache and a fallback delay, a
// * backend slower than the delay is answered from the snapshot instead.
func (r *Resource) load(ctx context.Context, action Action, path string, result *Result) {
	done := make(chan response, 1)
	go func() {
		body, err := r.fetch(ctx, action, path)
		done <- response{body: body, err: err}
	}()

	var slow <-chan time.Time
	if r.cache != nil && r.fallbackAfter > 0 {
		timer := time.NewTimer(r.fallbackAfter)
		defer timer.Stop()
		slow = timer.C
	}

	select {
	case resp := <-done:
		r.settle(ctx, path, result, resp)
	case <-slow:
		if !r.serveSnapshot(ctx, path, result) {
			r.settle(ctx, path, result, <-done)
			return
		}
		logger.Warn("backend slower than %s for %s, served snapshot", r.fallbackAfter, path)

		// * The late answer still refreshes the snapshot
		if resp := <-done; resp.err == nil {
			r.store(ctx, path, resp.body)
		}
	}
}

func (r *Resource) settle(ctx context.Context, path string, result *Result, resp response) {
	if resp.err == nil {
		r.store(ctx, path, resp.body)
		result.resolve(resp.body, false, time.Now().UTC())
		return
	}

	if canFallback(resp.err) && r.serveSnapshot(ctx, path, result) {
		logger.Warn("served snapshot for %s: %v", path, resp.err)
		return
	}

	logger.Debug("load of %s failed: %v", path, resp.err)
	result.fail(resp.err)
}

// * serveSnapshot resolves result from the cache; unusable snapshots are ignored
func (r *Resource) serveSnapshot(ctx context.Context, path string, result *Result) bool {
	if r.cache == nil {
		return false
	}
	body, at, err := r.cache.Load(ctx, path)
	if err != nil {
		return false
	}
	if _, _, err := decodeBody(result.IsArray(), body); err != nil {
		logger.Warn("ignoring unreadable snapshot for %s: %v", path, err)
		return false
	}
	result.resolve(body, true, at)
	return true
}

func (r *Resource) store(ctx context.Context, path string, body []byte) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Store(ctx, path, body); err != nil {
		logger.Warn("failed to store snapshot for %s: %v", path, err)
	}
}

// * fetch performs the request and rejects bodies that do not match the action's shape
func (r *Resource) fetch(ctx context.Context, action Action, path string) ([]byte, error) {
	body, err := r.client.Do(ctx, action.Method, path)
	if err != nil {
		return nil, err
	}
	if _, _, err := decodeBody(action.IsArray, body); err != nil {
		return nil, err
	}
	return body, nil
}

// * Fetch runs an action synchronously, bypassing the cache; refreshes use it to seed snapshots.
// * A body that does not decode in the action's shape is an error and never reaches a snapshot.
func (r *Resource) Fetch(ctx context.Context, name string, params Params) (string, []byte, error) {
	action, ok := r.actions[name]
	if !ok {
		return "", nil, errors.New(
			"RESOURCE_ACTION_UNKNOWN",
			"Unknown resource action",
			fmt.Sprintf("Resource %s has no action %q", r.template, name),
			nil,
			errors.LevelFatal,
		)
	}

	path := r.URL(params)
	body, err := r.fetch(ctx, action, path)
	return path, body, err
}

// * canFallback excludes answers the backend gave on purpose, a 404 stays a 404
func canFallback(err error) bool {
	return errors.HasReference(err, "BACKEND_UNREACHABLE") ||
		errors.HasReference(err, "RESOURCE_DECODE_ERROR") ||
		errors.HasReference(err, "BACKEND_STATUS") ||
		errors.HasReference(err, "BACKEND_READ_ERROR")
}

// * URL expands the template. Bound placeholders are path-escaped, unbound ones
// * are dropped with their slash, and leftover params become the query string.
func (r *Resource) URL(params Params) string {
	merged := Params{}
	for name, value := range r.defaults {
		if !strings.HasPrefix(value, "@") {
			merged[name] = value
		}
	}
	for name, value := range params {
		merged[name] = value
	}

	used := map[string]bool{}
	var b strings.Builder
	for _, segment := range strings.Split(strings.Trim(r.template, "/"), "/") {
		if segment == "" {
			continue
		}
		if name, ok := strings.CutPrefix(segment, ":"); ok {
			used[name] = true
			value := merged[name]
			if value == "" {
				continue
			}
			segment = url.PathEscape(value)
		}
		b.WriteString("/")
		b.WriteString(segment)
	}

	path := b.String()
	if path == "" {
		path = "/"
	}

	query := url.Values{}
	for name, value := range merged {
		if !used[name] && value != "" {
			query.Set(name, value)
		}
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return path
}
