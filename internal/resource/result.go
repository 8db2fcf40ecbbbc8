package resource

import (
	"context"
	"sync"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/internal/models"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/errors"
	"github.com/goccy/go-json"
)

type State string

const (
	StatePending  State = "pending"
	StateResolved State = "resolved"
	StateFailed   State = "failed"
)

// * Result is the placeholder handed back by every action. It starts pending
// * and is filled in place exactly once when the response arrives.
type Result struct {
	mu        sync.RWMutex
	done      chan struct{}
	isArray   bool
	state     State
	item      models.Entity
	items     []models.Entity
	err       error
	stale     bool
	fetchedAt time.Time
}

func newResult(isArray bool) *Result {
	return &Result{
		done:    make(chan struct{}),
		isArray: isArray,
		state:   StatePending,
	}
}

// * Failed returns an already settled result carrying err
func Failed(isArray bool, err error) *Result {
	r := newResult(isArray)
	r.fail(err)
	return r
}

func (r *Result) Done() <-chan struct{} {
	return r.done
}

// * Wait blocks until the result settles or ctx ends. It returns the load
// * error, or ctx.Err() when the result is still pending.
func (r *Result) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Result) IsArray() bool {
	return r.isArray
}

func (r *Result) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Result) Item() models.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.item
}

func (r *Result) Items() []models.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items
}

func (r *Result) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// * Stale reports that the value came from a snapshot because the backend failed
func (r *Result) Stale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stale
}

func (r *Result) FetchedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fetchedAt
}

// * decodeBody parses body in the shape the action expects
func decodeBody(isArray bool, body []byte) (models.Entity, []models.Entity, error) {
	var (
		item  models.Entity
		items []models.Entity
		err   error
	)
	if isArray {
		items, err = models.DecodeEntities(body)
	} else {
		item, err = models.DecodeEntity(body)
	}
	if err != nil {
		return nil, nil, errors.New(
			"RESOURCE_DECODE_ERROR",
			"Failed to parse backend response",
			describeShape(isArray),
			err,
			errors.LevelError,
		)
	}
	return item, items, nil
}

func (r *Result) resolve(body []byte, stale bool, fetchedAt time.Time) {
	item, items, err := decodeBody(r.isArray, body)
	if err != nil {
		r.fail(err)
		return
	}

	r.mu.Lock()
	r.item, r.items = item, items
	r.stale = stale
	r.fetchedAt = fetchedAt
	r.state = StateResolved
	r.mu.Unlock()
	close(r.done)
}

func (r *Result) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.state = StateFailed
	r.mu.Unlock()
	close(r.done)
}

func describeShape(isArray bool) string {
	if isArray {
		return "Expected a JSON array of objects"
	}
	return "Expected a JSON object"
}

type resultError struct {
	Reference string `json:"reference,omitempty"`
	Message   string `json:"message"`
}

type resultJSON struct {
	Status    State        `json:"status"`
	Stale     bool         `json:"stale,omitempty"`
	FetchedAt *time.Time   `json:"fetched_at,omitempty"`
	Data      any          `json:"data"`
	Error     *resultError `json:"error,omitempty"`
}

func (r *Result) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := resultJSON{Status: r.state, Stale: r.stale}
	switch r.state {
	case StateResolved:
		if r.isArray {
			out.Data = r.items
		} else {
			out.Data = r.item
		}
		if !r.fetchedAt.IsZero() {
			at := r.fetchedAt
			out.FetchedAt = &at
		}
	case StateFailed:
		out.Error = &resultError{Reference: errors.Reference(r.err), Message: errors.Title(r.err)}
	}
	return json.Marshal(out)
}
