package controller

import (
	"context"

	"github.com/KOFI-GYIMAH/stl-devs-web/internal/resource"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/router"
)

// * Scope is the per-view state a template binds to. One activation owns it
// * and it is dropped once the view is rendered.
type Scope struct {
	View        string           `json:"view"`
	Template    string           `json:"template"`
	RouteParams router.Params    `json:"routeParams,omitempty"`
	Users       *resource.Result `json:"users,omitempty"`
	Repos       *resource.Result `json:"repos,omitempty"`
}

func (s *Scope) results() []*resource.Result {
	var out []*resource.Result
	for _, r := range []*resource.Result{s.Users, s.Repos} {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// * Wait blocks until every bound result settles or ctx ends. Load failures
// * stay on the results, only ctx errors are returned.
func (s *Scope) Wait(ctx context.Context) error {
	for _, r := range s.results() {
		select {
		case <-r.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// * Failed reports whether any bound result ended in the load failed state
func (s *Scope) Failed() bool {
	for _, r := range s.results() {
		if r.State() == resource.StateFailed {
			return true
		}
	}
	return false
}
