package controller

import (
	"context"
	"fmt"
	"net/http"

	"github.com/KOFI-GYIMAH/stl-devs-web/internal/resource"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/router"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/errors"
)

// * Controller binds data into a fresh scope when its view activates
type Controller interface {
	Activate(ctx context.Context, scope *Scope, params router.Params)
}

type ControllerFunc func(ctx context.Context, scope *Scope, params router.Params)

func (f ControllerFunc) Activate(ctx context.Context, scope *Scope, params router.Params) {
	f(ctx, scope, params)
}

// * UserList exposes the user collection as scope.Users
func UserList(users *resource.Resource) Controller {
	return ControllerFunc(func(ctx context.Context, scope *Scope, params router.Params) {
		scope.Users = users.Query(ctx, nil)
	})
}

// * User fetches the user named by the id route param into scope.Repos.
// * With the array-shaped backend the payload is that user's repo list.
func User(users *resource.Resource) Controller {
	return ControllerFunc(func(ctx context.Context, scope *Scope, params router.Params) {
		scope.RouteParams = params

		id := params["id"]
		if id == "" {
			action, _ := users.Action(resource.ActionGet)
			scope.Repos = resource.Failed(action.IsArray, errors.New(
				"ROUTE_PARAM_MISSING",
				"Missing route parameter",
				"The user view needs an id in the path",
				nil,
				errors.LevelWarning,
			))
			return
		}

		scope.Repos = users.Get(ctx, resource.Params{"id": id})
	})
}

type Registry struct {
	controllers map[string]Controller
}

func NewRegistry() *Registry {
	return &Registry{controllers: map[string]Controller{}}
}

// * DefaultRegistry wires the two directory controllers onto the users resource
func DefaultRegistry(users *resource.Resource) *Registry {
	reg := NewRegistry()
	reg.Register("UserList", UserList(users))
	reg.Register("User", User(users))
	return reg
}

func (r *Registry) Register(name string, c Controller) {
	r.controllers[name] = c
}

// * Activate builds the scope for a matched route
func (r *Registry) Activate(ctx context.Context, route *router.Route, params router.Params) (*Scope, error) {
	c, ok := r.controllers[route.Controller]
	if !ok {
		return nil, errors.New(
			"CONTROLLER_NOT_FOUND",
			"No controller for view",
			fmt.Sprintf("Route %s refers to unknown controller %q", route.Pattern, route.Controller),
			nil,
			errors.LevelFatal,
		)
	}

	scope := &Scope{View: route.Name, Template: route.Template}
	c.Activate(ctx, scope, params)
	return scope, nil
}

// * UsersResource declares the users resource the directory controllers bind to.
// * arrayShaped makes get expect the repo list the detail endpoint answers with.
func UsersResource(client *resource.Client, arrayShaped bool, opts ...resource.Option) *resource.Resource {
	if arrayShaped {
		opts = append(opts, resource.WithAction(resource.ActionGet, resource.Action{Method: http.MethodGet, IsArray: true}))
	}
	return resource.New(client, "/users/:id", resource.Params{"id": "@id"}, opts...)
}
