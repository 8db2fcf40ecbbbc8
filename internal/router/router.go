package router

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
)

// * Params holds the placeholder values extracted from the current path.
// * It lives only as long as the view it was resolved for.
type Params map[string]string

// * Route binds a path pattern to a template and a controller, both by name
type Route struct {
	Name       string
	Pattern    string
	Template   string
	Controller string
}

// * Match is the outcome of Resolve: either a Route with its Params, or a Redirect target
type Match struct {
	Route    *Route
	Params   Params
	Redirect string
}

func (m Match) Matched() bool {
	return m.Route != nil
}

type Router struct {
	mux      *mux.Router
	routes   []Route
	fallback string
}

// * DefaultRoutes is the view table of the directory
func DefaultRoutes() []Route {
	return []Route{
		{Name: "user-list", Pattern: "/", Template: "user-list", Controller: "UserList"},
		{Name: "user", Pattern: "/users/{id}", Template: "user", Controller: "User"},
	}
}

func New(routes []Route, fallback string) *Router {
	r := &Router{
		mux:      mux.NewRouter(),
		routes:   routes,
		fallback: fallback,
	}
	for i := range routes {
		r.mux.NewRoute().Name(routes[i].Name).Path(routes[i].Pattern)
	}
	return r
}

func (r *Router) Routes() []Route {
	return r.routes
}

// * Resolve selects exactly one route for path, or redirects to the fallback
func (r *Router) Resolve(path string) Match {
	u, err := url.Parse(path)
	if err != nil || u.Path == "" {
		return Match{Redirect: r.fallback}
	}

	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: u.Path}}

	var rm mux.RouteMatch
	if !r.mux.Match(req, &rm) || rm.MatchErr != nil {
		return Match{Redirect: r.fallback}
	}

	name := rm.Route.GetName()
	for i := range r.routes {
		if r.routes[i].Name == name {
			params := Params{}
			for k, v := range rm.Vars {
				params[k] = v
			}
			return Match{Route: &r.routes[i], Params: params}
		}
	}
	return Match{Redirect: r.fallback}
}
