package rest

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// access who may call a route
type access int

const (
	public access = iota
	signedIn
)

type endpoint struct {
	apiVersion  string
	middlewares []echo.MiddlewareFunc
	groups      []*apiGroup
}

type apiGroup struct {
	prefix string
	routes []*route
}

type route struct {
	method  string
	path    string
	handler echo.HandlerFunc
	access  access
	// streaming routes keep the connection open, the request timeout does not apply
	streaming bool
}

// routeGuards per route middlewares selected by the route flags
type routeGuards struct {
	session echo.MiddlewareFunc
	timeout echo.MiddlewareFunc
}

func (r *route) middlewares(guards *routeGuards) []echo.MiddlewareFunc {
	var chain []echo.MiddlewareFunc
	if !r.streaming && guards.timeout != nil {
		chain = append(chain, guards.timeout)
	}
	if r.access == signedIn {
		chain = append(chain, guards.session)
	}
	return chain
}

func createEndpoint(app *echo.Echo, def *endpoint, guards *routeGuards) {
	root := app.Group("/"+strings.TrimPrefix(def.apiVersion, "/"), def.middlewares...)
	for _, group := range def.groups {
		g := root.Group(group.prefix)
		for _, r := range group.routes {
			g.Add(r.method, r.path, r.handler, r.middlewares(guards)...)
		}
	}
}
