package router

import (
	"net/http"
)

// Route binds an "METHOD /path" endpoint pattern to a handler plus its
// middleware and observer chain. It is built fluently and then registered
// on a Router, or used standalone in tests via Handler().
type Route struct {
	Endpoint string

	handler     http.Handler
	middlewares []func(http.Handler) http.Handler
	observers   []http.Handler
}

// NewRoute starts a route definition for the given "METHOD /path" endpoint.
// endpoint cannot be empty.
func NewRoute(endpoint string) *Route {
	if endpoint == "" {
		panic("route endpoint cannot be empty")
	}
	return &Route{
		Endpoint:    endpoint,
		middlewares: make([]func(http.Handler) http.Handler, 0),
	}
}

// WithHandler sets the final handler for the route.
func (r *Route) WithHandler(h http.Handler) *Route {
	r.handler = h
	return r
}

// WithHandlerFunc sets the final handler function for the route.
func (r *Route) WithHandlerFunc(h http.HandlerFunc) *Route {
	return r.WithHandler(h)
}

// WithMiddleware adds one or more middlewares to the chain. Middlewares
// execute in the order they are defined, from left to right:
//
//	.WithMiddleware(mw1, mw2, mw3)
//
// runs mw1, then mw2, then mw3, then the handler - the same convention as
// github.com/justinas/alice, where the first middleware listed is the
// outermost and runs first.
func (r *Route) WithMiddleware(middlewares ...func(http.Handler) http.Handler) *Route {
	for _, mw := range middlewares {
		r.middlewares = append([]func(http.Handler) http.Handler{mw}, r.middlewares...)
	}
	return r
}

// WithMiddlewareChain prepends a chain of middlewares, in the given order.
func (r *Route) WithMiddlewareChain(middlewares []func(http.Handler) http.Handler) *Route {
	return r.WithMiddleware(middlewares...)
}

// WithObservers adds handlers that run after the handler and middleware
// chain, even if a middleware returned early. Observers must not write to
// the response.
func (r *Route) WithObservers(observers ...http.Handler) *Route {
	r.observers = append(r.observers, observers...)
	return r
}

// Handler returns the final handler with all middlewares and observers
// applied. Panics if no handler was set.
func (r *Route) Handler() http.Handler {
	if r.handler == nil {
		panic("route handler cannot be nil")
	}
	handler := r.handler
	for _, mw := range r.middlewares {
		handler = mw(handler)
	}

	if len(r.observers) == 0 {
		return handler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		handler.ServeHTTP(w, req)
		for _, obs := range r.observers {
			obs.ServeHTTP(w, req)
		}
	})
}
