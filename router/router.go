package router

import (
	"context"
	"strings"

	"github.com/julienschmidt/httprouter"
	"net/http"
)

// Router wraps httprouter.Router, adding registration from our fluent
// Route builder so call sites never touch httprouter directly.
type Router struct {
	*httprouter.Router
}

func New() *Router {
	return &Router{httprouter.New()}
}

// Register installs a Route's built handler at its endpoint pattern. The
// pattern is "METHOD /path", e.g. "POST /api/start_sequence".
func (r *Router) Register(route *Route) {
	method, path, ok := strings.Cut(route.Endpoint, " ")
	if !ok {
		panic("router: malformed endpoint pattern, want \"METHOD /path\": " + route.Endpoint)
	}
	r.Handler(method, path, route.Handler())
}

// RegisterAll installs every route.
func (r *Router) RegisterAll(routes ...*Route) {
	for _, route := range routes {
		r.Register(route)
	}
}

func (r *Router) Get(path string, handler http.Handler) {
	r.Handler("GET", path, handler)
}

// Param is one named path parameter, router-independent.
type Param struct {
	Key   string
	Value string
}

type Params []Param

// ByName returns the value for key, or "" if absent.
func (p Params) ByName(key string) string {
	for _, param := range p {
		if param.Key == key {
			return param.Value
		}
	}
	return ""
}

// NamedParams abstracts path-parameter extraction so handlers never import
// httprouter directly.
type NamedParams interface {
	Get(ctx context.Context) Params
}

// HttpRouterNamedParams implements NamedParams for httprouter.
type HttpRouterNamedParams struct{}

// Get transforms the httprouter context variable into router-independent Params.
func (np *HttpRouterNamedParams) Get(ctx context.Context) Params {
	pms, _ := ctx.Value(httprouter.ParamsKey).(httprouter.Params)

	var params Params
	for _, v := range pms {
		params = append(params, Param{Key: v.Key, Value: v.Value})
	}
	return params
}

func NewHttpRouterNamedParams() *HttpRouterNamedParams {
	return &HttpRouterNamedParams{}
}
