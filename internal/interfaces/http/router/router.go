package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar registers a set of routes under a parent group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars under the versioned API prefix
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be mounted by Setup
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// BasePath returns the versioned API prefix, e.g. /api/v1
func (r *Router) BasePath() string {
	return "/api/" + r.apiVersion
}

// Setup mounts every registrar under BasePath
func (r *Router) Setup() {
	api := r.engine.Group(r.BasePath())
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup collects the routes of one resource before they are mounted
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	subgroups  []*DomainGroup
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// RouteInfo describes one registered route relative to the API base path
type RouteInfo struct {
	Group  string
	Method string
	Path   string
}

// NewDomainGroup creates a new resource route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{
		name:   name,
		prefix: prefix,
	}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

func (dg *DomainGroup) handle(method, p string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: p, handlers: handlers})
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

// PUT registers a PUT route
func (dg *DomainGroup) PUT(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPut, path, handlers)
}

// PATCH registers a PATCH route
func (dg *DomainGroup) PATCH(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPatch, path, handlers)
}

// DELETE registers a DELETE route
func (dg *DomainGroup) DELETE(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodDelete, path, handlers)
}

// Group creates a sub-group within this group
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	subgroup := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, subgroup)
	return subgroup
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
	for _, subgroup := range dg.subgroups {
		subgroup.RegisterRoutes(group)
	}
}

// Routes lists the routes of the group and its subgroups, depth first
func (dg *DomainGroup) Routes() []RouteInfo {
	return dg.collect("")
}

func (dg *DomainGroup) collect(parent string) []RouteInfo {
	base := path.Join("/", parent, dg.prefix)
	out := make([]RouteInfo, 0, len(dg.routes))
	for _, route := range dg.routes {
		full := base
		if route.path != "" && route.path != "/" {
			full = path.Join(base, route.path)
		}
		out = append(out, RouteInfo{Group: dg.name, Method: route.method, Path: full})
	}
	for _, subgroup := range dg.subgroups {
		out = append(out, subgroup.collect(base)...)
	}
	return out
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}
