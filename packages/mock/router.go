package mock

import (
	"net/http"
	"regexp"
	"strings"
)

// HandlerFunc serves a matched route. params holds the path parameters
// named in the route pattern.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, params map[string]string)

// Route represents a mock route
type Route struct {
	Method      string
	PathPattern string
	PathRegex   *regexp.Regexp
	Name        string
	Handler     HandlerFunc
}

// Router matches incoming requests to routes
type Router struct {
	routes []*Route
}

// NewRouter creates a new router
func NewRouter() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

var paramPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Handle registers handler for method and a path pattern such as
// "/status/{{code}}".
func (r *Router) Handle(method, pattern, name string, handler HandlerFunc) {
	r.routes = append(r.routes, &Route{
		Method:      method,
		PathPattern: pattern,
		PathRegex:   createPathRegex(pattern),
		Name:        name,
		Handler:     handler,
	})
}

// Match finds a route for method and path. When the path only matches
// routes registered for other methods, route is nil and pathFound is true.
func (r *Router) Match(method, path string) (route *Route, params map[string]string, pathFound bool) {
	path = normalizePath(path)

	for _, rt := range r.routes {
		p := matchPath(rt, path)
		if p == nil {
			continue
		}
		if strings.EqualFold(rt.Method, method) {
			return rt, p, true
		}
		pathFound = true
	}

	return nil, nil, pathFound
}

func createPathRegex(pattern string) *regexp.Regexp {
	parts := paramPattern.Split(pattern, -1)
	names := paramPattern.FindAllStringSubmatch(pattern, -1)

	var b strings.Builder
	b.WriteString("^")
	for i, part := range parts {
		b.WriteString(regexp.QuoteMeta(part))
		if i < len(names) {
			b.WriteString(`(?P<` + strings.TrimSpace(names[i][1]) + `>[^/]+)`)
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

func normalizePath(path string) string {
	// Ensure path starts with /
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	// Remove trailing slash (except for root)
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

func matchPath(route *Route, path string) map[string]string {
	matches := route.PathRegex.FindStringSubmatch(path)
	if matches == nil {
		return nil
	}
	params := make(map[string]string)
	names := route.PathRegex.SubexpNames()
	for i, name := range names {
		if i > 0 && name != "" && i < len(matches) {
			params[name] = matches[i]
		}
	}
	return params
}
