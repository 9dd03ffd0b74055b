package access

import (
	"path"
	"strings"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

// Resolver answers access questions against one Policy. It is immutable
// after construction and safe for concurrent use.
type Resolver struct {
	routes     Table
	defaults   Defaults
	signInPath string
}

// NewResolver copies p with every route key normalized.
func NewResolver(p Policy) *Resolver {
	r := &Resolver{
		routes:     make(Table, len(p.Routes)),
		defaults:   make(Defaults, len(p.Defaults)),
		signInPath: p.SignInPath,
	}
	if r.signInPath == "" {
		r.signInPath = DefaultSignInPath
	}
	for role, routes := range p.Routes {
		m := make(map[string]bool, len(routes))
		for route, allowed := range routes {
			m[joinSegments(Segments(route))] = allowed
		}
		r.routes[role] = m
	}
	for role, route := range p.Defaults {
		r.defaults[role] = route
	}
	return r
}

// HasAccess reports whether role may open rawPath. Admin is always allowed.
// Otherwise the most specific table entry along the path decides, walking
// from the full path up to "/"; no entry at any level denies.
func (r *Resolver) HasAccess(role domain.Role, rawPath string) bool {
	if role == domain.RoleAdmin {
		return true
	}

	routes, ok := r.routes[role]
	if !ok || len(routes) == 0 {
		return false
	}

	segs := Segments(rawPath)
	for n := len(segs); n >= 0; n-- {
		if allowed, ok := routes[joinSegments(segs[:n])]; ok {
			return allowed
		}
	}
	return false
}

// ResolveRedirect returns ("", false) when role may open rawPath, otherwise
// the role's fallback route and true. Roles without a fallback are sent to
// the sign-in page.
func (r *Resolver) ResolveRedirect(role domain.Role, rawPath string) (string, bool) {
	if r.HasAccess(role, rawPath) {
		return "", false
	}
	return r.DefaultRoute(role), true
}

// DefaultRoute is the landing route for role.
func (r *Resolver) DefaultRoute(role domain.Role) string {
	if route, ok := r.defaults[role]; ok && route != "" {
		return route
	}
	return r.signInPath
}

// SignInPath is where unauthenticated requests are sent.
func (r *Resolver) SignInPath() string { return r.signInPath }

// Normalize strips the query and fragment and cleans the path: duplicate
// and trailing slashes are dropped and dot segments resolved.
func Normalize(rawPath string) string {
	return joinSegments(Segments(rawPath))
}

// Segments splits a normalized rawPath into its non-empty segments. "/"
// has none.
func Segments(rawPath string) []string {
	if i := strings.IndexAny(rawPath, "?#"); i >= 0 {
		rawPath = rawPath[:i]
	}
	cleaned := path.Clean("/" + rawPath)
	if cleaned == "/" {
		return nil
	}
	return strings.Split(cleaned[1:], "/")
}

func joinSegments(segs []string) string {
	return "/" + strings.Join(segs, "/")
}
