package session

import "strings"

// DefaultRoute is the Selenium Grid 2/3 session collection route.
const DefaultRoute = "/wd/hub/session"

// Route classifies request paths against a session collection route.
// The zero value uses DefaultRoute.
type Route struct {
	prefix string
}

// NewRoute builds a Route for the given collection path. Surrounding
// slashes are normalized, so "wd/hub/session/" equals "/wd/hub/session".
func NewRoute(prefix string) Route {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return Route{prefix: DefaultRoute}
	}
	return Route{prefix: "/" + prefix}
}

// String returns the normalized collection path.
func (r Route) String() string {
	return r.path()
}

func (r Route) path() string {
	if r.prefix == "" {
		return DefaultRoute
	}
	return r.prefix
}

// remainder returns what follows the collection route. ok is false when
// the path does not address the collection at all. The match is anchored
// at the start of the path and at a segment boundary.
func (r Route) remainder(path string) (rest string, ok bool) {
	path = stripQuery(path)
	prefix := r.path()

	switch {
	case path == prefix:
		return "", true
	case strings.HasPrefix(path, prefix+"/"):
		return path[len(prefix):], true
	default:
		return "", false
	}
}

// IsNewSession reports whether path is the bare collection route, the
// target of a new-session POST. Trailing slashes are tolerated.
func (r Route) IsNewSession(path string) bool {
	rest, ok := r.remainder(path)
	return ok && strings.Trim(rest, "/") == ""
}

// SessionID extracts the first non-empty segment after the collection
// route. It returns false for paths outside the route and for paths with
// no id, including "<route>//".
func (r Route) SessionID(path string) (string, bool) {
	rest, ok := r.remainder(path)
	if !ok {
		return "", false
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg != "" {
			return seg, true
		}
	}
	return "", false
}

// LastSegment returns the final non-empty path segment, ignoring the query.
func LastSegment(path string) string {
	path = strings.TrimRight(stripQuery(path), "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func stripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}
