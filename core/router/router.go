// Package router maps (method, path) pairs to registered handlers.
//
// Patterns are ordered segment lists: each segment is either a literal or
// a named <param> placeholder that binds one non-empty path segment.
// Static segments always beat parameter segments when both could match.
package router

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/tinyhttpd/tinyserve/core/http"
)

// Handler processes one request. A non-nil error is treated like a
// handler fault: the connection handler turns it into a 500 when the
// response has not started yet.
type Handler func(req *http.Request, resp *http.Response) error

// Resolution errors. Distinct so the connection handler can answer 404
// and 405 differently.
var (
	ErrNotFound         = errors.New("no route for path")
	ErrMethodNotAllowed = errors.New("method not allowed for path")
)

// DefaultMaxBodySize caps request bodies for routes that do not set
// their own limit.
const DefaultMaxBodySize = 1024

// Options carries per-route configuration. The zero value means:
// methods GET and POST, no saved headers, DefaultMaxBodySize, and "*"
// for the access-control headers.
type Options struct {
	Methods                     []string
	SaveHeaders                 []string
	MaxBodySize                 int
	AllowedAccessControlHeaders string
	AllowedAccessControlOrigins string
}

type segment struct {
	literal string
	param   string // set for <name> segments
}

// Route is an immutable registered mapping. It is owned by the router's
// table; registration happens before the accept loop starts, so lookup
// needs no locking.
type Route struct {
	Pattern     string
	Methods     []string
	Handler     Handler
	SaveHeaders []string
	MaxBodySize int

	// Access-control values emitted by Response.AddCORSHeaders.
	AllowOrigins string
	AllowHeaders string
	AllowMethods string

	segments []segment
}

func (rt *Route) allowsMethod(method string) bool {
	for _, m := range rt.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// match reports whether the route matches the split request path, and
// returns any bound path parameters.
func (rt *Route) match(reqParts []string) (map[string]string, bool) {
	if len(rt.segments) != len(reqParts) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range rt.segments {
		if seg.param != "" {
			if reqParts[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string, 2)
			}
			params[seg.param] = reqParts[i]
			continue
		}
		if seg.literal != reqParts[i] {
			return nil, false
		}
	}
	return params, true
}

// moreSpecific reports whether a beats b: at the first position where the
// two differ in kind, a literal segment wins over a parameter.
func moreSpecific(a, b *Route) bool {
	for i := range a.segments {
		aParam := a.segments[i].param != ""
		bParam := b.segments[i].param != ""
		if aParam != bParam {
			return bParam
		}
	}
	return false
}

// Router holds the route table. Register everything up front; Resolve is
// read-only afterwards.
type Router struct {
	routes   []*Route
	catchAll *Route
}

// New creates an empty router.
func New() *Router {
	return &Router{}
}

func splitPath(p string) []string {
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

func parsePattern(pattern string) ([]segment, error) {
	if pattern == "" || pattern[0] != '/' {
		return nil, errors.Errorf("pattern %q must begin with '/'", pattern)
	}
	if strings.ContainsAny(pattern, "? ") {
		return nil, errors.Errorf("pattern %q contains invalid characters", pattern)
	}

	parts := splitPath(pattern)
	segments := make([]segment, 0, len(parts))
	seen := map[string]struct{}{}
	for i, part := range parts {
		if part == "" {
			// A trailing slash is its own trailing empty segment;
			// interior empty segments are malformed.
			if i != len(parts)-1 {
				return nil, errors.Errorf("pattern %q has an empty segment", pattern)
			}
			segments = append(segments, segment{})
			continue
		}
		if strings.HasPrefix(part, "<") && strings.HasSuffix(part, ">") {
			name := part[1 : len(part)-1]
			if name == "" {
				return nil, errors.Errorf("pattern %q has an unnamed parameter", pattern)
			}
			if _, dup := seen[name]; dup {
				return nil, errors.Errorf("pattern %q repeats parameter %q", pattern, name)
			}
			seen[name] = struct{}{}
			segments = append(segments, segment{param: name})
			continue
		}
		if strings.ContainsAny(part, "<>") {
			return nil, errors.Errorf("pattern %q has a malformed segment %q", pattern, part)
		}
		segments = append(segments, segment{literal: part})
	}
	return segments, nil
}

// Register adds a route for pattern with the given options. It fails on a
// malformed pattern, an unknown method, or a (pattern, method) pair that
// is already taken.
func (r *Router) Register(pattern string, h Handler, opts Options) (*Route, error) {
	segments, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}

	methods := opts.Methods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost}
	}
	upper := make([]string, len(methods))
	for i, m := range methods {
		upper[i] = strings.ToUpper(m)
		if !http.ValidMethod(upper[i]) {
			return nil, errors.Errorf("unknown method %q", m)
		}
	}

	for _, existing := range r.routes {
		if existing.Pattern != pattern {
			continue
		}
		for _, m := range upper {
			if existing.allowsMethod(m) {
				return nil, errors.Errorf("route %s %s already registered", m, pattern)
			}
		}
	}

	maxBody := opts.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}
	origins := opts.AllowedAccessControlOrigins
	if origins == "" {
		origins = "*"
	}
	headers := opts.AllowedAccessControlHeaders
	if headers == "" {
		headers = "*"
	}

	rt := &Route{
		Pattern:      pattern,
		Methods:      upper,
		Handler:      h,
		SaveHeaders:  opts.SaveHeaders,
		MaxBodySize:  maxBody,
		AllowOrigins: origins,
		AllowHeaders: headers,
		AllowMethods: strings.Join(upper, ", "),
		segments:     segments,
	}
	r.routes = append(r.routes, rt)
	return rt, nil
}

// SetCatchAll installs the fallback handler used when no pattern matches
// the request path.
func (r *Router) SetCatchAll(h Handler) {
	r.catchAll = &Route{
		Methods:      []string{http.MethodGet},
		Handler:      h,
		MaxBodySize:  DefaultMaxBodySize,
		AllowOrigins: "*",
		AllowHeaders: "*",
		AllowMethods: http.MethodGet,
	}
}

// Resolve finds the route for (method, path). When several patterns match
// the path, the one that is static at the earliest differing position
// wins. A path that matches some pattern but not for this method yields
// ErrMethodNotAllowed; a path that matches nothing falls back to the
// catch-all route with no parameters, or ErrNotFound.
func (r *Router) Resolve(method, path string) (*Route, map[string]string, error) {
	reqParts := splitPath(path)

	var best *Route
	var bestParams map[string]string
	pathMatched := false
	for _, rt := range r.routes {
		params, ok := rt.match(reqParts)
		if !ok {
			continue
		}
		pathMatched = true
		if !rt.allowsMethod(method) {
			continue
		}
		if best == nil || moreSpecific(rt, best) {
			best = rt
			bestParams = params
		}
	}

	if best != nil {
		return best, bestParams, nil
	}
	if pathMatched {
		return nil, nil, ErrMethodNotAllowed
	}
	if r.catchAll != nil {
		return r.catchAll, nil, nil
	}
	return nil, nil, ErrNotFound
}
