// Package middleware provides an ordered pre-handler chain executed
// between routing and dispatch.
package middleware

import (
	"log"
	"strconv"
	"sync/atomic"

	"github.com/tinyhttpd/tinyserve/core/http"
)

// Handler is one middleware step. A middleware that writes the response
// short-circuits the chain: the route handler never runs.
type Handler func(req *http.Request, resp *http.Response)

// Pipeline is an ordered middleware chain.
type Pipeline struct {
	handlers []Handler
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Use appends a middleware to the chain.
func (p *Pipeline) Use(h Handler) *Pipeline {
	p.handlers = append(p.handlers, h)
	return p
}

// Run executes the chain in order. It returns false if some middleware
// started the response, meaning dispatch should be skipped.
func (p *Pipeline) Run(req *http.Request, resp *http.Response) bool {
	for _, h := range p.handlers {
		h(req, resp)
		if resp.Started() {
			return false
		}
	}
	return true
}

// Logger logs each request's method and path.
func Logger() Handler {
	return func(req *http.Request, resp *http.Response) {
		log.Printf("[%s] %s", req.Method, req.Path)
	}
}

// RequestID stamps each response with a monotonically increasing id.
func RequestID() Handler {
	var counter uint64
	return func(req *http.Request, resp *http.Response) {
		id := atomic.AddUint64(&counter, 1)
		resp.AddHeader("X-Request-ID", strconv.FormatUint(id, 10))
	}
}
