package core

import (
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"

	"github.com/tinyhttpd/tinyserve/core/http"
	"github.com/tinyhttpd/tinyserve/core/router"
)

// Connection states. Each accepted stream walks this machine exactly
// once; Aborted is reachable from any non-terminal state on timeout,
// malformed input, or transport failure.
type connState uint8

const (
	stateAwaitRequestLine connState = iota
	stateReadingHeaders
	stateReadingBody
	stateDispatched
	stateResponseSent
	stateClosed
	stateAborted
)

func (s connState) String() string {
	switch s {
	case stateAwaitRequestLine:
		return "awaiting request line"
	case stateReadingHeaders:
		return "reading headers"
	case stateReadingBody:
		return "reading body"
	case stateDispatched:
		return "dispatched"
	case stateResponseSent:
		return "response sent"
	case stateClosed:
		return "closed"
	case stateAborted:
		return "aborted"
	}
	return "unknown"
}

// errNotImplemented covers recognized methods the engine refuses to
// route, like CONNECT.
var errNotImplemented = errors.New("method not implemented")

// Methods advertised on a bare OPTIONS preflight.
const optionsAllowMethods = "POST, PUT, DELETE"

// conn owns one accepted stream end-to-end: parse, route, dispatch,
// respond, close. Its state is never shared with another goroutine.
type conn struct {
	srv    *Server
	stream Stream
	state  connState
}

// serve drives the connection through the state machine and guarantees
// the stream is closed exactly once on every exit path.
func (c *conn) serve() {
	defer func() {
		c.stream.Close()
		c.state = stateClosed
	}()

	p := http.NewParser(c.stream)
	req := http.AcquireRequest()
	defer http.ReleaseRequest(req)
	resp := http.AcquireResponse(c.stream)
	defer http.ReleaseResponse(resp)
	resp.SetFileSystem(c.srv.fs)

	err := c.handle(p, req, resp)
	if err == nil {
		c.state = stateResponseSent
		return
	}

	aborted := c.state
	c.state = stateAborted
	if resp.Started() {
		// Headers are on the wire; nothing can be fixed retroactively.
		return
	}
	code, sendable := statusForError(err)
	if !sendable {
		// Timeout or transport failure: the peer may be gone, and after
		// a timeout no partial HTTP line is safe to send.
		if c.srv.debug {
			log.Printf("tinyserve: connection dropped while %s: %v", aborted, err)
		}
		return
	}
	if werr := resp.Error(code); werr != nil {
		log.Printf("tinyserve: failed to send %d response: %v", code, werr)
	}
}

// handle parses one request and dispatches it. Any returned error is
// converted to an HTTP error response by serve when possible.
func (c *conn) handle(p *http.Parser, req *http.Request, resp *http.Response) error {
	c.state = stateAwaitRequestLine
	if err := c.stream.SetReadDeadline(time.Now().Add(c.srv.requestTimeout)); err != nil {
		return errors.WithStack(err)
	}

	if err := p.ReadRequestLine(req); err != nil {
		return err
	}

	switch req.Method {
	case http.MethodConnect, http.MethodTrace:
		if err := c.drainHeaders(p, req); err != nil {
			return err
		}
		return errNotImplemented
	case http.MethodOptions:
		if err := c.drainHeaders(p, req); err != nil {
			return err
		}
		c.state = stateDispatched
		return handleOptions(resp)
	}

	route, params, rerr := c.srv.router.Resolve(req.Method, req.Path)
	if rerr != nil {
		// Drain the header section so the error response goes out
		// against a fully consumed request.
		if err := c.drainHeaders(p, req); err != nil {
			return err
		}
		return rerr
	}

	c.state = stateReadingHeaders
	if err := p.ReadHeaders(req, route.SaveHeaders); err != nil {
		return err
	}
	// Headers are in; the slow-client deadline has done its job.
	if err := c.stream.SetReadDeadline(time.Time{}); err != nil {
		return errors.WithStack(err)
	}

	if n, ok, err := http.ContentLength(req); err != nil {
		return err
	} else if ok && n > 0 {
		c.state = stateReadingBody
		if err := p.ReadBody(req, n, route.MaxBodySize); err != nil {
			return err
		}
	}

	req.SetPathParams(params)
	resp.SetAccessControl(route.AllowOrigins, route.AllowHeaders, route.AllowMethods)

	c.state = stateDispatched
	return c.dispatch(route, req, resp)
}

func (c *conn) drainHeaders(p *http.Parser, req *http.Request) error {
	c.state = stateReadingHeaders
	if err := p.ReadHeaders(req, nil); err != nil {
		return err
	}
	return errors.WithStack(c.stream.SetReadDeadline(time.Time{}))
}

// dispatch runs the middleware chain and the route handler. Handler
// faults never escape: they become a 500 when the response has not
// started, or a bare close when it has.
func (c *conn) dispatch(rt *router.Route, req *http.Request, resp *http.Response) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = nil
			c.fault(resp, fmt.Sprintf("%v", rec), debug.Stack())
		}
	}()

	if !c.srv.pipeline.Run(req, resp) {
		return nil
	}

	if herr := rt.Handler(req, resp); herr != nil {
		c.fault(resp, fmt.Sprintf("%+v", herr), nil)
		return nil
	}

	if !resp.Started() {
		// Every request gets a response, even when the handler sent
		// nothing: a minimal 200 with an empty body.
		return resp.Send(nil)
	}
	return nil
}

func (c *conn) fault(resp *http.Response, detail string, stack []byte) {
	log.Printf("tinyserve: handler fault: %s", detail)
	if resp.Started() {
		return
	}
	if c.srv.debug {
		body := detail
		if len(stack) > 0 {
			body = detail + "\n\n" + string(stack)
		}
		resp.Error(http.StatusInternalServerError, body)
		return
	}
	resp.Error(http.StatusInternalServerError)
}

// handleOptions answers preflight requests with the server-wide
// access-control defaults. HTTP/1.0 close-delimits bodies, so an explicit
// zero Content-Length tells webkit clients not to wait for a payload.
func handleOptions(resp *http.Response) error {
	resp.SetAccessControl("*", "*", optionsAllowMethods)
	if err := resp.AddCORSHeaders(); err != nil {
		return err
	}
	if err := resp.AddHeader("Content-Length", "0"); err != nil {
		return err
	}
	return resp.Send(nil)
}

// statusForError maps protocol and routing errors to the status the
// client receives. Errors that are not sendable terminate the connection
// silently.
func statusForError(err error) (code int, sendable bool) {
	switch {
	case errors.Is(err, http.ErrMalformedRequestLine),
		errors.Is(err, http.ErrInvalidMethod),
		errors.Is(err, http.ErrMalformedHeader),
		errors.Is(err, http.ErrInvalidContentLength):
		return http.StatusBadRequest, true
	case errors.Is(err, http.ErrHeaderTooLarge),
		errors.Is(err, http.ErrBodyTooLarge):
		return http.StatusPayloadTooLarge, true
	case errors.Is(err, router.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, router.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, true
	case errors.Is(err, errNotImplemented):
		return http.StatusNotImplemented, true
	}
	return 0, false
}
