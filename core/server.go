package core

import (
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyhttpd/tinyserve/core/http"
	"github.com/tinyhttpd/tinyserve/core/middleware"
	"github.com/tinyhttpd/tinyserve/core/router"
	"github.com/tinyhttpd/tinyserve/core/static"
)

// Defaults for Options zero values. The request timeout is short on
// purpose: a client that cannot produce its request head in a few
// seconds is holding a scarce admission slot.
const (
	DefaultRequestTimeout = 3 * time.Second
	DefaultMaxConcurrency = 16
)

// Options configures a Server. The zero value is usable.
type Options struct {
	// RequestTimeout bounds the time from accept until the request head
	// is fully read.
	RequestTimeout time.Duration

	// MaxConcurrency caps the number of connections being served at
	// once; connections over the cap are closed without processing.
	MaxConcurrency int

	// Backlog is handed to listen(2). Sized at least MaxConcurrency so
	// the kernel queue absorbs bursts before admission control sheds.
	Backlog int

	// Debug includes fault details and a stack trace in 500 bodies.
	Debug bool

	// FileSystem backs SendFile. Defaults to the host filesystem.
	FileSystem http.FileSystem
}

// Server wires the router, admission controller, and connection handlers
// behind one accept loop. Register all routes before calling Start or
// Run; the route table is read-only while serving.
type Server struct {
	router   *router.Router
	pipeline *middleware.Pipeline
	slots    *admission
	fs       http.FileSystem

	requestTimeout time.Duration
	backlog        int
	debug          bool

	ln       Listener
	wg       sync.WaitGroup
	done     chan struct{}
	stopping atomic.Bool
	stopOnce sync.Once
}

// NewServer creates a server with the given options.
func NewServer(opts Options) *Server {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	maxConc := opts.MaxConcurrency
	if maxConc <= 0 {
		maxConc = DefaultMaxConcurrency
	}
	backlog := opts.Backlog
	if backlog < maxConc {
		backlog = maxConc
	}
	fs := opts.FileSystem
	if fs == nil {
		fs = static.OS()
	}

	return &Server{
		router:         router.New(),
		pipeline:       middleware.NewPipeline(),
		slots:          newAdmission(maxConc),
		fs:             fs,
		requestTimeout: timeout,
		backlog:        backlog,
		debug:          opts.Debug,
		done:           make(chan struct{}),
	}
}

// AddRoute registers a handler for pattern. See router.Options for the
// per-route configuration defaults.
func (s *Server) AddRoute(pattern string, h router.Handler, opts ...router.Options) error {
	var o router.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	_, err := s.router.Register(pattern, h, o)
	return err
}

func (s *Server) mustRoute(method, pattern string, h router.Handler) {
	if err := s.AddRoute(pattern, h, router.Options{Methods: []string{method}}); err != nil {
		panic(err)
	}
}

// GET registers a GET route.
func (s *Server) GET(pattern string, h router.Handler) {
	s.mustRoute(http.MethodGet, pattern, h)
}

// POST registers a POST route.
func (s *Server) POST(pattern string, h router.Handler) {
	s.mustRoute(http.MethodPost, pattern, h)
}

// PUT registers a PUT route.
func (s *Server) PUT(pattern string, h router.Handler) {
	s.mustRoute(http.MethodPut, pattern, h)
}

// DELETE registers a DELETE route.
func (s *Server) DELETE(pattern string, h router.Handler) {
	s.mustRoute(http.MethodDelete, pattern, h)
}

// CatchAll installs the fallback handler for unmatched paths.
func (s *Server) CatchAll(h router.Handler) {
	s.router.SetCatchAll(h)
}

// Use appends a middleware to the dispatch pipeline.
func (s *Server) Use(h middleware.Handler) {
	s.pipeline.Use(h)
}

// ActiveConnections returns the number of connections currently holding
// an admission slot.
func (s *Server) ActiveConnections() int {
	return s.slots.Active()
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Done is closed once the server has stopped and all in-flight
// connections have drained.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Start opens the listener and serves in the background. Use Done to
// wait for a later Shutdown to complete.
func (s *Server) Start(host string, port int) error {
	ln, err := ListenTCP(host, port, s.backlog)
	if err != nil {
		return err
	}
	s.ln = ln
	go s.acceptLoop()
	return nil
}

// Run starts the server and blocks until Shutdown has drained it.
func (s *Server) Run(host string, port int) error {
	if err := s.Start(host, port); err != nil {
		return err
	}
	<-s.done
	return nil
}

// Serve accepts connections from an externally provided listener,
// blocking until the listener fails or Shutdown is called.
func (s *Server) Serve(ln Listener) {
	s.ln = ln
	s.acceptLoop()
}

// Shutdown stops accepting, waits for in-flight connections (bounded by
// their own timeouts), then releases Done. Safe to call more than once.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		if s.ln != nil {
			s.ln.Close()
		}
		s.wg.Wait()
		close(s.done)
	})
}

// acceptLoop admits connections until the listener closes. Each admitted
// stream gets its own handler goroutine; the admission slot is released
// only after that goroutine has completely finished.
func (s *Server) acceptLoop() {
	for {
		stream, err := s.ln.Accept()
		if err != nil {
			if s.stopping.Load() {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			log.Printf("tinyserve: accept: %v", err)
			return
		}

		if !s.slots.tryAcquire() {
			// At capacity. The listen backlog absorbed the burst up to
			// here; past it we shed load instead of buying memory.
			stream.Close()
			continue
		}

		s.wg.Add(1)
		go func(st Stream) {
			defer s.wg.Done()
			defer s.slots.release()
			(&conn{srv: s, stream: st}).serve()
		}(stream)
	}
}

// HandleConn serves a single stream synchronously using an admission
// slot. It exists for embedders that manage their own accept loop; the
// stream is closed in all cases, including when the server is at
// capacity, in which case no bytes are written and false is returned.
func (s *Server) HandleConn(st Stream) bool {
	if !s.slots.tryAcquire() {
		st.Close()
		return false
	}
	defer s.slots.release()
	(&conn{srv: s, stream: st}).serve()
	return true
}
