// Package app manages the application lifecycle around a core.Server.
package app

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinyhttpd/tinyserve/config"
	"github.com/tinyhttpd/tinyserve/core"
)

// App is the application instance.
type App struct {
	cfg *config.Config
	srv *core.Server
}

// New creates an application instance from cfg.
func New(cfg *config.Config) *App {
	srv := core.NewServer(core.Options{
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		MaxConcurrency: cfg.MaxConcurrency,
		Backlog:        cfg.Backlog,
		Debug:          cfg.Debug,
	})

	return &App{
		cfg: cfg,
		srv: srv,
	}
}

// Server returns the underlying server for route registration.
func (a *App) Server() *core.Server {
	return a.srv
}

// Run starts the server and blocks until a termination signal has
// drained it.
func (a *App) Run() {
	if err := a.cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	go a.awaitSignal()

	log.Printf("tinyserve listening on %s:%d [%s]", a.cfg.Host, a.cfg.Port, a.cfg.Env)
	log.Printf("max concurrency %d, backlog %d, request timeout %ds",
		a.cfg.MaxConcurrency, a.cfg.Backlog, a.cfg.RequestTimeout)

	if err := a.srv.Run(a.cfg.Host, a.cfg.Port); err != nil {
		log.Fatalf("server startup failed: %v", err)
	}
}

func (a *App) awaitSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("signal received: %v, draining connections", sig)
	a.srv.Shutdown()
}
