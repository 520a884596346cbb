/*
Package tinyserve provides an embeddable HTTP/1.0 server engine for
severely memory-constrained deployments.

Tinyserve is built for environments where a handful of kilobytes of
request state is all a connection is allowed to consume: per-field parse
limits, opt-in header retention, bounded body buffers, and a hard cap on
the number of concurrently served connections.

Features

  - HTTP/1.0 wire protocol: one request per connection, close-delimited bodies
  - Streaming request parser with strict per-line and per-section size limits
  - Opt-in header retention: only headers a route asks for are kept
  - Segment router with <param> path parameters and a catch-all fallback
  - Admission control: at most MaxConcurrency connections are ever in flight
  - Per-request timeout covering the request line and header section
  - Static file responder with MIME inference and Cache-Control headers
  - Middleware pipeline executed between routing and dispatch

Quick Start

Basic usage example:

	package main

	import (
	    "github.com/tinyhttpd/tinyserve/app"
	    "github.com/tinyhttpd/tinyserve/config"
	    "github.com/tinyhttpd/tinyserve/core/http"
	)

	func main() {
	    cfg := config.New()
	    application := app.New(cfg)

	    srv := application.Server()
	    srv.GET("/", func(req *http.Request, resp *http.Response) error {
	        return resp.SendString("Hello, world!")
	    })

	    srv.GET("/hello/<name>", func(req *http.Request, resp *http.Response) error {
	        return resp.SendString("Hello, " + req.PathParams["name"] + "!")
	    })

	    application.Run()
	}

Modules

The engine is organized into several packages:

  - app: Application lifecycle management
  - config: Configuration loading
  - core: Server, connection handling, admission control, transport
  - core/http: Wire protocol parsing and response encoding
  - core/router: Route registration and resolution
  - core/middleware: Middleware pipeline
  - core/static: Filesystem access and static file handlers

Scope

Tinyserve speaks HTTP/1.0 only. There are no persistent connections, no
chunked transfer encoding, no pipelining, and no TLS; the server always
closes the connection after the response.
*/
package tinyserve
