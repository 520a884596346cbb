package http

import "github.com/pkg/errors"

// Protocol error definitions. Each maps to a fixed HTTP status that the
// connection handler emits when the response has not started yet.
var (
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrInvalidMethod        = errors.New("invalid method")
	ErrMalformedHeader      = errors.New("malformed header line")
	ErrHeaderTooLarge       = errors.New("header section too large")
	ErrBodyTooLarge         = errors.New("body size too large")
	ErrInvalidContentLength = errors.New("bad Content-Length value")

	// ErrResponseStarted is a programming error: the status line and headers
	// are already on the wire and can no longer be changed.
	ErrResponseStarted = errors.New("response already started")

	// ErrFileNotFound is returned by FileSystem implementations for paths
	// that do not exist or are not readable.
	ErrFileNotFound = errors.New("file not found")
)
