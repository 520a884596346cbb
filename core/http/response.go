package http

import (
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

// FileSystem is the filesystem collaborator consumed by SendFile. The
// engine never touches the OS directly; implementations live outside the
// protocol core (see core/static).
type FileSystem interface {
	// Open returns the file at path, or ErrFileNotFound.
	Open(path string) (File, error)
}

// File is an open file handle with its metadata.
type File interface {
	io.ReadCloser
	Size() int64
	ModTime() time.Time
}

// DefaultMaxAge is the Cache-Control max-age applied to files served by
// SendFile when the caller does not override it: 30 days.
const DefaultMaxAge = 2592000

// sendFileBufSize bounds the per-chunk copy buffer so a large file never
// needs to fit in memory.
const sendFileBufSize = 512

// FileOptions tunes SendFile. A nil *FileOptions means: infer the content
// type from the extension, no content encoding, DefaultMaxAge caching.
type FileOptions struct {
	ContentType     string // empty: inferred from the file extension
	ContentEncoding string // empty: no Content-Encoding header
	MaxAge          int    // seconds; 0 disables the Cache-Control header
}

type headerField struct {
	name  string
	value string
}

// Response builds and serializes one HTTP/1.0 response. The status line
// and headers are flushed as a single write on the first Send* call; from
// that point on they are immutable because they are already on the wire.
type Response struct {
	w  io.Writer
	fs FileSystem

	status  int
	reason  string
	headers []headerField
	started bool

	allowOrigins string
	allowHeaders string
	allowMethods string
}

var responsePool = sync.Pool{
	New: func() any {
		return &Response{}
	},
}

// AcquireResponse returns a pooled Response writing to w, with status 200.
func AcquireResponse(w io.Writer) *Response {
	resp := responsePool.Get().(*Response)
	resp.w = w
	resp.status = StatusOK
	return resp
}

// ReleaseResponse recycles resp.
func ReleaseResponse(resp *Response) {
	resp.w = nil
	resp.fs = nil
	resp.status = 0
	resp.reason = ""
	resp.headers = resp.headers[:0]
	resp.started = false
	resp.allowOrigins = ""
	resp.allowHeaders = ""
	resp.allowMethods = ""
	responsePool.Put(resp)
}

// SetFileSystem installs the filesystem SendFile reads from.
func (r *Response) SetFileSystem(fs FileSystem) {
	r.fs = fs
}

// SetAccessControl configures the values AddCORSHeaders emits. The
// connection handler calls this with the matched route's settings.
func (r *Response) SetAccessControl(origins, headers, methods string) {
	r.allowOrigins = origins
	r.allowHeaders = headers
	r.allowMethods = methods
}

// Started reports whether the status line and headers have been written.
func (r *Response) Started() bool {
	return r.started
}

// Status returns the response code that was, or will be, sent.
func (r *Response) Status() int {
	return r.status
}

// SetStatus sets the response code and, optionally, a custom reason
// phrase. Fails with ErrResponseStarted once the head is on the wire.
func (r *Response) SetStatus(code int, reason ...string) error {
	if r.started {
		return ErrResponseStarted
	}
	r.status = code
	if len(reason) > 0 {
		r.reason = reason[0]
	}
	return nil
}

// AddHeader appends a header. Headers keep their insertion order.
func (r *Response) AddHeader(name, value string) error {
	if r.started {
		return ErrResponseStarted
	}
	r.headers = append(r.headers, headerField{name, value})
	return nil
}

// AddCORSHeaders emits the access-control headers configured for the
// matched route.
func (r *Response) AddCORSHeaders() error {
	if err := r.AddHeader("Access-Control-Allow-Origin", r.allowOrigins); err != nil {
		return err
	}
	if err := r.AddHeader("Access-Control-Allow-Methods", r.allowMethods); err != nil {
		return err
	}
	return r.AddHeader("Access-Control-Allow-Headers", r.allowHeaders)
}

var headPool bytebufferpool.Pool

// sendHead flushes the status line and accumulated headers as one write.
// Usually a response carries only a few headers, so a single packet beats
// dribbling them out line by line.
func (r *Response) sendHead() error {
	if r.started {
		return nil
	}
	r.started = true

	reason := r.reason
	if reason == "" {
		reason = StatusText(r.status)
	}

	buf := headPool.Get()
	buf.B = append(buf.B, "HTTP/1.0 "...)
	buf.B = strconv.AppendInt(buf.B, int64(r.status), 10)
	buf.B = append(buf.B, ' ')
	buf.B = append(buf.B, reason...)
	buf.B = append(buf.B, '\r', '\n')
	for _, h := range r.headers {
		buf.B = append(buf.B, h.name...)
		buf.B = append(buf.B, ':', ' ')
		buf.B = append(buf.B, h.value...)
		buf.B = append(buf.B, '\r', '\n')
	}
	buf.B = append(buf.B, '\r', '\n')

	_, err := r.w.Write(buf.B)
	headPool.Put(buf)
	return errors.WithStack(err)
}

// Send writes body bytes, flushing the head first if needed. It may be
// called repeatedly; HTTP/1.0 framing ends the body by closing the
// connection, so no Content-Length is emitted unless the caller added one.
func (r *Response) Send(body []byte) error {
	if err := r.sendHead(); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := r.w.Write(body)
	return errors.WithStack(err)
}

// SendString is Send for string payloads; all bodies normalize to bytes
// at this boundary.
func (r *Response) SendString(s string) error {
	if err := r.sendHead(); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	_, err := io.WriteString(r.w, s)
	return errors.WithStack(err)
}

// Redirect responds with 302 and a Location header. An optional message
// becomes the body, with its length declared.
func (r *Response) Redirect(location string, msg ...string) error {
	if r.started {
		return ErrResponseStarted
	}
	r.status = StatusFound
	r.reason = ""
	if err := r.AddHeader("Location", location); err != nil {
		return err
	}
	if len(msg) > 0 && msg[0] != "" {
		if err := r.AddHeader("Content-Length", strconv.Itoa(len(msg[0]))); err != nil {
			return err
		}
		return r.SendString(msg[0])
	}
	return r.sendHead()
}

// Error responds with the given status and a short body: the supplied
// message, or the status reason phrase when none is given.
func (r *Response) Error(code int, msg ...string) error {
	if r.started {
		return ErrResponseStarted
	}
	r.status = code
	r.reason = ""
	body := StatusText(code)
	if len(msg) > 0 && msg[0] != "" {
		body = msg[0]
	}
	if err := r.AddHeader("Content-Length", strconv.Itoa(len(body))); err != nil {
		return err
	}
	return r.SendString(body)
}

var copyBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, sendFileBufSize)
		return &b
	},
}

// SendFile streams the file at path in bounded chunks. The content type
// comes from the extension unless overridden, the size is declared up
// front, and caching is allowed for opts.MaxAge seconds. A path that does
// not resolve yields a 404 response instead of an error.
func (r *Response) SendFile(path string, opts *FileOptions) error {
	if r.started {
		return ErrResponseStarted
	}
	if r.fs == nil {
		return errors.New("no filesystem configured")
	}

	f, err := r.fs.Open(path)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return r.Error(StatusNotFound)
		}
		return err
	}
	defer f.Close()

	contentType := ""
	contentEncoding := ""
	maxAge := DefaultMaxAge
	if opts != nil {
		contentType = opts.ContentType
		contentEncoding = opts.ContentEncoding
		maxAge = opts.MaxAge
	}
	if contentType == "" {
		contentType = ContentTypeFor(path)
	}

	r.AddHeader("Content-Length", strconv.FormatInt(f.Size(), 10))
	r.AddHeader("Content-Type", contentType)
	if contentEncoding != "" {
		r.AddHeader("Content-Encoding", contentEncoding)
	}
	if maxAge > 0 {
		r.AddHeader("Cache-Control", "max-age="+strconv.Itoa(maxAge)+", public")
	}
	if mtime := f.ModTime(); !mtime.IsZero() {
		r.AddHeader("Last-Modified", mtime.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
	}

	if err := r.sendHead(); err != nil {
		return err
	}

	buf := copyBufPool.Get().(*[]byte)
	defer copyBufPool.Put(buf)
	for {
		n, rerr := f.Read(*buf)
		if n > 0 {
			if _, werr := r.w.Write((*buf)[:n]); werr != nil {
				return errors.WithStack(werr)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return errors.WithStack(rerr)
		}
	}
}
