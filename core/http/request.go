package http

import (
	"strings"
	"sync"

	"github.com/valyala/bytebufferpool"
)

// Known HTTP method tokens. Anything else in the request line is rejected
// with ErrInvalidMethod.
const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodDelete  = "DELETE"
	MethodConnect = "CONNECT"
	MethodOptions = "OPTIONS"
	MethodTrace   = "TRACE"
	MethodPatch   = "PATCH"
)

var knownMethods = map[string]struct{}{
	MethodGet:     {},
	MethodHead:    {},
	MethodPost:    {},
	MethodPut:     {},
	MethodDelete:  {},
	MethodConnect: {},
	MethodOptions: {},
	MethodTrace:   {},
	MethodPatch:   {},
}

// ValidMethod reports whether m is a recognized HTTP method token.
func ValidMethod(m string) bool {
	_, ok := knownMethods[m]
	return ok
}

// Request is the parsed form of one HTTP/1.0 request. It lives for the
// duration of a single connection and is recycled afterwards.
//
// Headers holds only the entries the matched route opted into via
// SaveHeaders; everything else the client sent was parsed and dropped, so
// memory stays bounded no matter how chatty the client is.
type Request struct {
	Method      string
	Path        string
	QueryString string // raw, undecoded

	Headers    map[string]string
	PathParams map[string]string

	// Body is the request payload, capped at the route's MaxBodySize.
	// Nil when the route did not opt into Content-Length.
	Body []byte

	body *bytebufferpool.ByteBuffer
}

var requestPool = sync.Pool{
	New: func() any {
		return &Request{}
	},
}

var requestBodyPool bytebufferpool.Pool

// AcquireRequest returns a cleared Request from the pool.
func AcquireRequest() *Request {
	return requestPool.Get().(*Request)
}

// ReleaseRequest recycles req. The caller must not touch req afterwards.
func ReleaseRequest(req *Request) {
	req.Reset()
	requestPool.Put(req)
}

// Reset clears the request for reuse without freeing map storage.
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.QueryString = ""
	for k := range r.Headers {
		delete(r.Headers, k)
	}
	for k := range r.PathParams {
		delete(r.PathParams, k)
	}
	r.Body = nil
	if r.body != nil {
		requestBodyPool.Put(r.body)
		r.body = nil
	}
}

// Header returns the value of a saved header, matching the name
// case-insensitively. Headers the route did not save are always absent.
func (r *Request) Header(name string) (string, bool) {
	if v, ok := r.Headers[name]; ok {
		return v, true
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func (r *Request) setHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string, 4)
	}
	r.Headers[name] = value
}

func (r *Request) setPathParam(name, value string) {
	if r.PathParams == nil {
		r.PathParams = make(map[string]string, 4)
	}
	r.PathParams[name] = value
}

// SetPathParams installs the parameters extracted by the router.
func (r *Request) SetPathParams(params map[string]string) {
	for k, v := range params {
		r.setPathParam(k, v)
	}
}

// QueryParams decodes the raw query string into a key/value map.
// Decoding is best-effort: malformed percent escapes are kept verbatim.
func (r *Request) QueryParams() map[string]string {
	if r.QueryString == "" {
		return nil
	}
	return ParseQuery(r.QueryString)
}

// Form decodes an application/x-www-form-urlencoded body that has already
// been read into Body. Decode failures never fail the request; malformed
// escapes decode to their literal text.
func (r *Request) Form() map[string]string {
	if len(r.Body) == 0 {
		return nil
	}
	return ParseQuery(string(r.Body))
}
