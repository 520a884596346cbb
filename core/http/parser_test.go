package http

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

// TestReadRequestLine tests strict request-line parsing
func TestReadRequestLine(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		err    error
		method string
		path   string
		query  string
	}{
		{"simple GET", "GET / HTTP/1.0\r\n", nil, "GET", "/", ""},
		{"http 1.1 accepted", "GET / HTTP/1.1\r\n", nil, "GET", "/", ""},
		{"bare LF terminator", "GET / HTTP/1.0\n", nil, "GET", "/", ""},
		{"query string split", "GET /search?q=go&page=2 HTTP/1.0\r\n", nil, "GET", "/search", "q=go&page=2"},
		{"empty query", "GET /search? HTTP/1.0\r\n", nil, "GET", "/search", ""},
		{"path kept verbatim", "GET /a%20b HTTP/1.0\r\n", nil, "GET", "/a%20b", ""},
		{"leading blank lines skipped", "\r\n\nGET /?a=a HTTP/1.1\r\n", nil, "GET", "/", "a=a"},
		{"post", "POST /login HTTP/1.0\r\n", nil, "POST", "/login", ""},

		{"double space after target", "GET /  HTTP/1.1\r\n", ErrMalformedRequestLine, "", "", ""},
		{"double space after method", "GET  / HTTP/1.1\r\n", ErrMalformedRequestLine, "", "", ""},
		{"missing version", "GET /\r\n", ErrMalformedRequestLine, "", "", ""},
		{"missing target", "GET HTTP/1.1\r\n", ErrMalformedRequestLine, "", "", ""},
		{"bad version", "GET / HTTP/2.0\r\n", ErrMalformedRequestLine, "", "", ""},
		{"truncated version", "GET / HTTP/\r\n", ErrMalformedRequestLine, "", "", ""},
		{"lowercase version", "GET / http/1.0\r\n", ErrMalformedRequestLine, "", "", ""},
		{"trailing junk", "GET / HTTP/1.0 extra\r\n", ErrMalformedRequestLine, "", "", ""},
		{"unknown method", "GOT / HTTP/1.0\r\n", ErrInvalidMethod, "", "", ""},
		{"lowercase method", "get / HTTP/1.0\r\n", ErrInvalidMethod, "", "", ""},
	}

	for _, tt := range tests {
		req := AcquireRequest()
		p := NewParser(strings.NewReader(tt.input))
		err := p.ReadRequestLine(req)
		if !errors.Is(err, tt.err) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.err)
			ReleaseRequest(req)
			continue
		}
		if err == nil {
			if req.Method != tt.method {
				t.Errorf("%s: method = %q, want %q", tt.name, req.Method, tt.method)
			}
			if req.Path != tt.path {
				t.Errorf("%s: path = %q, want %q", tt.name, req.Path, tt.path)
			}
			if req.QueryString != tt.query {
				t.Errorf("%s: query = %q, want %q", tt.name, req.QueryString, tt.query)
			}
		}
		ReleaseRequest(req)
	}
}

// TestReadRequestLineTooLong tests the line-length ceiling
func TestReadRequestLineTooLong(t *testing.T) {
	line := "GET /" + strings.Repeat("a", 2*MaxLineLength) + " HTTP/1.0\r\n"
	req := AcquireRequest()
	defer ReleaseRequest(req)

	p := NewParser(strings.NewReader(line))
	if err := p.ReadRequestLine(req); !errors.Is(err, ErrHeaderTooLarge) {
		t.Errorf("expected ErrHeaderTooLarge, got %v", err)
	}
}

// TestReadHeaders tests opt-in header retention
func TestReadHeaders(t *testing.T) {
	input := "Host: example.com\r\n" +
		"content-length:  42 \r\n" +
		"X-Custom: one\r\n" +
		"Accept: */*\r\n" +
		"\r\n"

	req := AcquireRequest()
	defer ReleaseRequest(req)

	p := NewParser(strings.NewReader(input))
	if err := p.ReadHeaders(req, []string{"Content-Length", "X-Custom"}); err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}

	if len(req.Headers) != 2 {
		t.Errorf("retained %d headers, want 2: %v", len(req.Headers), req.Headers)
	}
	// Retained under the caller's spelling, value trimmed.
	if v := req.Headers["Content-Length"]; v != "42" {
		t.Errorf("Content-Length = %q, want %q", v, "42")
	}
	if v := req.Headers["X-Custom"]; v != "one" {
		t.Errorf("X-Custom = %q, want %q", v, "one")
	}
	if _, ok := req.Headers["Host"]; ok {
		t.Error("Host was not requested but got retained")
	}

	// Case-insensitive lookup on the retained set.
	if v, ok := req.Header("x-custom"); !ok || v != "one" {
		t.Errorf("Header(x-custom) = %q,%v", v, ok)
	}
}

// TestReadHeadersNoneSaved tests that headers are drained even when
// nothing is retained
func TestReadHeadersNoneSaved(t *testing.T) {
	input := "Host: example.com\r\nAccept: */*\r\n\r\nBODY"

	req := AcquireRequest()
	defer ReleaseRequest(req)

	p := NewParser(strings.NewReader(input))
	if err := p.ReadHeaders(req, nil); err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}
	if len(req.Headers) != 0 {
		t.Errorf("retained %v without opting in", req.Headers)
	}

	// The stream is positioned at the body.
	if err := p.ReadBody(req, 4, 16); err != nil {
		t.Fatalf("ReadBody: %v", err)
	}
	if string(req.Body) != "BODY" {
		t.Errorf("body = %q, want BODY", req.Body)
	}
}

// TestReadHeadersMalformed tests header validation
func TestReadHeadersMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err   error
	}{
		{"no colon", "Garbage line\r\n\r\n", ErrMalformedHeader},
		{"empty name", ": value\r\n\r\n", ErrMalformedHeader},
		{"empty value ok", "X-Empty:\r\n\r\n", nil},
	}

	for _, tt := range tests {
		req := AcquireRequest()
		p := NewParser(strings.NewReader(tt.input))
		err := p.ReadHeaders(req, []string{"X-Empty"})
		if !errors.Is(err, tt.err) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.err)
		}
		ReleaseRequest(req)
	}
}

// TestReadHeadersTooMany tests the header-count ceiling
func TestReadHeadersTooMany(t *testing.T) {
	var sb strings.Builder
	for i := 0; i <= MaxHeaderLines; i++ {
		sb.WriteString("X-Filler: x\r\n")
	}
	sb.WriteString("\r\n")

	req := AcquireRequest()
	defer ReleaseRequest(req)

	p := NewParser(strings.NewReader(sb.String()))
	if err := p.ReadHeaders(req, nil); !errors.Is(err, ErrHeaderTooLarge) {
		t.Errorf("expected ErrHeaderTooLarge, got %v", err)
	}
}

// TestContentLength tests Content-Length extraction
func TestContentLength(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		n     int
		ok    bool
		err   error
	}{
		{"absent", "", false, 0, false, nil},
		{"plain", "17", true, 17, true, nil},
		{"zero", "0", true, 0, true, nil},
		{"negative", "-1", true, 0, true, ErrInvalidContentLength},
		{"not a number", "abc", true, 0, true, ErrInvalidContentLength},
	}

	for _, tt := range tests {
		req := AcquireRequest()
		if tt.set {
			req.setHeader("Content-Length", tt.value)
		}
		n, ok, err := ContentLength(req)
		if n != tt.n || ok != tt.ok || !errors.Is(err, tt.err) {
			t.Errorf("%s: ContentLength = (%d, %v, %v), want (%d, %v, %v)",
				tt.name, n, ok, err, tt.n, tt.ok, tt.err)
		}
		ReleaseRequest(req)
	}
}

// TestReadBody tests bounded body buffering
func TestReadBody(t *testing.T) {
	req := AcquireRequest()
	defer ReleaseRequest(req)

	p := NewParser(strings.NewReader("user=bob&pass=x"))
	if err := p.ReadBody(req, 15, 1024); err != nil {
		t.Fatalf("ReadBody: %v", err)
	}
	if string(req.Body) != "user=bob&pass=x" {
		t.Errorf("body = %q", req.Body)
	}
}

// TestReadBodyTooLarge tests that an oversized declared length is
// rejected before any buffering
func TestReadBodyTooLarge(t *testing.T) {
	req := AcquireRequest()
	defer ReleaseRequest(req)

	p := NewParser(strings.NewReader("irrelevant"))
	if err := p.ReadBody(req, 2048, 1024); !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("expected ErrBodyTooLarge, got %v", err)
	}
	if req.Body != nil {
		t.Errorf("body buffered despite rejection: %q", req.Body)
	}
}

// TestReadBodyTruncated tests a body shorter than its declared length
func TestReadBodyTruncated(t *testing.T) {
	req := AcquireRequest()
	defer ReleaseRequest(req)

	p := NewParser(strings.NewReader("short"))
	if err := p.ReadBody(req, 100, 1024); err == nil {
		t.Error("expected read error for truncated body")
	}
}

// Benchmarks
func BenchmarkReadRequestLine(b *testing.B) {
	raw := "GET /hello/world?q=1 HTTP/1.0\r\n"
	req := AcquireRequest()
	defer ReleaseRequest(req)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := NewParser(strings.NewReader(raw))
		if err := p.ReadRequestLine(req); err != nil {
			b.Fatal(err)
		}
		req.Reset()
	}
}
