package middleware

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tinyhttpd/tinyserve/core/http"
)

// TestPipelineOrder tests that middlewares run in registration order
func TestPipelineOrder(t *testing.T) {
	var trace []string
	p := NewPipeline()
	p.Use(func(req *http.Request, resp *http.Response) {
		trace = append(trace, "first")
	})
	p.Use(func(req *http.Request, resp *http.Response) {
		trace = append(trace, "second")
	})

	var buf bytes.Buffer
	req := http.AcquireRequest()
	defer http.ReleaseRequest(req)
	resp := http.AcquireResponse(&buf)
	defer http.ReleaseResponse(resp)

	if !p.Run(req, resp) {
		t.Error("Run reported a short-circuit on a pass-through chain")
	}
	if len(trace) != 2 || trace[0] != "first" || trace[1] != "second" {
		t.Errorf("execution order = %v", trace)
	}
}

// TestPipelineShortCircuit tests that a responding middleware stops the
// chain
func TestPipelineShortCircuit(t *testing.T) {
	ran := false
	p := NewPipeline()
	p.Use(func(req *http.Request, resp *http.Response) {
		resp.Error(http.StatusBadRequest, "rejected early")
	})
	p.Use(func(req *http.Request, resp *http.Response) {
		ran = true
	})

	var buf bytes.Buffer
	req := http.AcquireRequest()
	defer http.ReleaseRequest(req)
	resp := http.AcquireResponse(&buf)
	defer http.ReleaseResponse(resp)

	if p.Run(req, resp) {
		t.Error("Run should report the short-circuit")
	}
	if ran {
		t.Error("middleware after the short-circuit still ran")
	}
	if !strings.Contains(buf.String(), "rejected early") {
		t.Errorf("short-circuit response = %q", buf.String())
	}
}

// TestPipelineEmpty tests the zero-middleware case
func TestPipelineEmpty(t *testing.T) {
	var buf bytes.Buffer
	req := http.AcquireRequest()
	defer http.ReleaseRequest(req)
	resp := http.AcquireResponse(&buf)
	defer http.ReleaseResponse(resp)

	if !NewPipeline().Run(req, resp) {
		t.Error("empty pipeline should pass through")
	}
	if buf.Len() != 0 {
		t.Errorf("empty pipeline wrote %q", buf.String())
	}
}

// TestRequestID tests the id-stamping middleware
func TestRequestID(t *testing.T) {
	mw := RequestID()

	for want := 1; want <= 2; want++ {
		var buf bytes.Buffer
		req := http.AcquireRequest()
		resp := http.AcquireResponse(&buf)

		mw(req, resp)
		resp.Send(nil)

		if !strings.Contains(buf.String(), "X-Request-ID: ") {
			t.Errorf("response missing X-Request-ID: %q", buf.String())
		}

		http.ReleaseRequest(req)
		http.ReleaseResponse(resp)
	}
}
