package http

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Parse limits. A request whose head does not fit inside these ceilings is
// rejected before it can consume more memory.
const (
	MaxLineLength  = 1024 // request line or one header line, CRLF included
	MaxHeaderLines = 32
)

// Parser incrementally decodes one HTTP/1.0 request from a byte stream.
// It never buffers more than one line at a time.
type Parser struct {
	br *bufio.Reader
}

// NewParser wraps r. The internal buffer doubles as the line-length limit:
// a line that overflows it is reported as ErrHeaderTooLarge.
func NewParser(r io.Reader) *Parser {
	return &Parser{br: bufio.NewReaderSize(r, MaxLineLength)}
}

// readLine returns the next line without its CRLF terminator.
func (p *Parser) readLine() (string, error) {
	line, err := p.br.ReadSlice('\n')
	if err != nil {
		if err == bufio.ErrBufferFull {
			return "", ErrHeaderTooLarge
		}
		return "", errors.WithStack(err)
	}
	n := len(line) - 1
	if n > 0 && line[n-1] == '\r' {
		n--
	}
	return string(line[:n]), nil
}

// ReadRequestLine reads and parses the request line into req.
// Empty lines before the request line are skipped, which keeps sloppy
// clients that send a stray CRLF after a previous request working.
//
// The accepted form is strict: METHOD SP TARGET SP HTTP/1.<0|1>, with
// single spaces and no empty fields.
func (p *Parser) ReadRequestLine(req *Request) error {
	var line string
	for {
		var err error
		line, err = p.readLine()
		if err != nil {
			return err
		}
		if line != "" {
			break
		}
	}

	frags := strings.Split(line, " ")
	if len(frags) != 3 || frags[0] == "" || frags[1] == "" {
		return ErrMalformedRequestLine
	}
	if frags[2] != "HTTP/1.0" && frags[2] != "HTTP/1.1" {
		return ErrMalformedRequestLine
	}
	if !ValidMethod(frags[0]) {
		return ErrInvalidMethod
	}

	req.Method = frags[0]
	target := frags[1]
	if q := strings.IndexByte(target, '?'); q != -1 {
		req.QueryString = target[q+1:]
		target = target[:q]
	}
	req.Path = target
	return nil
}

// ReadHeaders consumes header lines up to the empty line that terminates
// the header section. Only headers named in save are retained on req,
// stored under the spelling used in save; the rest are parsed to advance
// the stream and discarded. More than MaxHeaderLines lines fail with
// ErrHeaderTooLarge.
func (p *Parser) ReadHeaders(req *Request, save []string) error {
	for n := 0; ; n++ {
		if n >= MaxHeaderLines {
			return ErrHeaderTooLarge
		}
		line, err := p.readLine()
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return ErrMalformedHeader
		}
		name := line[:colon]
		for _, want := range save {
			if strings.EqualFold(name, want) {
				req.setHeader(want, strings.TrimSpace(line[colon+1:]))
				break
			}
		}
	}
}

// ContentLength returns the parsed Content-Length of req, or ok=false when
// the header was not saved or not sent.
func ContentLength(req *Request) (int, bool, error) {
	v, ok := req.Header("Content-Length")
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, true, ErrInvalidContentLength
	}
	return n, true, nil
}

// ReadBody reads exactly length bytes into a pooled buffer on req.Body.
// A length above maxBodySize is rejected up front with ErrBodyTooLarge so
// the oversized payload is never buffered.
func (p *Parser) ReadBody(req *Request, length, maxBodySize int) error {
	if length == 0 {
		return nil
	}
	if length > maxBodySize {
		return ErrBodyTooLarge
	}
	buf := requestBodyPool.Get()
	if cap(buf.B) < length {
		buf.B = make([]byte, length)
	}
	buf.B = buf.B[:length]
	if _, err := io.ReadFull(p.br, buf.B); err != nil {
		requestBodyPool.Put(buf)
		return errors.WithStack(err)
	}
	req.body = buf
	req.Body = buf.B
	return nil
}
