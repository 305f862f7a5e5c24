package httpparse

import (
	"fmt"
	"testing"

	"github.com/kfcemployee/goserver/httptype"
)

func TestFeedSimpleGET(t *testing.T) {
	p := New()
	raw := []byte("GET / HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n")

	state, req, n := p.Feed(raw)
	if state != Complete {
		t.Fatalf("state = %v, want Complete", state)
	}
	if n != len(raw) {
		t.Fatalf("consumed = %d, want %d", n, len(raw))
	}
	if req.Method != httptype.MethodGET || req.URI != "/" || req.Version != "1.1" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if p.State() != Init {
		t.Fatalf("parser did not self-reset, state = %v", p.State())
	}
}

func TestFeedIncompleteThenComplete(t *testing.T) {
	p := New()
	part1 := []byte("GET /foo HTTP/1.1\r\nHost: x\r\n")
	state, req, n := p.Feed(part1)
	if state != ParsingRequestHeader || req != nil || n != 0 {
		t.Fatalf("got (%v, %v, %d), want incomplete header state", state, req, n)
	}

	full := append(part1, []byte("Content-Length: 0\r\n\r\n")...)
	state, req, n = p.Feed(full)
	if state != Complete || req == nil || n != len(full) {
		t.Fatalf("got (%v, %v, %d), want Complete", state, req, n)
	}
}

func TestFeedBadRequestLine(t *testing.T) {
	p := New()
	state, _, _ := p.Feed([]byte("GET /\r\n\r\n"))
	if state != ErrorRequestLine {
		t.Fatalf("state = %v, want ErrorRequestLine", state)
	}
}

func TestFeedMissingContentLength(t *testing.T) {
	p := New()
	state, _, _ := p.Feed([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	if state != ErrorBodyLength {
		t.Fatalf("state = %v, want ErrorBodyLength", state)
	}
}

func TestFeedDuplicateHeaderFirstWins(t *testing.T) {
	p := New()
	raw := []byte("GET / HTTP/1.1\r\nX-Foo: first\r\nX-Foo: second\r\nContent-Length: 0\r\n\r\n")
	_, req, _ := p.Feed(raw)
	v, ok := req.Headers.Get("X-Foo")
	if !ok || v != "first" {
		t.Fatalf("X-Foo = %q, %v, want \"first\", true", v, ok)
	}
}

func TestFeedBodyExact(t *testing.T) {
	p := New()
	raw := []byte("POST /echo HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc")
	state, req, n := p.Feed(raw)
	if state != Complete || string(req.Body) != "abc" || n != len(raw) {
		t.Fatalf("got (%v, %q, %d)", state, req.Body, n)
	}
}

func TestFeedPipelinedTrailingBytesStartNextRequest(t *testing.T) {
	p := New()
	one := "POST /echo HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc"
	two := "POST /echo HTTP/1.1\r\nContent-Length: 3\r\n\r\ndef"
	raw := []byte(one + two)

	state, req, n := p.Feed(raw)
	if state != Complete || string(req.Body) != "abc" {
		t.Fatalf("first request: got (%v, %q)", state, req.Body)
	}
	remaining := raw[n:]
	if string(remaining) != two {
		t.Fatalf("remaining = %q, want %q", remaining, two)
	}

	state, req, n = p.Feed(remaining)
	if state != Complete || string(req.Body) != "def" || n != len(remaining) {
		t.Fatalf("second request: got (%v, %q, %d)", state, req.Body, n)
	}
}

func TestFeedUnknownMethod(t *testing.T) {
	p := New()
	state, _, _ := p.Feed([]byte("BOGUS / HTTP/1.1\r\n\r\n"))
	if state != ErrorRequestLine {
		t.Fatalf("state = %v, want ErrorRequestLine", state)
	}
}

func BenchmarkFeed(b *testing.B) {
	raw := []byte("POST /very/long/path/for/testing/purposes HTTP/1.1\r\n" +
		"Host: localhost:8080\r\n" +
		"User-Agent: goserver-benchmark\r\n" +
		"Content-Length: 18\r\n" +
		"Content-Type: application/json\r\n" +
		"\r\n" +
		"{\"key\":\"value_123\"}")
	p := New()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Feed(raw)
	}
}

func BenchmarkFeedHeavy(b *testing.B) {
	headers := ""
	for i := 0; i < 20; i++ {
		headers += fmt.Sprintf("X-Header-%d: value-%d-extra-long-data-for-stress-test\r\n", i, i)
	}
	body := make([]byte, 1024)
	for i := range body {
		body[i] = 'a'
	}
	raw := []byte(fmt.Sprintf("POST /api/v1/resource/update/large HTTP/1.1\r\n"+
		"Host: localhost\r\n"+
		"Content-Length: %d\r\n"+
		"Content-Type: application/octet-stream\r\n"+
		"%s\r\n%s", len(body), headers, body))
	p := New()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Feed(raw)
	}
}
