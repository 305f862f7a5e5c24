package httptype

// Request is handed to a handler exactly once and is immutable for the
// handler's lifetime: the parser never mutates it again after yielding it,
// and conn.Conn resets its own scratch Request only after the handler and
// the response writer have both finished with it.
type Request struct {
	Method  Method
	URI     string // query suffix, if any, preserved verbatim after '?'
	Version string // e.g. "1.1"

	Headers *Headers
	Body    []byte // length == Content-Length
}

// IsKeepAlive reports whether this connection should stay open for another
// pipelined request: Connection: keep-alive (case-sensitive) and HTTP/1.1.
func (r *Request) IsKeepAlive() bool {
	if r.Version != "1.1" {
		return false
	}
	v, ok := r.Headers.Get("Connection")
	return ok && v == "keep-alive"
}

// ContentLength returns the parsed Content-Length header value, or -1 if
// absent. BEFORE_PARSING_REQUEST_BODY rejects a request with it missing,
// so by the time a Request reaches a handler this is always >= 0.
func (r *Request) ContentLength() int {
	v, ok := r.Headers.Get("Content-Length")
	if !ok {
		return -1
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// Reset clears the request for reuse by the parser after a COMPLETE
// transition, mirroring the teacher's session reuse across pipelined
// requests on the same fd.
func (r *Request) Reset() {
	r.Method = MethodUnknown
	r.URI = ""
	r.Version = ""
	if r.Headers != nil {
		r.Headers.Reset()
	}
	r.Body = nil
}
