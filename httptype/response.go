package httptype

import "github.com/kfcemployee/goserver/buffer"

// Response is the handler-facing half of the request/response pipeline.
// Body is a Segmented Buffer so a handler can splice in a foreign segment
// (e.g. a memory-mapped file) without copying.
type Response struct {
	Version string
	Status  int // 0 sentinel = unset
	Desc    string
	Headers *Headers
	Body    *buffer.Buffer
}

// NewResponse returns a Response with an empty, ready-to-write body
// buffer and default HTTP/1.1 version.
func NewResponse() *Response {
	return &Response{
		Version: "1.1",
		Headers: NewHeaders(8),
		Body:    buffer.New(buffer.DefaultSegmentCapacity),
	}
}

// Reset prepares the response for reuse on the next pipelined request.
func (r *Response) Reset() {
	r.Status = 0
	r.Desc = ""
	r.Headers.Reset()
	r.Body.Clear()
}
