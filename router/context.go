package router

import "github.com/kfcemployee/goserver/httptype"

// Context is the handler's view of one request/response pair: request
// accessors plus response setters, mirroring the teacher's
// router/context.go accessor surface but over *httptype.Request/Response
// instead of a raw Session arena.
type Context struct {
	Request  *httptype.Request
	Response *httptype.Response
}

func (c *Context) Method() httptype.Method { return c.Request.Method }

func (c *Context) URI() string { return c.Request.URI }

func (c *Context) Version() string { return c.Request.Version }

// Header returns a request header value.
func (c *Context) Header(name string) (string, bool) {
	return c.Request.Headers.Get(name)
}

func (c *Context) Body() []byte { return c.Request.Body }

// SetStatus sets the response status code; a zero or unrecognized code
// is coerced to 400 when the response is finally serialized.
func (c *Context) SetStatus(code int) { c.Response.Status = code }

// SetHeader sets (overwriting) a response header.
func (c *Context) SetHeader(name, value string) { c.Response.Headers.Set(name, value) }

// Write appends to the response body buffer.
func (c *Context) Write(p []byte) (int, error) { return c.Response.Body.Write(p) }

// WriteString appends a string to the response body buffer.
func (c *Context) WriteString(s string) (int, error) { return c.Response.Body.WriteString(s) }

// WriteForeign splices a caller-owned byte range into the response body
// without copying; release is called exactly once after the bytes are
// flushed (or the response is discarded).
func (c *Context) WriteForeign(data []byte, release func()) {
	c.Response.Body.AddForeign(data, release)
}

// SendDirect is a convenience that sets the status and writes body in
// one call, mirroring the teacher's Context.SendDirect.
func (c *Context) SendDirect(code int, body []byte) {
	c.SetStatus(code)
	c.Response.Body.Write(body)
}
