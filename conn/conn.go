// Package conn is the per-connection state machine (component F): an
// HTTP parser, a response buffer, the keep-alive flag, and the frozen
// gather-write view produced once a response is ready. Grounded on
// s00inx-goserver/server/engine/session.go's Session arena (Buf/Offset
// fields) merged with router/response_writer.go's write flow, but
// generalized to own a *buffer.Buffer on the write side and a growable
// flat slice on the read side instead of a fixed scratch buffer.
package conn

import (
	"github.com/kfcemployee/goserver/buffer"
	"github.com/kfcemployee/goserver/httpparse"
	"github.com/kfcemployee/goserver/httptype"
	"github.com/kfcemployee/goserver/notify"
	"github.com/kfcemployee/goserver/respool"
	"github.com/nikandfor/errors"
)

// readReserve is the minimum spare room kept in the read buffer before
// each read(2), per §4.E's edge-triggered read-loop reserve.
const readReserve = 5 * 1024

// ErrReadFD marks a read(2) failure other than EAGAIN/EINTR/EOF.
var ErrReadFD = errors.New("conn: read error")

// Conn is one accepted client connection. Not safe for concurrent use —
// the reactor's ONESHOT re-arming discipline guarantees only one
// goroutine touches a given Conn at a time.
type Conn struct {
	Fd int

	readBuf  []byte
	readLen  int
	bufLease *respool.Leased[[]byte] // nil when readBuf was self-allocated by New

	parser *httpparse.Parser

	Resp      *httptype.Response
	keepAlive bool

	writeBuf    *buffer.Buffer
	writeViews  [][]byte
	writeOffset int // bytes already consumed from the flattened view

	closed bool
}

// New returns a Conn ready to parse the first request on fd, allocating
// its own read buffer. Standalone callers (tests, one-off tools) that
// have no respool.Pool to borrow from use this; the reactor uses
// NewFromPool instead.
func New(fd int) *Conn {
	return newConn(fd, make([]byte, readReserve*2), nil)
}

// NewFromPool returns a Conn whose read buffer is borrowed from lease,
// returned to the pool when the Conn is closed. This is how component H
// fulfills the pooled-read-buffer allocation respool exists for.
func NewFromPool(fd int, lease *respool.Leased[[]byte]) *Conn {
	return newConn(fd, lease.Value(), lease)
}

func newConn(fd int, buf []byte, lease *respool.Leased[[]byte]) *Conn {
	return &Conn{
		Fd:       fd,
		readBuf:  buf,
		bufLease: lease,
		parser:   httpparse.New(),
		Resp:     httptype.NewResponse(),
		writeBuf: buffer.New(buffer.DefaultSegmentCapacity),
	}
}

// KeepAlive reports whether the most recently completed request asked to
// keep the connection open.
func (c *Conn) KeepAlive() bool { return c.keepAlive }

func (c *Conn) ensureReadRoom() {
	if len(c.readBuf)-c.readLen < readReserve {
		grown := make([]byte, len(c.readBuf)*2)
		copy(grown, c.readBuf[:c.readLen])
		c.readBuf = grown
	}
}

// ParseFromFD drains the socket into the parser. When edgeTriggered,
// it reads repeatedly until EAGAIN or EOF (per the edge-triggered read
// loop in §4.E); otherwise it performs a single read per call. It
// returns the parser's resulting state and, on Complete, the parsed
// request (valid until the next ParseFromFD/Clear call).
func (c *Conn) ParseFromFD(edgeTriggered bool) (httpparse.State, *httptype.Request, error) {
	for {
		c.ensureReadRoom()
		n, err := notify.ReadFd(c.Fd, c.readBuf[c.readLen:])
		if n > 0 {
			c.readLen += n
		}
		if err != nil {
			if notify.IsAgain(err) {
				break
			}
			if notify.IsInterrupted(err) {
				continue
			}
			return httpparse.ErrorReadFD, nil, errors.Wrap(ErrReadFD, err.Error())
		}
		if n == 0 {
			// EOF: peer closed its write side. Parse whatever arrived.
			break
		}
		if !edgeTriggered {
			break
		}
	}

	state, req, consumed := c.parser.Feed(c.readBuf[:c.readLen])
	if state == httpparse.Complete && len(req.Body) > 0 {
		// req.Body aliases c.readBuf; the compaction below slides any
		// pipelined remainder down over that same backing array, which
		// would overwrite it before the caller ever reads it when the
		// remainder is longer than the body's offset. Copy it out first.
		body := make([]byte, len(req.Body))
		copy(body, req.Body)
		req.Body = body
	}
	if consumed > 0 {
		remaining := c.readLen - consumed
		if remaining > 0 {
			copy(c.readBuf, c.readBuf[consumed:c.readLen])
		}
		c.readLen = remaining
	}

	if state == httpparse.Complete {
		c.keepAlive = req.IsKeepAlive()
	}
	return state, req, nil
}

// MakeResponse serializes the status line and headers into a fresh
// segmented buffer, splices in the handler's body buffer, and freezes
// the resulting gather view for WriteToFD.
func (c *Conn) MakeResponse() {
	c.writeBuf.Clear()

	code, reason := httptype.ReasonPhrase(c.Resp.Status)
	version := c.Resp.Version
	if version == "" {
		version = "1.1"
	}

	c.writeBuf.WriteString("HTTP/")
	c.writeBuf.WriteString(version)
	c.writeBuf.WriteString(" ")
	c.writeBuf.WriteString(itoa(code))
	c.writeBuf.WriteString(" ")
	c.writeBuf.WriteString(reason)
	c.writeBuf.WriteString("\r\n")

	c.Resp.Headers.Each(func(name, value string) {
		c.writeBuf.WriteString(name)
		c.writeBuf.WriteString(": ")
		c.writeBuf.WriteString(value)
		c.writeBuf.WriteString("\r\n")
	})
	c.writeBuf.WriteString("\r\n")

	c.writeBuf.WriteBuffer(c.Resp.Body)

	c.writeViews = c.writeBuf.ReadView()
	c.writeOffset = 0
}

// WriteToFD issues one gathered write of the remaining unsent response
// bytes. done reports whether the whole response has been sent; retry
// reports whether the caller should re-arm for WRITE and try again
// later (EAGAIN) rather than treat this as an error.
func (c *Conn) WriteToFD() (written int, done bool, retry bool, err error) {
	views := flattenFrom(c.writeViews, c.writeOffset)
	if len(views) == 0 {
		return 0, true, false, nil
	}

	n, werr := notify.Writev(c.Fd, views)
	if n > 0 {
		c.writeOffset += n
	}
	if werr != nil {
		if notify.IsAgain(werr) {
			return n, false, true, nil
		}
		return n, true, false, werr
	}
	if remaining(c.writeViews, c.writeOffset) == 0 {
		return n, true, false, nil
	}
	return n, false, false, nil
}

// Clear resets the parser, response, and write state for the next
// pipelined request on this connection.
func (c *Conn) Clear() {
	c.parser.Reset()
	c.Resp.Reset()
	c.writeBuf.Clear()
	c.writeViews = nil
	c.writeOffset = 0
	c.keepAlive = false
}

// Close idempotently closes the underlying fd and releases buffers.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.writeBuf.Close()
	c.Resp.Body.Close()
	if c.bufLease != nil {
		c.bufLease.Close()
	}
	return notify.Close(c.Fd)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// flattenFrom skips the first `skip` bytes across the view sequence and
// returns the remaining runs.
func flattenFrom(views [][]byte, skip int) [][]byte {
	if skip == 0 {
		return views
	}
	out := make([][]byte, 0, len(views))
	for _, v := range views {
		if skip >= len(v) {
			skip -= len(v)
			continue
		}
		out = append(out, v[skip:])
		skip = 0
	}
	return out
}

func remaining(views [][]byte, offset int) int {
	total := 0
	for _, v := range views {
		total += len(v)
	}
	return total - offset
}
