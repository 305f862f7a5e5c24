package httpparse

import (
	"bytes"

	"github.com/kfcemployee/goserver/httptype"
)

// maxHeaders caps how many headers a single request may carry; beyond
// that, later header lines are still scanned (so the end of the header
// block is found) but not retained, mirroring the teacher's fixed hbuf
// cap. A Content-Length past the cap is therefore not seen.
const maxHeaders = 64

// maxHeaderLines bounds how many header lines are scanned before giving
// up on ever finding the blank line that ends the header block.
const maxHeaderLines = maxHeaders * 4

// Parser is a resumable HTTP/1.1 request-line + header + body state
// machine. It is not safe for concurrent use; a Connection owns exactly
// one, reused across pipelined requests on the same fd.
type Parser struct {
	state State
	req   httptype.Request

	contentLength int
}

// New returns a parser ready to read the first request line.
func New() *Parser {
	p := &Parser{state: Init}
	p.req.Headers = httptype.NewHeaders(8)
	return p
}

// State reports the parser's current state.
func (p *Parser) State() State { return p.state }

// Feed attempts to parse one request out of buf, which must be the full
// set of bytes read so far for the in-progress request (the caller does
// not advance its own read cursor until Feed reports a byte count > 0).
//
// On Complete, it returns the request (valid until the next Feed/Reset
// call) and the number of bytes of buf consumed; the parser has already
// reset itself to Init for the next request on the same connection. On
// an Error* state, consumed is meaningless (the connection is going to be
// closed). Otherwise it returns the furthest state reached and consumed
// == 0: the caller must read more bytes and call Feed again with the
// larger buffer.
//
// Feed always rescans buf from the start: every call receives the full
// bytes accumulated for the in-progress request (not just newly-read
// bytes), so there is no persistent cursor to resume from across short
// reads, matching the rescan approach of the teacher's own parseRaw.
func (p *Parser) Feed(buf []byte) (State, *httptype.Request, int) {
	if p.state == Init {
		p.req.Reset()
		p.contentLength = -1
	}
	p.state = ParsingRequestLine

	pos, ok := p.parseRequestLine(buf)
	if !ok {
		return p.state, nil, 0
	}
	p.state = ParsingRequestHeader

	pos, ok = p.parseHeaders(buf, pos)
	if !ok {
		return p.state, nil, 0
	}
	p.state = BeforeParsingRequestBody

	cl, ok := p.req.Headers.Get("Content-Length")
	if !ok {
		p.state = ErrorBodyLength
		return p.state, nil, 0
	}
	contentLength := parseNonNegativeInt(cl)
	if contentLength < 0 {
		p.state = ErrorBodyLength
		return p.state, nil, 0
	}
	p.contentLength = contentLength
	p.state = ParsingRequestBody

	if len(buf)-pos < p.contentLength {
		return p.state, nil, 0 // incomplete
	}
	p.req.Body = buf[pos : pos+p.contentLength]
	pos += p.contentLength

	req := &p.req
	p.state = Init
	return Complete, req, pos
}

// Reset discards any in-progress request and returns the parser to Init.
// Used when a connection is recycled for a new peer.
func (p *Parser) Reset() {
	p.state = Init
	p.req.Reset()
	p.contentLength = -1
}

func findByte(buf []byte, from int, c byte) int {
	idx := bytes.IndexByte(buf[from:], c)
	if idx == -1 {
		return -1
	}
	return from + idx
}

// parseRequestLine matches "METHOD SP URI SP HTTP/VERSION CRLF" per §4.E.
// It first isolates the whole line by its terminating CRLF: once that
// much has arrived, any tokenization failure is a genuine
// ErrorRequestLine rather than "wait for more bytes".
func (p *Parser) parseRequestLine(buf []byte) (int, bool) {
	lf := findByte(buf, 0, '\n')
	if lf == -1 {
		return 0, false // incomplete: no full line yet
	}
	if lf == 0 || buf[lf-1] != '\r' {
		p.state = ErrorRequestLine
		return 0, false
	}
	line := buf[:lf-1]
	crs := lf + 1

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 == -1 {
		p.state = ErrorRequestLine
		return 0, false
	}
	methodTok := line[:sp1]
	rest := line[sp1+1:]

	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 == -1 {
		p.state = ErrorRequestLine
		return 0, false
	}
	uriTok := rest[:sp2]
	versionTok := rest[sp2+1:]

	if len(methodTok) == 0 || len(uriTok) == 0 {
		p.state = ErrorRequestLine
		return 0, false
	}
	version, ok := parseHTTPVersion(versionTok)
	if !ok {
		p.state = ErrorRequestLine
		return 0, false
	}

	method := httptype.ParseMethod(string(methodTok))
	if method == httptype.MethodUnknown {
		p.state = ErrorRequestLine
		return 0, false
	}

	p.req.Method = method
	p.req.URI = string(uriTok)
	p.req.Version = version
	return crs, true
}

// parseHTTPVersion accepts any "HTTP/<version>" token with a non-empty
// version and returns that suffix (e.g. "1.1"). The suffix itself is not
// checked.
func parseHTTPVersion(tok []byte) (string, bool) {
	const prefix = "HTTP/"
	if len(tok) <= len(prefix) || string(tok[:len(prefix)]) != prefix {
		return "", false
	}
	return string(tok[len(prefix):]), true
}

// parseHeaders consumes "NAME \":\" [SP] VALUE CRLF" lines from start
// until a bare CRLF ends the header block, per §4.E. First occurrence of
// a header name wins; later duplicates are discarded.
func (p *Parser) parseHeaders(buf []byte, start int) (int, bool) {
	crs := start
	count := 0
	lines := 0

	for {
		if crs+1 >= len(buf) {
			return 0, false
		}
		if buf[crs] == '\r' && buf[crs+1] == '\n' {
			return crs + 2, true
		}

		lines++
		if lines > maxHeaderLines {
			// a connection sending this many header lines without a
			// terminating blank line is not going to produce one.
			p.state = ErrorNoEmptyLine
			return 0, false
		}

		lf := findByte(buf, crs, '\n')
		if lf == -1 {
			return 0, false
		}
		if lf == crs || buf[lf-1] != '\r' {
			p.state = ErrorHeader
			return 0, false
		}
		lineEnd := lf - 1

		colon := findByte(buf, crs, ':')
		if colon == -1 || colon > lineEnd {
			p.state = ErrorHeader
			return 0, false
		}

		name := buf[crs:colon]
		if len(name) == 0 {
			p.state = ErrorHeader
			return 0, false
		}

		valStart := colon + 1
		for valStart < lineEnd && buf[valStart] == ' ' {
			valStart++
		}
		value := buf[valStart:lineEnd]

		if count < maxHeaders {
			p.req.Headers.SetFirst(string(name), string(value))
			count++
		}

		crs = lf + 1
	}
}

func parseNonNegativeInt(s string) int {
	if len(s) == 0 {
		return -1
	}
	n := 0
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}
