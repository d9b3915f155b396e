package httpshow

import (
	"io"
	"strconv"
	"strings"

	"github.com/nilreach/httpshow/hdr"
	"github.com/nilreach/httpshow/internal/bytestream"
	"github.com/nilreach/httpshow/urlcodec"
)

// ProtocolTag classifies the protocol literal on a request's start
// line.
type ProtocolTag int

const (
	ProtocolNone ProtocolTag = iota
	ProtocolUnknown
	ProtocolHTTP10
	ProtocolHTTP11
)

// ContentLengthFlag reports whether a request's body length is known.
type ContentLengthFlag int

const (
	// ContentLengthNo means no Content-Length header was present; the
	// body, if any, ends when the peer closes the connection.
	ContentLengthNo ContentLengthFlag = iota
	// ContentLengthYes means exactly one Content-Length header parsed
	// cleanly as a base-10 unsigned integer.
	ContentLengthYes
	// ContentLengthMaybe means a Content-Length header was present but
	// repeated or unparseable; the body's length is unknown and reads
	// fall back to peer-close semantics, same as ContentLengthNo.
	ContentLengthMaybe
)

// Request is a parsed HTTP/1.x request line and header block, plus a
// cursor into the body bytes that follow them on the same Connection.
// A Request is produced by ParseRequest, which consumes exactly the
// start line and headers from the Connection; the body is read
// through the Request itself via Read and, when bounded, released
// back to the Connection via Flush.
type Request struct {
	conn *Connection

	Protocol        ProtocolTag
	ProtocolLiteral string
	Method          string
	Path            []string
	Query           map[string][]string
	Headers         hdr.Header

	ContentLengthFlag ContentLengthFlag
	ContentLength     uint64

	bodyConsumed uint64
}

// ParseRequest consumes a request's start line and headers from conn
// and returns the parsed Request. Parsing stops at the blank line
// terminating the headers; any body bytes remain to be read through
// the returned Request.
func ParseRequest(conn *Connection) (*Request, error) {
	req := &Request{conn: conn, Query: map[string][]string{}}

	method, err := parseMethod(conn)
	if err != nil {
		return nil, err
	}
	req.Method = method

	path, query, terminator, err := parsePathAndQuery(conn)
	if err != nil {
		return nil, err
	}
	req.Path = path
	req.Query = query

	if terminator == ' ' {
		literal, err := parseProtocolLine(conn)
		if err != nil {
			return nil, err
		}
		req.ProtocolLiteral = literal
	}
	req.Protocol = classifyProtocol(req.ProtocolLiteral)

	headers, err := parseHeaders(conn)
	if err != nil {
		return nil, err
	}
	req.Headers = headers

	req.ContentLengthFlag, req.ContentLength = classifyContentLength(headers)

	return req, nil
}

// Read reads request body bytes. When ContentLengthFlag is
// ContentLengthYes, Read never returns more than the remaining
// content_length bytes and returns io.EOF once that many have been
// delivered, without touching the socket again. Otherwise Read passes
// through to the Connection and relies on the peer closing (surfaced
// as *ClientDisconnected) to signal the end of the body.
func (r *Request) Read(p []byte) (int, error) {
	if r.ContentLengthFlag == ContentLengthYes {
		remaining := r.ContentLength - r.bodyConsumed
		if remaining == 0 {
			return 0, io.EOF
		}
		if uint64(len(p)) > remaining {
			p = p[:remaining]
		}
	}
	n, err := r.conn.Read(p)
	r.bodyConsumed += uint64(n)
	return n, err
}

// Conn returns the Connection the request was parsed from, so a caller
// that needs to read body bytes framed some other way than
// Content-Length — chunked transfer-encoding, in particular — can go
// around Read's content-length accounting.
func (r *Request) Conn() *Connection { return r.conn }

// Flush discards any unread body bytes so the Connection is ready for
// the next Request. It only does meaningful work when
// ContentLengthFlag is ContentLengthYes: the length is known, so the
// exact remainder can be drained. When the flag is No or Maybe there
// is no bound to drain to short of the peer closing, so Flush is a
// no-op and the caller must close the Connection instead.
func (r *Request) Flush() error {
	if r.ContentLengthFlag != ContentLengthYes {
		return nil
	}
	var buf [512]byte
	for r.bodyConsumed < r.ContentLength {
		n, err := r.Read(buf[:])
		_ = n
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}
	return nil
}

func parseMethod(r bytestream.Reader) (string, error) {
	var buf []byte
	for {
		b, err := readNormalizedByte(r)
		if err != nil {
			return "", err
		}
		if b == ' ' {
			break
		}
		buf = append(buf, toUpperASCII(b))
	}
	return string(buf), nil
}

// parsePathAndQuery implements states 2 and 3 of the request-line FSM.
// It returns the decoded path segments, the decoded query arguments
// (empty if no '?' was seen), and the byte that ended the line: ' '
// (protocol follows) or '\n' (headers follow directly).
//
// pathBegun tracks whether the very first '/' (or, for a path with no
// leading slash, the first content byte) has been seen, independent of
// whether any segment currently holds content. A '/' seen while
// pathBegun is already true closes the current segment (forcing one
// into existence first if none has been opened yet) and opens a new,
// possibly empty, one — so "//foo" yields ["", "foo"] rather than
// silently dropping the leading empty segment. The very first '/' only
// flips the flag and opens no segment, so "GET / ..." still parses to
// a zero-length path.
func parsePathAndQuery(r bytestream.Reader) ([]string, map[string][]string, byte, error) {
	var segments []string
	var pathBegun bool

	decodeLast := func() error {
		if len(segments) == 0 {
			return nil
		}
		decoded, err := urlcodec.Decode(segments[len(segments)-1])
		if err != nil {
			return &RequestParseError{Reason: err.Error()}
		}
		segments[len(segments)-1] = decoded
		return nil
	}

	for {
		b, err := readNormalizedByte(r)
		if err != nil {
			return nil, nil, 0, err
		}
		switch b {
		case '?':
			if err := decodeLast(); err != nil {
				return nil, nil, 0, err
			}
			query, terminator, err := parseQuery(r)
			if err != nil {
				return nil, nil, 0, err
			}
			return segments, query, terminator, nil
		case ' ', '\n':
			if err := decodeLast(); err != nil {
				return nil, nil, 0, err
			}
			return segments, map[string][]string{}, b, nil
		case '/':
			if pathBegun {
				if len(segments) == 0 {
					segments = append(segments, "")
				}
				if err := decodeLast(); err != nil {
					return nil, nil, 0, err
				}
				segments = append(segments, "")
			} else {
				pathBegun = true
			}
		default:
			if len(segments) == 0 {
				pathBegun = true
				segments = append(segments, string(b))
			} else {
				segments[len(segments)-1] += string(b)
			}
		}
	}
}

// parseQuery implements state 3's stack-of-candidates algorithm. It is
// entered immediately after the '?' that opened the query string.
//
// The stack starts empty and stays empty between pairs: '=' always
// pushes a new candidate (even with nothing on the stack yet), and a
// content byte only pushes one lazily, when the stack is empty. That
// means a pair with no key before its '=' — e.g. "?=val" — never gets
// the stack above size 1, so the finalize step below treats the whole
// accumulated text as a *key* mapped to an empty value rather than as
// an empty key mapped to that text.
func parseQuery(r bytestream.Reader) (map[string][]string, byte, error) {
	query := map[string][]string{}
	var stack [][]byte

	for {
		b, err := readNormalizedByte(r)
		if err != nil {
			return nil, 0, err
		}
		switch b {
		case '=':
			stack = append(stack, []byte{})
		case '&', '\n', ' ':
			value := ""
			if len(stack) > 1 {
				raw := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				decoded, err := urlcodec.Decode(string(raw))
				if err != nil {
					return nil, 0, &RequestParseError{Reason: err.Error()}
				}
				value = decoded
			}
			for len(stack) > 0 {
				raw := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				key, err := urlcodec.Decode(string(raw))
				if err != nil {
					return nil, 0, &RequestParseError{Reason: err.Error()}
				}
				query[key] = append(query[key], value)
			}
			if b == '&' {
				continue
			}
			return query, b, nil
		default:
			if len(stack) == 0 {
				stack = append(stack, []byte{})
			}
			stack[len(stack)-1] = append(stack[len(stack)-1], b)
		}
	}
}

func parseProtocolLine(r bytestream.Reader) (string, error) {
	var buf []byte
	for {
		b, err := readNormalizedByte(r)
		if err != nil {
			return "", err
		}
		if b == '\n' {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

func classifyProtocol(literal string) ProtocolTag {
	switch strings.ToUpper(literal) {
	case "":
		return ProtocolNone
	case "HTTP/1.0":
		return ProtocolHTTP10
	case "HTTP/1.1":
		return ProtocolHTTP11
	default:
		return ProtocolUnknown
	}
}

func isHeaderNameByte(b byte) bool {
	return 'A' <= b && b <= 'Z' || 'a' <= b && b <= 'z' || '0' <= b && b <= '9' || b == '-'
}

func parseHeaders(r bytestream.Reader) (hdr.Header, error) {
	h := hdr.Header{}
	for {
		name, end, err := parseHeaderName(r)
		if err != nil {
			return nil, err
		}
		if end {
			return h, nil
		}

		emptyValue, err := parseHeaderPadding(r)
		if err != nil {
			return nil, err
		}
		value := ""
		if !emptyValue {
			value, err = parseHeaderValue(r)
			if err != nil {
				return nil, err
			}
		}
		h.Add(name, value)
	}
}

// parseHeaderName implements state 5. end is true once the blank line
// terminating the header block has been consumed.
func parseHeaderName(r bytestream.Reader) (name string, end bool, err error) {
	var buf []byte
	for {
		b, err := readNormalizedByte(r)
		if err != nil {
			return "", false, err
		}
		switch {
		case b == ':':
			return string(buf), false, nil
		case b == '\n':
			if len(buf) == 0 {
				return "", true, nil
			}
			return "", false, &RequestParseError{Reason: "malformed header"}
		case isHeaderNameByte(b):
			buf = append(buf, b)
		default:
			return "", false, &RequestParseError{Reason: "malformed header"}
		}
	}
}

// parseHeaderPadding implements state 6. It returns true if a bare '\n'
// ended the header immediately, meaning the value is empty.
func parseHeaderPadding(r bytestream.Reader) (bool, error) {
	sawSpace := false
	for {
		b, err := bytestream.ReadByte(r)
		if err != nil {
			return false, err
		}
		switch {
		case b == ' ' || b == '\t':
			sawSpace = true
		case b == '\n':
			return true, nil
		default:
			if !sawSpace {
				return false, &RequestParseError{Reason: "malformed header"}
			}
			if err := r.Unget(b); err != nil {
				return false, err
			}
			return false, nil
		}
	}
}

// parseHeaderValue implements state 7, including folding continuation
// lines whose first byte is a space or tab.
func parseHeaderValue(r bytestream.Reader) (string, error) {
	var buf []byte
	for {
		b, err := readNormalizedByte(r)
		if err != nil {
			return "", err
		}
		if b != '\n' {
			buf = append(buf, b)
			continue
		}

		next, err := bytestream.ReadByte(r)
		if err != nil {
			return "", err
		}
		if next != ' ' && next != '\t' {
			if err := r.Unget(next); err != nil {
				return "", err
			}
			return string(buf), nil
		}

		buf = append(buf, ' ')
		for {
			b2, err := bytestream.ReadByte(r)
			if err != nil {
				return "", err
			}
			if b2 == ' ' || b2 == '\t' {
				continue
			}
			if err := r.Unget(b2); err != nil {
				return "", err
			}
			break
		}
	}
}

func classifyContentLength(h hdr.Header) (ContentLengthFlag, uint64) {
	values := h.Values("Content-Length")
	if len(values) == 0 {
		return ContentLengthNo, 0
	}
	if len(values) > 1 {
		return ContentLengthMaybe, 0
	}
	n, err := strconv.ParseUint(values[0], 10, 64)
	if err != nil {
		return ContentLengthMaybe, 0
	}
	return ContentLengthYes, n
}

// readNormalizedByte reads one byte, collapsing a "\r\n" pair into a
// single '\n' result. A lone '\r' not followed by '\n' is a parse
// error; a lone '\n' passes through unchanged, per the parser's
// permissive line-ending rule.
func readNormalizedByte(r bytestream.Reader) (byte, error) {
	b, err := bytestream.ReadByte(r)
	if err != nil {
		return 0, err
	}
	if b != '\r' {
		return b, nil
	}
	next, err := bytestream.ReadByte(r)
	if err != nil {
		return 0, err
	}
	if next != '\n' {
		return 0, &RequestParseError{Reason: "malformed HTTP line ending"}
	}
	return '\n', nil
}

func toUpperASCII(b byte) byte {
	if 'a' <= b && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
