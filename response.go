package httpshow

import (
	"strconv"

	"github.com/nilreach/httpshow/hdr"
)

// Response marshals an HTTP/1.x status line and header block into a
// Connection's write buffer at construction time, then forwards body
// bytes written through it. Go has no destructors, so the drop-time
// flush the design calls for is Finish: callers should `defer
// resp.Finish()` immediately after a successful NewResponse, the way
// the source's response flushes unconditionally when it goes out of
// scope.
type Response struct {
	conn     *Connection
	finished bool
}

// NewResponse writes the status line and every header entry into
// conn's write buffer (buffered, not yet sent — bytes leave only when
// the Connection's put-buffer fills or on Flush or Finish) and returns
// a Response ready to stream the body through.
//
// protocol chooses "HTTP/1.1 " only for ProtocolHTTP11; every other
// tag (including ProtocolNone and ProtocolUnknown) gets "HTTP/1.0 ",
// matching the source's "respond 1.0 unless the request was
// unambiguously 1.1" rule.
func NewResponse(conn *Connection, protocol ProtocolTag, code int, reason string, headers hdr.Header) (*Response, error) {
	line := "HTTP/1.0 "
	if protocol == ProtocolHTTP11 {
		line = "HTTP/1.1 "
	}
	if _, err := conn.Write([]byte(line)); err != nil {
		return nil, err
	}
	if _, err := conn.Write([]byte(strconv.Itoa(code) + " " + reason + "\r\n")); err != nil {
		return nil, err
	}

	for name, values := range headers {
		for _, value := range values {
			if name == "" {
				return nil, &ResponseMarshallError{Reason: "empty header name"}
			}
			if !hdr.ValidName(name) {
				return nil, &ResponseMarshallError{Reason: "invalid header name"}
			}
			if value == "" {
				return nil, &ResponseMarshallError{Reason: "empty header value"}
			}

			canonical := hdr.CanonicalKey(name)
			folded := hdr.FoldContinuation(value)
			if _, err := conn.Write([]byte(canonical + ": " + folded + "\r\n")); err != nil {
				return nil, err
			}
		}
	}

	if _, err := conn.Write([]byte("\r\n")); err != nil {
		return nil, err
	}

	return &Response{conn: conn}, nil
}

// Write forwards body bytes into the Connection's write buffer.
func (resp *Response) Write(p []byte) (int, error) {
	return resp.conn.Write(p)
}

// Flush sends any buffered bytes to the peer now, propagating
// ConnectionTimeout, ClientDisconnected, and SocketError as the
// Connection reports them. Use this when the caller wants flush
// failures to be visible mid-response; Finish is for the final,
// can't-fail cleanup.
func (resp *Response) Flush() error {
	return resp.conn.Flush()
}

// Finish flushes the Connection and marks the Response finished,
// swallowing any error the flush raises — a drop can't fail safely,
// so this is the explicit stand-in for the source's flush-on-drop.
// Safe to call more than once or via defer.
func (resp *Response) Finish() error {
	if resp.finished {
		return nil
	}
	resp.finished = true
	_ = resp.conn.Flush()
	return nil
}
