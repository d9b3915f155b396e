package httpshow

// SocketError reports an OS-level failure unrelated to peer behavior:
// bind, listen, setsockopt, an invalid address, an unexpected pselect
// failure, or an unhandled errno from read/send. It is fatal for the
// Connection or Server that raised it.
type SocketError struct {
	Reason string
}

func (e *SocketError) Error() string { return "socket error: " + e.Reason }

// ConnectionTimeout reports that a blocking wait exceeded the
// connection's or server's configured timeout. It is not an *error* in
// the Go sense that callers must treat as fatal — it is a transient
// control-flow signal, the way the original C++ source's
// connection_timeout does not derive from std::exception.
type ConnectionTimeout struct {
	Purpose string
}

func (e *ConnectionTimeout) Error() string { return "connection timeout: " + e.Purpose }

// ClientDisconnected reports a peer-initiated close: a zero-byte read
// or ECONNRESET.
type ClientDisconnected struct{}

func (e *ClientDisconnected) Error() string { return "client disconnected" }

// connectionInterrupted is the conceptual supertype spec.md §7 assigns
// to ConnectionTimeout and ClientDisconnected: both describe the
// connection being cut short rather than fed bad bytes.
type connectionInterrupted interface {
	error
	interrupted()
}

func (e *ConnectionTimeout) interrupted()  {}
func (e *ClientDisconnected) interrupted() {}

// IsInterrupted reports whether err is a ConnectionTimeout or a
// ClientDisconnected — the two conditions an application can usually
// treat as "try again" or "close and move on" rather than a malformed
// request.
func IsInterrupted(err error) bool {
	_, ok := err.(connectionInterrupted)
	return ok
}

// RequestParseError reports malformed request bytes. Applications
// encountering this should respond 400 and close the Connection.
type RequestParseError struct {
	Reason string
}

func (e *RequestParseError) Error() string { return "request parse error: " + e.Reason }

// ResponseMarshallError reports that the application passed an invalid
// header name, an empty name, or an empty value to a Response
// constructor. This is a programming error, not a network condition.
type ResponseMarshallError struct {
	Reason string
}

func (e *ResponseMarshallError) Error() string { return "response marshall error: " + e.Reason }

// ChunkedError reports misuse of the chunked response API: a header
// set that conflicts with chunked framing, passed to
// chunked.NewResponseWriter.
type ChunkedError struct {
	Reason string
}

func (e *ChunkedError) Error() string { return "chunked error: " + e.Reason }
