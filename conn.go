package httpshow

import (
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// DefaultBufferSize is the fixed capacity of a Connection's get-buffer
// and put-buffer, the way the original C++ source sizes both
// directions of its streambuf at a single BUFFER_SIZE constant.
const DefaultBufferSize = 1024

// Connection is a bidirectional byte stream layered over a Socket. It
// implements bytestream.ReadWriter: reads are served out of a
// get-buffer that is refilled one socket read at a time, and writes
// accumulate in a put-buffer that is sent on Flush or when full.
//
// Connection does not flush itself on drop — Response owns that
// responsibility (spec.md §4.2, §4.5).
type Connection struct {
	socket *Socket
	log    *zap.Logger

	timeout int // -1 indefinite, 0 non-blocking, >0 bounded seconds

	getBuf []byte
	getPos int
	getEnd int

	putBuf []byte
	putPos int
}

// NewConnection wraps an accepted Socket in a Connection with the
// given timeout (seconds; -1 = indefinite, 0 = non-blocking).
func NewConnection(socket *Socket, timeout int) *Connection {
	return NewConnectionSize(socket, timeout, DefaultBufferSize)
}

// NewConnectionSize is NewConnection with an explicit buffer capacity,
// used by tests that want to exercise refill/flush boundaries without
// allocating a full kilobyte per direction.
func NewConnectionSize(socket *Socket, timeout int, bufSize int) *Connection {
	return &Connection{
		socket:  socket,
		log:     zap.NewNop(),
		timeout: timeout,
		getBuf:  make([]byte, bufSize),
		putBuf:  make([]byte, bufSize),
	}
}

// SetLogger attaches a structured logger used to report socket-level
// conditions that the caller of Read/Write/Flush doesn't necessarily
// see (e.g. a close during a best-effort final flush).
func (c *Connection) SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	c.log = log
}

// Timeout returns the connection's current timeout setting.
func (c *Connection) Timeout() int { return c.timeout }

// SetTimeout changes the connection's timeout setting and returns the
// previous value.
func (c *Connection) SetTimeout(seconds int) int {
	prev := c.timeout
	c.timeout = seconds
	return prev
}

// Socket returns the Connection's underlying Socket, for address
// introspection (RemoteAddr, etc).
func (c *Connection) Socket() *Socket { return c.socket }

// Read implements bytestream.Reader. It serves buffered bytes first;
// when the get-buffer is exhausted it performs exactly one refill
// (waiting for readiness first, unless the timeout is zero) and
// returns whatever that refill produced, even if less than len(p).
func (c *Connection) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.getPos >= c.getEnd {
		if err := c.refill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.getBuf[c.getPos:c.getEnd])
	c.getPos += n
	return n, nil
}

func (c *Connection) refill() error {
	for {
		if c.timeout != 0 {
			if _, err := c.socket.WaitFor(WaitRead, c.timeout, "request read"); err != nil {
				c.logWaitTimeout("request read", err)
				return err
			}
		}

		n, err := c.socket.Read(c.getBuf)
		if err != nil {
			switch err {
			case unix.EAGAIN, unix.EWOULDBLOCK:
				return &ConnectionTimeout{Purpose: "request read"}
			case unix.ECONNRESET:
				return &ClientDisconnected{}
			case unix.EINTR:
				continue
			default:
				return &SocketError{Reason: "failure to read request: " + err.Error()}
			}
		}
		if n == 0 {
			return &ClientDisconnected{}
		}
		c.getPos, c.getEnd = 0, n
		return nil
	}
}

// Unget pushes b back onto the get-buffer so the next Read returns it
// first. It succeeds if there is room before the current read cursor
// or room after the buffered data to shift into; otherwise it fails,
// matching spec.md §4.2's pbackfail-style rule.
func (c *Connection) Unget(b byte) error {
	if c.getPos > 0 {
		c.getPos--
		c.getBuf[c.getPos] = b
		return nil
	}
	if c.getEnd < len(c.getBuf) {
		copy(c.getBuf[1:c.getEnd+1], c.getBuf[:c.getEnd])
		c.getEnd++
		c.getBuf[0] = b
		return nil
	}
	return &SocketError{Reason: "no room to unget a byte"}
}

// Write implements bytestream.Writer. Bytes accumulate in the
// put-buffer; a full buffer triggers an implicit Flush.
func (c *Connection) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := copy(c.putBuf[c.putPos:], p)
		c.putPos += n
		written += n
		p = p[n:]
		if c.putPos == len(c.putBuf) {
			if err := c.Flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush sends any buffered output bytes to the socket, waiting for
// writability first unless the timeout is zero, and retrying partial
// sends until the whole buffer is gone.
func (c *Connection) Flush() error {
	offset := 0
	for offset < c.putPos {
		if c.timeout != 0 {
			if _, err := c.socket.WaitFor(WaitWrite, c.timeout, "response send"); err != nil {
				c.logWaitTimeout("response send", err)
				return err
			}
		}

		n, err := c.socket.Write(c.putBuf[offset:c.putPos])
		if err != nil {
			switch err {
			case unix.EAGAIN, unix.EWOULDBLOCK:
				return &ConnectionTimeout{Purpose: "response send"}
			case unix.ECONNRESET:
				return &ClientDisconnected{}
			case unix.EINTR:
				continue
			default:
				return &SocketError{Reason: "failure to send response: " + err.Error()}
			}
		}
		offset += n
	}
	c.putPos = 0
	return nil
}

// Close flushes any buffered output best-effort, logs a failure if one
// occurs (Close cannot propagate it usefully to most callers), and
// closes the underlying Socket.
func (c *Connection) Close() error {
	if err := c.Flush(); err != nil {
		c.log.Debug("flush during close failed", zap.Error(err))
	}
	return c.socket.Close()
}

// logWaitTimeout reports a readiness wait that ended in a
// ConnectionTimeout. The "deadline" field is the connection's timeout
// counted forward from the moment of logging (not from the start of the
// wait), so a slow-peer investigation can read off how long the caller
// was willing to wait without having to cross-reference the
// connection's timeout setting separately.
func (c *Connection) logWaitTimeout(purpose string, err error) {
	var timeout *ConnectionTimeout
	if !errors.As(err, &timeout) {
		return
	}
	c.log.Debug("wait for readiness timed out",
		zap.String("purpose", purpose),
		zap.Time("deadline", deadlineFromTimeout(c.timeout)),
	)
}
