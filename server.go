package httpshow

import "go.uber.org/zap"

// Server owns a listening Socket and a default timeout. Each call to
// Accept waits at most that timeout for a connection, then returns a
// Connection carrying the same timeout.
type Server struct {
	socket  *Socket
	timeout int
	log     *zap.Logger
}

// NewServer creates a listening Socket bound to address:port (see
// NewServerSocket for the accepted address forms) and wraps it in a
// Server with the given default timeout.
func NewServer(address string, port int, timeout int) (*Server, error) {
	socket, err := NewServerSocket(address, port)
	if err != nil {
		return nil, err
	}
	return &Server{socket: socket, timeout: timeout, log: zap.NewNop()}, nil
}

// SetLogger attaches a structured logger, propagated to Connections
// produced by Accept.
func (s *Server) SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	s.log = log
}

// Timeout returns the Server's current default timeout.
func (s *Server) Timeout() int { return s.timeout }

// SetTimeout changes the default timeout applied to future Accept
// calls and the Connections they produce.
func (s *Server) SetTimeout(seconds int) { s.timeout = seconds }

// Socket returns the Server's listening Socket, for address
// introspection.
func (s *Server) Socket() *Socket { return s.socket }

// Accept waits for an incoming connection (unless the timeout is
// zero, in which case it tries the syscall once directly), then
// returns a Connection wrapping it with the Server's current timeout.
func (s *Server) Accept() (*Connection, error) {
	if s.timeout != 0 {
		if _, err := s.socket.WaitFor(WaitRead, s.timeout, "listen"); err != nil {
			return nil, err
		}
	}
	accepted, err := s.socket.Accept()
	if err != nil {
		return nil, err
	}
	conn := NewConnection(accepted, s.timeout)
	conn.SetLogger(s.log)
	return conn, nil
}

// Close closes the listening Socket. It does not affect Connections
// already produced by Accept.
func (s *Server) Close() error {
	return s.socket.Close()
}
