package httpshow

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// WaitFlags selects which directions Socket.WaitFor should watch for
// readiness, and is also used to report which directions turned out
// to be ready.
type WaitFlags uint8

const (
	WaitRead WaitFlags = 1 << iota
	WaitWrite
)

func (f WaitFlags) has(bit WaitFlags) bool { return f&bit != 0 }

const listenBacklog = 128

// invalidFD marks a Socket as uninitialised or moved-from, the way the
// original C++ source's socket_fd defaults to an unopened descriptor.
const invalidFD = -1

// Socket owns exactly one OS file descriptor: a non-blocking TCP
// socket created by one of the factory functions below, or produced by
// Accept. Socket is move-only in spirit — copying the struct value
// does not duplicate the descriptor, so callers should pass *Socket.
type Socket struct {
	fd int

	localAddr  string
	localPort  int
	remoteAddr string
	remotePort int
}

// NewServerSocket creates a non-blocking IPv6 TCP socket with
// SO_REUSEADDR and SO_REUSEPORT set, bound to address:port and
// listening with a small backlog. IPv4 addresses are accepted and
// bound as IPv4-mapped IPv6. address == "*" or anything inet_pton
// cannot parse is rejected.
func NewServerSocket(address string, port int) (*Socket, error) {
	ip, err := parseBindAddress(address)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return nil, &SocketError{Reason: "failed to create listen socket: " + err.Error()}
	}
	s := &Socket{fd: fd}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		s.Close()
		return nil, &SocketError{Reason: "failed to set listen socket address reuse: " + err.Error()}
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		s.Close()
		return nil, &SocketError{Reason: "failed to set listen socket port reuse: " + err.Error()}
	}

	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	if err := unix.Bind(fd, sa); err != nil {
		s.Close()
		return nil, &SocketError{Reason: "failed to bind listen socket: " + err.Error()}
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		s.Close()
		return nil, &SocketError{Reason: "could not listen on socket: " + err.Error()}
	}

	s.localAddr, s.localPort = addrFromSockaddr(mustGetsockname(fd))
	return s, nil
}

// NewClientSocket creates a non-blocking IPv6 TCP socket, optionally
// binds it to clientPort on the local side, then connects it to
// serverAddress:serverPort. clientPort == 0 skips the local bind.
func NewClientSocket(serverAddress string, serverPort int, clientPort int) (*Socket, error) {
	ip, err := parseBindAddress(serverAddress)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return nil, &SocketError{Reason: "failed to create client socket: " + err.Error()}
	}
	s := &Socket{fd: fd}

	if clientPort != 0 {
		local := &unix.SockaddrInet6{Port: clientPort}
		if err := unix.Bind(fd, local); err != nil {
			s.Close()
			return nil, &SocketError{Reason: "failed to bind client socket: " + err.Error()}
		}
	}

	remote := &unix.SockaddrInet6{Port: serverPort}
	copy(remote.Addr[:], ip.To16())
	if err := unix.Connect(fd, remote); err != nil && err != unix.EINPROGRESS {
		s.Close()
		return nil, &SocketError{Reason: "failed to connect client socket: " + err.Error()}
	}

	s.localAddr, s.localPort = addrFromSockaddr(mustGetsockname(fd))
	s.remoteAddr, s.remotePort = serverAddress, serverPort
	return s, nil
}

// NewSocketFromFD wraps an already-open, non-blocking file descriptor
// as a Socket. Intended for embedders that accept connections through
// some other mechanism (a pre-existing listener, a test double) and
// want to hand them to a Connection or Server without going through
// NewServerSocket/NewClientSocket.
func NewSocketFromFD(fd int) *Socket {
	return &Socket{fd: fd}
}

// Accept returns a new Socket for the next incoming connection.
// Accept never blocks; callers that want to wait for a connection to
// arrive should call WaitFor(WaitRead, …) first.
func (s *Socket) Accept() (*Socket, error) {
	fd, sa, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, &ConnectionTimeout{Purpose: "accept"}
		}
		return nil, &SocketError{Reason: "failed to accept connection: " + err.Error()}
	}

	accepted := &Socket{fd: fd}
	accepted.remoteAddr, accepted.remotePort = addrFromSockaddr(sa, nil)
	accepted.localAddr, accepted.localPort = addrFromSockaddr(mustGetsockname(fd))
	return accepted, nil
}

// WaitFor blocks until the descriptor is readable, writable, or both
// (per flags), or until timeoutSeconds elapses. timeoutSeconds == 0 is
// rejected: a zero timeout must be handled by the caller as a direct,
// non-waiting syscall attempt. The returned flags report which of
// read/write turned out ready; at least one bit is always set on a
// non-error, non-timeout return.
func (s *Socket) WaitFor(flags WaitFlags, timeoutSeconds int, purpose string) (WaitFlags, error) {
	if timeoutSeconds == 0 {
		return 0, &SocketError{Reason: "0-second timeouts can't be handled by WaitFor"}
	}

	var readSet, writeSet *unix.FdSet
	if flags.has(WaitRead) {
		readSet = &unix.FdSet{}
		fdSet(readSet, s.fd)
	}
	if flags.has(WaitWrite) {
		writeSet = &unix.FdSet{}
		fdSet(writeSet, s.fd)
	}

	var ts *unix.Timespec
	if timeoutSeconds > 0 {
		ts = &unix.Timespec{Sec: int64(timeoutSeconds)}
	}

	n, err := unix.Pselect(s.fd+1, readSet, writeSet, nil, ts, nil)
	if err != nil {
		return 0, &SocketError{Reason: "failure to select on " + purpose + ": " + err.Error()}
	}
	if n == 0 {
		return 0, &ConnectionTimeout{Purpose: purpose}
	}

	var ready WaitFlags
	if flags.has(WaitRead) && fdIsSet(readSet, s.fd) {
		ready |= WaitRead
	}
	if flags.has(WaitWrite) && fdIsSet(writeSet, s.fd) {
		ready |= WaitWrite
	}
	return ready, nil
}

// Read and Write perform one raw, non-blocking syscall each — they do
// not wait for readiness themselves; Connection is responsible for
// calling WaitFor first.
func (s *Socket) Read(p []byte) (int, error)  { return unix.Read(s.fd, p) }
func (s *Socket) Write(p []byte) (int, error) { return unix.Write(s.fd, p) }

// Close closes the descriptor if it is open. Close is idempotent.
func (s *Socket) Close() error {
	if s.fd == invalidFD {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = invalidFD
	return err
}

// LocalAddr and LocalPort report the address show bound or connected
// from. RemoteAddr/RemotePort are empty/zero for a listening socket.
func (s *Socket) LocalAddr() string  { return s.localAddr }
func (s *Socket) LocalPort() int     { return s.localPort }
func (s *Socket) RemoteAddr() string { return s.remoteAddr }
func (s *Socket) RemotePort() int    { return s.remotePort }

func parseBindAddress(address string) (net.IP, error) {
	if address == "" {
		return net.IPv6zero, nil
	}
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, &SocketError{Reason: fmt.Sprintf("%s is not a valid IP address", address)}
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.To16(), nil
	}
	return ip.To16(), nil
}

func mustGetsockname(fd int) unix.Sockaddr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil
	}
	return sa
}

// addrFromSockaddr converts a kernel sockaddr to its printable form,
// attempting IPv4 first (for IPv4-mapped IPv6 peers) and falling back
// to IPv6, per spec.md §4.1's address introspection rule. A second
// sockaddr may be passed (used by Accept, which only has sa for the
// fd it just created, not the listening one); nil is ignored.
func addrFromSockaddr(sas ...unix.Sockaddr) (string, int) {
	for _, sa := range sas {
		switch v := sa.(type) {
		case *unix.SockaddrInet4:
			return net.IP(v.Addr[:]).String(), v.Port
		case *unix.SockaddrInet6:
			ip := net.IP(v.Addr[:])
			if v4 := ip.To4(); v4 != nil {
				return v4.String(), v.Port
			}
			return ip.String(), v.Port
		}
	}
	return "", 0
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	if set == nil {
		return false
	}
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

// deadlineFromTimeout is a convenience used by callers that want to
// express a Socket timeout as a time.Time deadline for logging.
func deadlineFromTimeout(timeoutSeconds int) time.Time {
	if timeoutSeconds < 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
}
