package httpshow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newSocketPair returns two connected, non-blocking Unix stream
// sockets wired to each other, standing in for a real TCP connection
// in tests: pselect, read, and write all behave the same as they
// would against a socket Accept produced.
func newSocketPair(t *testing.T) (*Socket, *Socket) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	for _, fd := range fds {
		require.NoError(t, unix.SetNonblock(fd, true))
	}
	return &Socket{fd: fds[0]}, &Socket{fd: fds[1]}
}

func TestConnectionReadSmallerThanBuffer(t *testing.T) {
	a, b := newSocketPair(t)
	conn := NewConnectionSize(a, 2, 64)
	defer conn.Close()
	defer b.Close()

	_, err := unix.Write(b.fd, []byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestConnectionReadAcrossTwoRefills(t *testing.T) {
	a, b := newSocketPair(t)
	conn := NewConnectionSize(a, 2, 64)
	defer conn.Close()
	defer b.Close()

	_, err := unix.Write(b.fd, []byte("ab"))
	require.NoError(t, err)
	buf := make([]byte, 1)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, byte('a'), buf[0])

	n, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, byte('b'), buf[0])
}

func TestConnectionUnget(t *testing.T) {
	a, b := newSocketPair(t)
	conn := NewConnectionSize(a, 2, 64)
	defer conn.Close()
	defer b.Close()

	_, err := unix.Write(b.fd, []byte("x"))
	require.NoError(t, err)

	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, byte('x'), buf[0])

	require.NoError(t, conn.Unget('x'))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, byte('x'), buf[0])
}

func TestConnectionWriteFlush(t *testing.T) {
	a, b := newSocketPair(t)
	conn := NewConnectionSize(a, 2, 64)
	defer conn.Close()
	defer b.Close()

	_, err := conn.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	buf := make([]byte, 7)
	n, err := unix.Read(b.fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))
}

func TestConnectionWriteOverflowsBuffer(t *testing.T) {
	a, b := newSocketPair(t)
	conn := NewConnectionSize(a, 2, 4)
	defer conn.Close()
	defer b.Close()

	_, err := conn.Write([]byte("abcdefgh"))
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	buf := make([]byte, 8)
	n, err := unix.Read(b.fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", string(buf[:n]))
}

func TestConnectionClientDisconnected(t *testing.T) {
	a, b := newSocketPair(t)
	conn := NewConnectionSize(a, 2, 64)
	defer conn.Close()
	require.NoError(t, b.Close())

	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	require.Error(t, err)
	var disconnected *ClientDisconnected
	assert.ErrorAs(t, err, &disconnected)
	assert.True(t, IsInterrupted(err))
}
