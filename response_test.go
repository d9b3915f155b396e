package httpshow

import (
	"bytes"
	"testing"

	"github.com/nilreach/httpshow/hdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func readAll(t *testing.T, sock *Socket) string {
	t.Helper()
	var out bytes.Buffer
	buf := make([]byte, 256)
	for {
		n, err := unix.Read(sock.fd, buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err != nil || n == 0 {
			break
		}
		if n < len(buf) {
			break
		}
	}
	return out.String()
}

func TestResponseMixedCaseHeaderCanonicalized(t *testing.T) {
	a, b := newSocketPair(t)
	defer a.Close()
	defer b.Close()

	conn := NewConnectionSize(a, 2, 256)
	headers := hdr.Header{"content-TYPE": {"text/plain"}}
	resp, err := NewResponse(conn, ProtocolHTTP11, 200, "OK", headers)
	require.NoError(t, err)
	require.NoError(t, resp.Finish())

	out := readAll(t, b)
	assert.Contains(t, out, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, out, "Content-Type: text/plain\r\n")
}

func TestResponseHeaderValueWithNewlineFolds(t *testing.T) {
	a, b := newSocketPair(t)
	defer a.Close()
	defer b.Close()

	conn := NewConnectionSize(a, 2, 256)
	headers := hdr.Header{"X": {"a\nb"}}
	resp, err := NewResponse(conn, ProtocolHTTP10, 200, "OK", headers)
	require.NoError(t, err)
	require.NoError(t, resp.Finish())

	out := readAll(t, b)
	assert.Contains(t, out, "X: a\r\n b\r\n")
}

func TestResponseInvalidHeaderName(t *testing.T) {
	a, b := newSocketPair(t)
	defer a.Close()
	defer b.Close()

	conn := NewConnectionSize(a, 2, 256)
	headers := hdr.Header{"Invalid header n*me": {"x"}}
	_, err := NewResponse(conn, ProtocolHTTP10, 200, "OK", headers)
	require.Error(t, err)
	var marshallErr *ResponseMarshallError
	assert.ErrorAs(t, err, &marshallErr)
}

func TestResponseEmptyHeaderValue(t *testing.T) {
	a, b := newSocketPair(t)
	defer a.Close()
	defer b.Close()

	conn := NewConnectionSize(a, 2, 256)
	headers := hdr.Header{"X": {""}}
	_, err := NewResponse(conn, ProtocolHTTP10, 200, "OK", headers)
	require.Error(t, err)
}

func TestResponseBodyForwarded(t *testing.T) {
	a, b := newSocketPair(t)
	defer a.Close()
	defer b.Close()

	conn := NewConnectionSize(a, 2, 256)
	resp, err := NewResponse(conn, ProtocolHTTP11, 200, "OK", hdr.Header{})
	require.NoError(t, err)
	_, err = resp.Write([]byte("body bytes"))
	require.NoError(t, err)
	require.NoError(t, resp.Finish())

	out := readAll(t, b)
	assert.Contains(t, out, "\r\n\r\nbody bytes")
}
