package multipart

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stringReader adapts a strings.Reader to bytestream.Reader for tests;
// Unget pushes a byte back onto a small prefix buffer.
type stringReader struct {
	r    *strings.Reader
	back []byte
}

func newStringReader(s string) *stringReader {
	return &stringReader{r: strings.NewReader(s)}
}

func (s *stringReader) Read(p []byte) (int, error) {
	if len(s.back) > 0 {
		n := copy(p, s.back)
		s.back = s.back[n:]
		return n, nil
	}
	return s.r.Read(p)
}

func (s *stringReader) Unget(b byte) error {
	s.back = append([]byte{b}, s.back...)
	return nil
}

func TestMultipartTwoSegments(t *testing.T) {
	body := "--AaB03x\r\n\r\nhello world\r\n--AaB03x\r\n\r\nfoo bar\r\n--AaB03x--"
	m, err := New(newStringReader(body), "AaB03x")
	require.NoError(t, err)

	seg1, err := m.Next()
	require.NoError(t, err)
	require.Empty(t, seg1.Headers)
	data1, err := io.ReadAll(seg1)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data1))

	seg2, err := m.Next()
	require.NoError(t, err)
	require.Empty(t, seg2.Headers)
	data2, err := io.ReadAll(seg2)
	require.NoError(t, err)
	assert.Equal(t, "foo bar", string(data2))

	_, err = m.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMultipartSegmentHeaders(t *testing.T) {
	body := "--B\r\nContent-Type: text/plain\r\n\r\ndata\r\n--B--"
	m, err := New(newStringReader(body), "B")
	require.NoError(t, err)

	seg, err := m.Next()
	require.NoError(t, err)
	assert.Equal(t, "text/plain", seg.Headers.Get("Content-Type"))
	data, err := io.ReadAll(seg)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestMultipartEmptyNoSegments(t *testing.T) {
	body := "--B--"
	m, err := New(newStringReader(body), "B")
	require.NoError(t, err)
	_, err = m.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMultipartEmptyBoundaryRejected(t *testing.T) {
	_, err := New(newStringReader("anything"), "")
	require.Error(t, err)
}

func TestMultipartPrematureEnd(t *testing.T) {
	body := "--B\r\n\r\nhello"
	m, err := New(newStringReader(body), "B")
	require.NoError(t, err)
	seg, err := m.Next()
	require.NoError(t, err)
	_, err = io.ReadAll(seg)
	require.Error(t, err)
	var parseErr *MultipartParseError
	assert.True(t, errors.As(err, &parseErr))
}
