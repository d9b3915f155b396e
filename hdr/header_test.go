package hdr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalKey(t *testing.T) {
	cases := map[string]string{
		"content-type":    "Content-Type",
		"CONTENT-LENGTH":  "Content-Length",
		"x-forwarded-for": "X-Forwarded-For",
		"etag":            "Etag",
		"a1-b2":           "A1-B2",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalKey(in), "input %q", in)
	}
}

func TestCanonicalKeyNonToken(t *testing.T) {
	assert.Equal(t, "has space", CanonicalKey("has space"))
}

func TestHeaderAddGetDel(t *testing.T) {
	h := Header{}
	h.Add("x-custom", "one")
	h.Add("X-Custom", "two")
	assert.Equal(t, []string{"one", "two"}, h.Values("X-Custom"))
	assert.Equal(t, "one", h.Get("x-custom"))

	h.Set("x-custom", "reset")
	assert.Equal(t, []string{"reset"}, h.Values("X-Custom"))

	h.Del("X-CUSTOM")
	assert.Empty(t, h.Values("x-custom"))
}

func TestHeaderClone(t *testing.T) {
	h := Header{"A": {"1", "2"}}
	c := h.Clone()
	c["A"][0] = "changed"
	assert.Equal(t, "1", h["A"][0])
}

func TestHeaderWrite(t *testing.T) {
	h := Header{}
	h.Set("Content-Type", "text/plain")
	var buf strings.Builder
	require.NoError(t, h.Write(&buf))
	assert.Equal(t, "Content-Type: text/plain\r\n", buf.String())
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("Content-Type"))
	assert.True(t, ValidName("X-1"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName("bad name"))
	assert.False(t, ValidName("bad:name"))
}

func TestFoldContinuation(t *testing.T) {
	assert.Equal(t, "plain", FoldContinuation("plain"))
	assert.Equal(t, "a\r\n b", FoldContinuation("a\nb"))
	assert.Equal(t, "a\r\n b", FoldContinuation("a\r\nb"))
	assert.Equal(t, "a\r\n b\r\n c", FoldContinuation("a\nb\rc"))
}

func TestFoldContinuationCollapsesConsecutiveNewlines(t *testing.T) {
	assert.Equal(t, "a\r\n b", FoldContinuation("a\n\nb"))
	assert.Equal(t, "a\r\n b", FoldContinuation("a\r\n\r\nb"))
	assert.Equal(t, "a\r\n b", FoldContinuation("a\r\r\n\nb"))
}
