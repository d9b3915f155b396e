package urlcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{
		"hello world",
		"a/b?c=d&e=f",
		"100% done",
		"unreserved-._~ABC123",
		"",
	}
	for _, s := range cases {
		enc := Encode(s, true)
		dec, err := Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, s, dec, "round trip for %q via %q", s, enc)
	}
}

func TestEncodePlusSpace(t *testing.T) {
	assert.Equal(t, "a+b", Encode("a b", true))
	assert.Equal(t, "a%20b", Encode("a b", false))
}

func TestEncodeUppercaseHex(t *testing.T) {
	assert.Equal(t, "%2F", Encode("/", false))
}

func TestDecodePlusToSpace(t *testing.T) {
	out, err := Decode("a+b")
	require.NoError(t, err)
	assert.Equal(t, "a b", out)
}

func TestDecodeLowercaseHex(t *testing.T) {
	out, err := Decode("%2f")
	require.NoError(t, err)
	assert.Equal(t, "/", out)
}

func TestDecodeIncompleteEscape(t *testing.T) {
	_, err := Decode("abc%2")
	require.Error(t, err)
	var decErr *UrlDecodeError
	assert.ErrorAs(t, err, &decErr)
}

func TestDecodeInvalidHex(t *testing.T) {
	_, err := Decode("abc%zz")
	require.Error(t, err)
}
