// Package urlcodec implements the percent-encoding used by the
// request parser to decode path segments and query arguments. It is a
// deliberately narrow replacement for a full net/url clone: the
// request grammar only ever needs encode/decode of opaque byte
// strings, never URL parsing, so that's all this package offers.
package urlcodec

import "strings"

// UrlDecodeError reports malformed percent-encoding: an incomplete
// "%" escape or a non-hex digit following it.
type UrlDecodeError struct {
	Reason string
}

func (e *UrlDecodeError) Error() string { return "URL decode error: " + e.Reason }

func isUnreserved(b byte) bool {
	switch {
	case 'A' <= b && b <= 'Z', 'a' <= b && b <= 'z', '0' <= b && b <= '9':
		return true
	case b == '-' || b == '_' || b == '.' || b == '~':
		return true
	}
	return false
}

const upperhex = "0123456789ABCDEF"

// Encode percent-encodes s. Unreserved bytes pass through unchanged; a
// space becomes '+' when plusSpace is true, otherwise "%20"; every
// other byte becomes "%HH" with uppercase hex digits. Encode never
// fails.
func Encode(s string, plusSpace bool) string {
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case isUnreserved(b):
			out.WriteByte(b)
		case b == ' ' && plusSpace:
			out.WriteByte('+')
		default:
			out.WriteByte('%')
			out.WriteByte(upperhex[b>>4])
			out.WriteByte(upperhex[b&0x0f])
		}
	}
	return out.String()
}

// Decode reverses Encode (and also accepts lowercase hex digits, since
// not every client that produces percent-encoding uppercases them).
// '+' decodes to a space; every other byte passes through unchanged.
// An incomplete "%" escape or a non-hex digit following "%" fails with
// UrlDecodeError.
func Decode(s string) (string, error) {
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '+':
			out.WriteByte(' ')
		case '%':
			if i+2 >= len(s) {
				return "", &UrlDecodeError{Reason: "incomplete percent-encoding escape"}
			}
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if !ok1 || !ok2 {
				return "", &UrlDecodeError{Reason: "invalid hex digit in percent-encoding escape"}
			}
			out.WriteByte(hi<<4 | lo)
			i += 2
		default:
			out.WriteByte(s[i])
		}
	}
	return out.String(), nil
}

func unhex(b byte) (byte, bool) {
	switch {
	case '0' <= b && b <= '9':
		return b - '0', true
	case 'a' <= b && b <= 'f':
		return b - 'a' + 10, true
	case 'A' <= b && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
