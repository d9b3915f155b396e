// Package hdr implements the header map and canonicalization rule
// shared by Request and Response: a multi-valued, case-insensitive
// string map keyed by a canonical spelling of the field name.
package hdr

// Header represents the key-value pairs of an HTTP header block. Keys
// are stored in canonical form (see CanonicalKey); Add/Set/Get/Del all
// canonicalize their key argument, so the map can be read directly by
// range as long as the canonical spelling is used.
type Header map[string][]string

// isTokenTable is the RFC 7230 token character set: the bytes legal in
// a header field-name. Copied rather than derived, since it's a fixed
// lookup table.
var isTokenTable = [128]bool{
	'0': true, '1': true, '2': true, '3': true, '4': true, '5': true, '6': true, '7': true,
	'8': true, '9': true,

	'a': true, 'b': true, 'c': true, 'd': true, 'e': true, 'f': true, 'g': true, 'h': true,
	'i': true, 'j': true, 'k': true, 'l': true, 'm': true, 'n': true, 'o': true, 'p': true,
	'q': true, 'r': true, 's': true, 't': true, 'u': true, 'v': true, 'w': true, 'x': true,
	'y': true, 'z': true,

	'A': true, 'B': true, 'C': true, 'D': true, 'E': true, 'F': true, 'G': true, 'H': true,
	'I': true, 'J': true, 'K': true, 'L': true, 'M': true, 'N': true, 'O': true, 'P': true,
	'Q': true, 'R': true, 'S': true, 'T': true, 'U': true, 'V': true, 'W': true, 'X': true,
	'Y': true, 'Z': true,

	'!': true, '#': true, '$': true, '%': true, '&': true, '\'': true, '*': true, '+': true,
	'-': true, '.': true, '^': true, '_': true, '`': true, '|': true, '~': true,
}

const toLower = 'a' - 'A'
