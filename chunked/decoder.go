// Package chunked implements HTTP/1.1 chunked transfer-encoding on top
// of the Connection/Request/Response types: a request-side Decoder
// that yields one chunk per call to Next, and a response-side Writer
// that frames each write as a chunk and emits the terminating
// zero-length chunk when Finished.
package chunked

import (
	"io"
	"strings"

	"github.com/nilreach/httpshow"
	"github.com/nilreach/httpshow/internal/bytestream"
)

// Decoder reads a chunked request body from src as a sequence of
// chunks. Construct with NewDecoder over a Request's Connection (the
// request's own Read is bound to Content-Length framing, which a
// chunked body doesn't have), then call Next repeatedly until it
// returns io.EOF.
type Decoder struct {
	src  bytestream.Reader
	done bool
}

// NewDecoder returns a Decoder reading chunks from src.
func NewDecoder(src bytestream.Reader) *Decoder {
	return &Decoder{src: src}
}

// Next reads one chunk's size line, its bytes, and the trailing line
// ending, returning the chunk's bytes. A chunk-extension following a
// ';' on the size line is discarded. It returns io.EOF once the
// zero-size terminating chunk has been consumed; calling Next again
// afterward continues to return io.EOF.
func (d *Decoder) Next() ([]byte, error) {
	if d.done {
		return nil, io.EOF
	}

	size, err := readChunkSize(d.src)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		d.done = true
		return nil, io.EOF
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(d.src, buf); err != nil {
		return nil, err
	}

	b, err := readNormalizedByte(d.src)
	if err != nil {
		return nil, err
	}
	if b != '\n' {
		return nil, &httpshow.RequestParseError{Reason: "malformed chunk framing"}
	}
	return buf, nil
}

func readChunkSize(r bytestream.Reader) (uint64, error) {
	var buf []byte
	for {
		b, err := readNormalizedByte(r)
		if err != nil {
			return 0, err
		}
		if b == '\n' {
			break
		}
		buf = append(buf, b)
	}

	line := string(buf)
	if semi := strings.IndexByte(line, ';'); semi != -1 {
		line = line[:semi]
	}
	return parseHexSize(line)
}

// parseHexSize parses a base-16 chunk size, matching std::stoull's
// overflow behavior: a value that needs more than 64 bits is rejected,
// while leading zeros beyond the 16th digit are accepted.
func parseHexSize(s string) (uint64, error) {
	if len(s) == 0 {
		return 0, &httpshow.RequestParseError{Reason: "chunk size is not a base-16 number"}
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		b := s[i]
		var v uint64
		switch {
		case '0' <= b && b <= '9':
			v = uint64(b - '0')
		case 'a' <= b && b <= 'f':
			v = uint64(b-'a') + 10
		case 'A' <= b && b <= 'F':
			v = uint64(b-'A') + 10
		default:
			return 0, &httpshow.RequestParseError{Reason: "chunk size is not a base-16 number"}
		}
		if n>>60 != 0 {
			return 0, &httpshow.RequestParseError{Reason: "chunk size too large"}
		}
		n = n<<4 | v
	}
	return n, nil
}

// readNormalizedByte mirrors the root package's line-ending rule: a
// "\r\n" pair collapses to a single '\n', a lone '\n' passes through,
// and a lone '\r' not followed by '\n' is malformed framing. Kept as
// its own copy so a chunk-framing error reports the chunked package's
// own reasoning rather than reaching into the request parser.
func readNormalizedByte(r bytestream.Reader) (byte, error) {
	b, err := bytestream.ReadByte(r)
	if err != nil {
		return 0, err
	}
	if b != '\r' {
		return b, nil
	}
	next, err := bytestream.ReadByte(r)
	if err != nil {
		return 0, err
	}
	if next != '\n' {
		return 0, &httpshow.RequestParseError{Reason: "malformed chunk framing"}
	}
	return '\n', nil
}
