package multipart

import (
	"bytes"
	"io"

	"github.com/nilreach/httpshow/hdr"
	"github.com/nilreach/httpshow/internal/bytestream"
)

// Segment is one part of a multipart body: its own parsed headers and
// a byte stream bounded by the next boundary occurrence. A Segment is
// only valid until the next call to Multipart.Next.
type Segment struct {
	parent   *Multipart
	Headers  hdr.Header
	finished bool
	carry    []byte
	delim    []byte
}

func newSegment(m *Multipart) (*Segment, error) {
	headers, err := parseSegmentHeaders(m.src)
	if err != nil {
		return nil, err
	}
	return &Segment{
		parent:  m,
		Headers: headers,
		delim:   []byte("\r\n--" + m.boundary),
	}, nil
}

// Read implements io.Reader. It yields body bytes up to (but not
// including) the boundary delimiter, returning io.EOF once the
// delimiter has been observed and classified.
func (s *Segment) Read(p []byte) (int, error) {
	if s.finished {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	for len(s.carry) < len(s.delim) {
		b, err := bytestream.ReadByte(s.parent.src)
		if err != nil {
			if isPrematureEnd(err) {
				return 0, &MultipartParseError{Reason: "premature end of multipart data"}
			}
			return 0, err
		}
		s.carry = append(s.carry, b)
	}

	if bytes.Equal(s.carry[:len(s.delim)], s.delim) {
		s.carry = s.carry[len(s.delim):]
		return 0, s.consumeBoundaryTrailer()
	}

	p[0] = s.carry[0]
	s.carry = s.carry[1:]
	return 1, nil
}

// consumeBoundaryTrailer reads the bytes immediately following the
// delimiter to decide whether the multipart ends here ("--"), another
// segment follows ("\r\n" or a bare "\n"), or the framing is broken.
func (s *Segment) consumeBoundaryTrailer() error {
	b1, err := bytestream.ReadByte(s.parent.src)
	if err != nil {
		if isPrematureEnd(err) {
			return &MultipartParseError{Reason: "premature end of multipart data"}
		}
		return err
	}

	switch b1 {
	case '-':
		b2, err := bytestream.ReadByte(s.parent.src)
		if err != nil {
			if isPrematureEnd(err) {
				return &MultipartParseError{Reason: "premature end of multipart data"}
			}
			return err
		}
		if b2 != '-' {
			return &MultipartParseError{Reason: "malformed multipart boundary"}
		}
		s.finished = true
		s.parent.state = stateFinished
		return io.EOF
	case '\r':
		b2, err := bytestream.ReadByte(s.parent.src)
		if err != nil {
			if isPrematureEnd(err) {
				return &MultipartParseError{Reason: "premature end of multipart data"}
			}
			return err
		}
		if b2 != '\n' {
			return &MultipartParseError{Reason: "malformed multipart boundary"}
		}
		s.finished = true
		return io.EOF
	case '\n':
		s.finished = true
		return io.EOF
	default:
		return &MultipartParseError{Reason: "malformed multipart boundary"}
	}
}

// drain reads the segment to its own end of stream, discarding bytes,
// so the parent Multipart can parse the next segment's headers.
func (s *Segment) drain() error {
	var buf [512]byte
	for {
		_, err := s.Read(buf[:])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// parseSegmentHeaders parses a header block using the same grammar as
// the request parser (states 5-7 of §4.4), independently implemented
// here so a malformed segment header reports MultipartParseError
// rather than RequestParseError.
func parseSegmentHeaders(r bytestream.Reader) (hdr.Header, error) {
	h := hdr.Header{}
	for {
		name, end, err := parseHeaderName(r)
		if err != nil {
			return nil, err
		}
		if end {
			return h, nil
		}

		emptyValue, err := parseHeaderPadding(r)
		if err != nil {
			return nil, err
		}
		value := ""
		if !emptyValue {
			value, err = parseHeaderValue(r)
			if err != nil {
				return nil, err
			}
		}
		h.Add(name, value)
	}
}

func parseHeaderName(r bytestream.Reader) (name string, end bool, err error) {
	var buf []byte
	for {
		b, err := readNormalizedByte(r)
		if err != nil {
			return "", false, err
		}
		switch {
		case b == ':':
			return string(buf), false, nil
		case b == '\n':
			if len(buf) == 0 {
				return "", true, nil
			}
			return "", false, &MultipartParseError{Reason: "malformed header"}
		case isHeaderNameByte(b):
			buf = append(buf, b)
		default:
			return "", false, &MultipartParseError{Reason: "malformed header"}
		}
	}
}

func parseHeaderPadding(r bytestream.Reader) (bool, error) {
	sawSpace := false
	for {
		b, err := bytestream.ReadByte(r)
		if err != nil {
			return false, err
		}
		switch {
		case b == ' ' || b == '\t':
			sawSpace = true
		case b == '\n':
			return true, nil
		default:
			if !sawSpace {
				return false, &MultipartParseError{Reason: "malformed header"}
			}
			if err := r.Unget(b); err != nil {
				return false, err
			}
			return false, nil
		}
	}
}

func parseHeaderValue(r bytestream.Reader) (string, error) {
	var buf []byte
	for {
		b, err := readNormalizedByte(r)
		if err != nil {
			return "", err
		}
		if b != '\n' {
			buf = append(buf, b)
			continue
		}

		next, err := bytestream.ReadByte(r)
		if err != nil {
			return "", err
		}
		if next != ' ' && next != '\t' {
			if err := r.Unget(next); err != nil {
				return "", err
			}
			return string(buf), nil
		}

		buf = append(buf, ' ')
		for {
			b2, err := bytestream.ReadByte(r)
			if err != nil {
				return "", err
			}
			if b2 == ' ' || b2 == '\t' {
				continue
			}
			if err := r.Unget(b2); err != nil {
				return "", err
			}
			break
		}
	}
}

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
		return 0, &MultipartParseError{Reason: "malformed HTTP line ending"}
	}
	return '\n', nil
}

func isHeaderNameByte(b byte) bool {
	return 'A' <= b && b <= 'Z' || 'a' <= b && b <= 'z' || '0' <= b && b <= '9' || b == '-'
}
