// Package multipart implements a streaming multipart/form-data
// decoder over any byte-stream source: bodies are presented as a lazy
// sequence of segments, each itself a bounded byte stream with its
// own parsed headers, rather than buffered and parsed up front.
package multipart

import (
	"errors"
	"io"
	"strings"

	"github.com/nilreach/httpshow"
	"github.com/nilreach/httpshow/internal/bytestream"
)

type state int

const (
	stateReady state = iota
	stateBegun
	stateFinished
)

// Multipart decodes a multipart/form-data body read from src,
// delimited by boundary. Construct with New, then call Next
// repeatedly until it returns io.EOF.
type Multipart struct {
	src      bytestream.Reader
	boundary string
	state    state
	current  *Segment
	started  bool
}

// New advances past any preamble on src until the opening boundary
// line is consumed, then returns a Multipart ready for iteration. An
// empty boundary is a caller error, reported directly rather than as
// a MultipartParseError, since it can't result from malformed input.
func New(src bytestream.Reader, boundary string) (*Multipart, error) {
	if boundary == "" {
		return nil, errors.New("multipart: boundary must not be empty")
	}
	m := &Multipart{src: src, boundary: boundary}

	finished, err := m.consumePreamble()
	if err != nil {
		return nil, err
	}
	if finished {
		m.state = stateFinished
	} else {
		m.state = stateBegun
	}
	return m, nil
}

// consumePreamble discards lines until one equal to "--boundary" (the
// opening delimiter) or "--boundary--" (an empty multipart, which may
// also end the stream without a line ending) is found. A line that
// starts with "--boundary" but continues with anything else is reported
// as a malformed boundary rather than discarded.
func (m *Multipart) consumePreamble() (finished bool, err error) {
	target := "--" + m.boundary
	for {
		line, err := readLine(m.src)
		if err != nil {
			if isPrematureEnd(err) {
				if line == target+"--" {
					return true, nil
				}
				return false, &MultipartParseError{Reason: "premature end of multipart data"}
			}
			return false, err
		}
		if !strings.HasPrefix(line, target) {
			continue
		}
		switch line[len(target):] {
		case "":
			return false, nil
		case "--":
			return true, nil
		default:
			return false, &MultipartParseError{Reason: "malformed multipart boundary"}
		}
	}
}

// Next drains any previously returned segment to its own end of
// stream, then parses and returns the next segment's headers. It
// returns io.EOF once the terminating boundary has been seen. Calling
// Next again after io.EOF continues to return io.EOF.
func (m *Multipart) Next() (*Segment, error) {
	if m.current != nil {
		if err := m.current.drain(); err != nil {
			return nil, err
		}
		m.current = nil
	}
	if m.state == stateFinished {
		return nil, io.EOF
	}
	if !m.started {
		m.started = true
	}

	seg, err := newSegment(m)
	if err != nil {
		return nil, err
	}
	m.current = seg
	return seg, nil
}

func readLine(r bytestream.Reader) (string, error) {
	var buf []byte
	for {
		b, err := bytestream.ReadByte(r)
		if err != nil {
			return string(buf), err
		}
		if b == '\n' {
			if n := len(buf); n > 0 && buf[n-1] == '\r' {
				buf = buf[:n-1]
			}
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

func isPrematureEnd(err error) bool {
	return httpshow.IsInterrupted(err) || errors.Is(err, io.EOF)
}
