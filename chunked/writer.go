package chunked

import (
	"errors"
	"strconv"

	"github.com/nilreach/httpshow"
	"github.com/nilreach/httpshow/hdr"
)

// Writer frames every call to Write as one HTTP/1.1 chunk on the
// underlying Response: "hex(size)\r\n<bytes>\r\n", flushed
// immediately. Finish emits the terminating zero-length chunk
// "0\r\n\r\n" and flushes; callers should `defer w.Finish()`.
type Writer struct {
	resp     *httpshow.Response
	owned    bool
	finished bool
}

// NewWriter wraps an existing Response, borrowed from the caller. The
// caller is responsible for having constructed that Response with a
// "Transfer-Encoding: chunked" header and no "Content-Length" header;
// unlike NewResponseWriter, NewWriter does not validate this, matching
// the source's distinction between the owning and borrowing
// constructors.
func NewWriter(resp *httpshow.Response) *Writer {
	return &Writer{resp: resp}
}

// NewResponseWriter constructs its own Response after validating that
// headers carries a "Transfer-Encoding" value of "chunked" and no
// "Content-Length" entry, returning ChunkedError otherwise.
func NewResponseWriter(
	conn *httpshow.Connection,
	protocol httpshow.ProtocolTag,
	code int,
	reason string,
	headers hdr.Header,
) (*Writer, error) {
	if len(headers.Values("Content-Length")) > 0 {
		return nil, &httpshow.ChunkedError{
			Reason: `cannot send "Content-Length" header with a chunked response`,
		}
	}

	hasChunkedEncoding := false
	for _, v := range headers.Values("Transfer-Encoding") {
		if v == "chunked" {
			hasChunkedEncoding = true
			break
		}
	}
	if !hasChunkedEncoding {
		return nil, &httpshow.ChunkedError{
			Reason: `missing "Transfer-Encoding: chunked" header`,
		}
	}

	resp, err := httpshow.NewResponse(conn, protocol, code, reason, headers)
	if err != nil {
		return nil, err
	}
	return &Writer{resp: resp, owned: true}, nil
}

// Write emits p as one chunk and flushes. Zero-length writes are a
// no-op: an empty chunk means end-of-body, which only Finish may send.
func (w *Writer) Write(p []byte) (int, error) {
	if w.finished {
		return 0, errors.New("chunked: write after Finish")
	}
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := w.resp.Write([]byte(strconv.FormatInt(int64(len(p)), 16) + "\r\n")); err != nil {
		return 0, err
	}
	if _, err := w.resp.Write(p); err != nil {
		return 0, err
	}
	if _, err := w.resp.Write([]byte("\r\n")); err != nil {
		return 0, err
	}
	if err := w.resp.Flush(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Finish emits the terminating zero-length chunk and flushes. If this
// Writer owns its Response (built via NewResponseWriter), it also
// finishes that Response. Safe to call more than once or via defer.
func (w *Writer) Finish() error {
	if w.finished {
		return nil
	}
	w.finished = true

	_, writeErr := w.resp.Write([]byte("0\r\n\r\n"))
	flushErr := w.resp.Flush()
	if w.owned {
		_ = w.resp.Finish()
	}
	if writeErr != nil {
		return writeErr
	}
	return flushErr
}
