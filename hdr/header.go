package hdr

import "io"

// Add appends value to any values already associated with key,
// canonicalizing key first.
func (h Header) Add(key, value string) {
	key = CanonicalKey(key)
	h[key] = append(h[key], value)
}

// Set replaces any existing values for key with the single value
// given.
func (h Header) Set(key, value string) {
	h[CanonicalKey(key)] = []string{value}
}

// Get returns the first value associated with key, or "" if there is
// none. Use the map directly to see every value of a repeated header.
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	v := h[CanonicalKey(key)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Values returns every value associated with key, in the order they
// were added.
func (h Header) Values(key string) []string {
	if h == nil {
		return nil
	}
	return h[CanonicalKey(key)]
}

// Del removes all values associated with key.
func (h Header) Del(key string) {
	delete(h, CanonicalKey(key))
}

// Clone returns a deep copy of h.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	h2 := make(Header, len(h))
	for k, vv := range h {
		vv2 := make([]string, len(vv))
		copy(vv2, vv)
		h2[k] = vv2
	}
	return h2
}

// Write serializes h in wire format: "Key: value\r\n" per value. Keys
// are written in map iteration order, which is unspecified and may
// differ from one call to the next; the values of one key keep their
// order.
// Embedded CR/LF bytes in a value are folded per FoldContinuation
// rather than rejected, matching the response marshaller's leniency.
func (h Header) Write(w io.Writer) error {
	for key, values := range h {
		for _, v := range values {
			v = FoldContinuation(v)
			if _, err := io.WriteString(w, key); err != nil {
				return err
			}
			if _, err := io.WriteString(w, ": "); err != nil {
				return err
			}
			if _, err := io.WriteString(w, v); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\r\n"); err != nil {
				return err
			}
		}
	}
	return nil
}
