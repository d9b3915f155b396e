package hdr

// CanonicalKey canonicalizes a header field name: the first byte and
// any byte immediately following a '-' are uppercased, other letters
// are lowercased, and digits are left alone but still reset the
// "next byte should be uppercased" flag. A key that is empty or holds a
// byte outside the RFC 7230 token set (isTokenTable) is returned
// unchanged; token bytes other than letters, digits and '-' (such as
// '_' or '.') are kept as they are while the letters around them are
// still recased. Callers doing request/response validation should
// reject names outside [A-Za-z0-9-] outright via ValidName; Header
// itself is lenient so foreign-cased map keys still round-trip.
func CanonicalKey(key string) string {
	if !looksLikeToken(key) {
		return key
	}
	a := []byte(key)
	upper := true
	for i, c := range a {
		switch {
		case upper && 'a' <= c && c <= 'z':
			c -= toLower
		case !upper && 'A' <= c && c <= 'Z':
			c += toLower
		}
		a[i] = c
		upper = c == '-'
	}
	return string(a)
}

func looksLikeToken(key string) bool {
	for i := 0; i < len(key); i++ {
		if int(key[i]) >= len(isTokenTable) || !isTokenTable[key[i]] {
			return false
		}
	}
	return len(key) > 0
}

// ValidName reports whether name is non-empty and built only from
// letters, digits, and '-', per the response header-name grammar.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLetter := 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z'
		isDigit := '0' <= c && c <= '9'
		if !isLetter && !isDigit && c != '-' {
			return false
		}
	}
	return true
}

// FoldContinuation returns value with every run of one or more '\r'/'\n'
// bytes collapsed into a single "\r\n " continuation (the CRLF plus one
// indenting space) inserted just before the next non-line byte, as
// emitted by the Response marshaller so embedded newlines can't be
// used to inject extra header lines. A pending fold is tracked with a
// single boolean, set on any '\r'/'\n' byte and cleared (emitting
// exactly one marker) on the next byte that isn't one — so two or more
// consecutive embedded newlines still produce only one "\r\n ", not
// one per newline byte.
func FoldContinuation(value string) string {
	hasNewline := false
	for i := 0; i < len(value); i++ {
		if value[i] == '\r' || value[i] == '\n' {
			hasNewline = true
			break
		}
	}
	if !hasNewline {
		return value
	}

	out := make([]byte, 0, len(value)+8)
	insertNewline := false
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '\r' || c == '\n' {
			insertNewline = true
			continue
		}
		if insertNewline {
			out = append(out, '\r', '\n', ' ')
			insertNewline = false
		}
		out = append(out, c)
	}
	return string(out)
}
