package http

import "strings"

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// URLDecodePlus decodes an urlencoded string, including the '+' form of
// space. Malformed escapes decode best-effort instead of failing: a
// partial decode of untrusted input beats rejecting the whole request.
func URLDecodePlus(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	if !strings.Contains(s, "%") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	parts := strings.Split(s, "%")
	b.WriteString(parts[0])
	for _, part := range parts[1:] {
		if len(part) >= 2 {
			hi, ok1 := hexDigit(part[0])
			lo, ok2 := hexDigit(part[1])
			if ok1 && ok2 {
				b.WriteByte(hi<<4 | lo)
				b.WriteString(part[2:])
				continue
			}
		}
		if part == "" {
			b.WriteByte('%')
			continue
		}
		b.WriteString(part)
	}
	return b.String()
}

// ParseQuery splits an urlencoded string into a key/value map,
// percent-decoding both keys and values. A pair without '=' maps to the
// empty string.
func ParseQuery(s string) map[string]string {
	res := make(map[string]string)
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		if eq := strings.IndexByte(pair, '='); eq != -1 {
			res[URLDecodePlus(pair[:eq])] = URLDecodePlus(pair[eq+1:])
		} else {
			res[URLDecodePlus(pair)] = ""
		}
	}
	return res
}
