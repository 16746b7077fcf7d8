package entry

import "strings"

const upperhex = "0123456789ABCDEF"

// shouldEscape reports whether b must be percent-escaped when carrying an
// arbitrary password byte string across the wire (spec.md §4.6, §7
// round-trip law). Unlike net/url's QueryEscape, this keeps the escaping
// rule independent of any particular URL component so a literal '%' in the
// input always round-trips.
func shouldEscape(b byte) bool {
	switch {
	case 'A' <= b && b <= 'Z', 'a' <= b && b <= 'z', '0' <= b && b <= '9':
		return false
	case b == '-' || b == '_' || b == '.' || b == '~':
		return false
	default:
		return true
	}
}

// PercentEncode encodes s so that every byte outside the unreserved set is
// replaced by %XX. It is used by the PAM adapter simulation to encode a
// password before sending it to the daemon (spec.md §4.6) and round-trips
// exactly with PercentDecode.
func PercentEncode(s string) string {
	var needsEscape bool
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// PercentDecode reverses PercentEncode. Malformed escapes are passed
// through verbatim rather than causing an error, since the decoder's job
// here is to recover a password byte string, not to validate a URL.
func PercentDecode(s string) string {
	if !strings.ContainsRune(s, '%') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && ishex(s[i+1]) && ishex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		} else {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func ishex(c byte) bool {
	switch {
	case '0' <= c && c <= '9', 'a' <= c && c <= 'f', 'A' <= c && c <= 'F':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
