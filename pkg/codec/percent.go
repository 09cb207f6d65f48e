package codec

import (
	"net/url"
	"strings"
)

const upperHex = "0123456789ABCDEF"

// PercentEncode escapes s the way JavaScript's encodeURIComponent does:
// every UTF-8 byte outside A-Z a-z 0-9 - _ . ! ~ * ' ( ) becomes %XX.
func PercentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String()
}

// PercentDecode reverses PercentEncode. '+' is kept literal.
func PercentDecode(s string) (string, error) {
	return url.PathUnescape(s)
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
