// Package slug derives human-readable identifiers from titles.
package slug

import (
	"crypto/rand"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxBaseLen  = 60
	tokenLen    = 6
	tokenChars  = "abcdefghijklmnopqrstuvwxyz0123456789"
	fallbackKey = "konten"
)

// Make lower-cases s, strips diacritics and joins alphanumeric runs with "-".
func Make(s string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		s,
	)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingDash := false
	n := 0
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			needDash := pendingDash && b.Len() > 0
			width := 1
			if needDash {
				width = 2
			}
			if n+width > maxBaseLen {
				break
			}
			if needDash {
				b.WriteByte('-')
				n++
			}
			b.WriteRune(r)
			n++
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	return strings.TrimRight(b.String(), "-")
}

// NewID returns Make(title) followed by a random token, e.g. "kuis-pecahan-x7k2q9".
// The result is assigned once at creation and never recomputed.
func NewID(title string) string {
	base := Make(title)
	if base == "" {
		base = fallbackKey
	}
	return base + "-" + Token(tokenLen)
}

// Token returns n random characters from [a-z0-9].
func Token(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("slug: crypto/rand unavailable: " + err.Error())
	}
	for i, v := range buf {
		buf[i] = tokenChars[int(v)%len(tokenChars)]
	}
	return string(buf)
}
