package export

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const slugSource = 64

// Slugify turns text into a lowercase ASCII file-name fragment: accents are
// folded, every other run of non-alphanumerics becomes one dash
func Slugify(text string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFKD.String(text) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(unicode.ToLower(r))
		default:
			dash = true
		}
	}
	return b.String()
}

// CommitSlug slugifies the first 64 characters of a commit message
func CommitSlug(message string) string {
	r := []rune(message)
	if len(r) > slugSource {
		r = r[:slugSource]
	}
	return Slugify(string(r))
}
