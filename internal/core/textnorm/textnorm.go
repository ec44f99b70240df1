// Package textnorm turns raw node text into a form suited for robust
// substring search while keeping a way back to the original positions.
package textnorm

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	softHyphen   = '\u00ad'
	nonBreakable = '\u00a0'
)

// CharPreserving normalizes raw one rune at a time and returns the
// normalized text together with its index map: indexMap[i] is the rune
// index in raw that produced normalized rune i.
//
// No trimming or whitespace collapsing happens here, so offsets found in
// the normalized text can always be translated back through indexMap.
func CharPreserving(raw string) (string, []int) {
	var b strings.Builder
	b.Grow(len(raw))
	indexMap := make([]int, 0, utf8.RuneCountInString(raw))

	i := 0
	for _, r := range raw {
		for _, out := range transform(r) {
			b.WriteRune(out)
			indexMap = append(indexMap, i)
		}
		i++
	}
	return b.String(), indexMap
}

// Loose normalizes a free-floating answer string. It applies the same
// per-rune substitutions as CharPreserving and then trims the result;
// no index map is produced because answer offsets are never mapped back.
func Loose(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		for _, out := range transform(r) {
			b.WriteRune(out)
		}
	}
	return strings.TrimSpace(b.String())
}

// transform maps one input rune to zero or more output runes. It never
// looks at neighbouring runes.
func transform(r rune) []rune {
	switch r {
	case softHyphen, '\r', '\n':
		return nil
	case nonBreakable:
		return []rune{' '}
	}
	if r < utf8.RuneSelf {
		return []rune{r}
	}
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	return []rune(string(norm.NFC.Bytes(buf[:n])))
}
