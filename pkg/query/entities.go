package query

import (
	"regexp"
	"slices"
	"unicode"
	"unicode/utf8"
)

// entityRe is anchored; the word boundary before the match is checked by
// hand because RE2 boundaries are ASCII only.
var entityRe = regexp.MustCompile(`^[A-ZÉÈÂÀÄ][\p{L}\p{M}\p{N}_’\-]{2,}`)

// CapitalizedEntityExtractor treats every word of at least three characters
// starting with an uppercase letter (accented A and E included) as an
// entity. It stands in for a real NER component.
type CapitalizedEntityExtractor struct{}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// Extract returns the distinct matches in sorted order. Matches are taken
// left to right and do not overlap, so Sidi-Maarouf yields one entity.
func (CapitalizedEntityExtractor) Extract(texts []string) []string {
	set := map[string]struct{}{}
	for _, text := range texts {
		prev := ' '
		for i := 0; i < len(text); {
			if !isWordRune(prev) {
				if m := entityRe.FindString(text[i:]); m != "" {
					set[m] = struct{}{}
					prev, _ = utf8.DecodeLastRuneInString(m)
					i += len(m)
					continue
				}
			}
			r, size := utf8.DecodeRuneInString(text[i:])
			prev = r
			i += size
		}
	}
	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}
