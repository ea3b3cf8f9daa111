package chunk

import (
	"strings"
	"unicode"
)

// SplitSentences splits text at sentence-ending punctuation followed by
// whitespace, and at blank lines. Whitespace inside a sentence is collapsed.
func SplitSentences(text string) []string {
	var out []string
	var cur strings.Builder

	flush := func() {
		s := strings.Join(strings.Fields(cur.String()), " ")
		if s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' && i+1 < len(runes) && isBlankLineAhead(runes[i+1:]) {
			flush()
			continue
		}
		cur.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
			if !isAbbreviation(cur.String()) {
				flush()
			}
		}
	}
	flush()
	return out
}

// isBlankLineAhead reports whether rest starts with optional horizontal
// whitespace followed by a newline.
func isBlankLineAhead(rest []rune) bool {
	for _, r := range rest {
		switch r {
		case ' ', '\t', '\r':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return false
}

// Abbreviations that end with a period without ending the sentence.
var abbreviations = map[string]struct{}{
	"no": {}, "nr": {}, "tgl": {}, "jl": {}, "dr": {}, "mr": {}, "mrs": {}, "ms": {},
	"pt": {}, "cv": {}, "tbk": {}, "sh": {}, "st": {}, "vs": {}, "etc": {}, "e.g": {}, "i.e": {},
}

func isAbbreviation(s string) bool {
	s = strings.TrimSuffix(strings.TrimRightFunc(s, unicode.IsSpace), ".")
	idx := strings.LastIndexFunc(s, unicode.IsSpace)
	word := strings.ToLower(s[idx+1:])
	if word == "" {
		return false
	}
	if _, ok := abbreviations[word]; ok {
		return true
	}
	// Single letters are initials.
	return len([]rune(word)) == 1 && unicode.IsLetter([]rune(word)[0])
}
