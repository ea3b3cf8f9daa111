package search

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Trigger phrases per question kind, matched as lowercase substrings. The
// Indonesian phrases come from the lease agreements the tool was first
// built for.
var (
	summaryTriggers = []string{
		"rangkum", "rangkuman", "ringkasan", "kesimpulan", "intisari",
		"summary", "summarize", "summarise", "overview",
	}
	dateTriggers = []string{
		"tanggal penting", "tanggal", "kapan", "ditandatangani",
		"what date", "which date", "when was", "when is", "signed on",
	}
	locationTriggers = []string{
		"luas lahan", "luas properti", "dimana lokasi", "lokasi properti", "berapa luas",
		"land area", "property location", "where is the property", "how large",
	}
	// A location question that mentions encroachment is never about the
	// main property.
	encroachmentMarkers  = []string{"rambah", "encroach"}
	encroachmentTriggers = []string{
		"area rambah", "lahan rambah", "lokasi rambah", "luas rambah",
		"encroached area", "encroached land", "encroachment",
	}
	sectionPattern = regexp.MustCompile(`(?i)\b(?:pasal|article|section)\s+(\d+)`)
)

// EntityDetector finds the document a question is about.
type EntityDetector interface {
	// Detect returns the matching id from knownIDs, or "".
	Detect(question string, knownIDs []string) string
}

// NameDetector matches document ids, with or without their file extension,
// as case-insensitive whole words of the question. The longest match wins.
// Without a whole-word match, a question word within a small edit distance
// of an id (a misspelt owner name) selects it.
type NameDetector struct{}

const (
	// minStemLen is the shortest extension-less id matched on its own.
	// Shorter stems such as "a" from "a.pdf" are ordinary words.
	minStemLen = 3
	// minFuzzyLen is the shortest name matched approximately.
	minFuzzyLen = 4
	// A fuzzy match needs at least 80% of the longer word unchanged.
	fuzzyNum, fuzzyDen = 1, 5
)

// Detect implements EntityDetector.
func (NameDetector) Detect(question string, knownIDs []string) string {
	q := strings.ToLower(question)
	best, bestLen := "", 0
	for _, id := range knownIDs {
		for _, name := range idForms(id) {
			if len(name) > bestLen && containsWord(q, name) {
				best, bestLen = id, len(name)
			}
		}
	}
	if best != "" {
		return best
	}
	return closestName(q, knownIDs)
}

// closestName returns the id with the smallest relative edit distance to a
// word of q, or "" when none is close enough. Ties keep the first id.
func closestName(q string, knownIDs []string) string {
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !isWordRune(r) && r != '.' && r != '-'
	})
	best := ""
	bestDist, bestLen := 0, 1
	for _, id := range knownIDs {
		for _, name := range idForms(id) {
			nameLen := utf8.RuneCountInString(name)
			if nameLen < minFuzzyLen {
				continue
			}
			for _, w := range words {
				w = strings.TrimRight(w, ".-")
				longest := max(nameLen, utf8.RuneCountInString(w))
				d := editDistance(w, name)
				if d*fuzzyDen > longest*fuzzyNum {
					continue
				}
				// Compare d/longest against bestDist/bestLen.
				if best == "" || d*bestLen < bestDist*longest {
					best, bestDist, bestLen = id, d, longest
				}
			}
		}
	}
	return best
}

// editDistance is the Levenshtein distance between a and b in runes.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func idForms(id string) []string {
	lower := strings.ToLower(id)
	forms := []string{lower}
	if ext := filepath.Ext(lower); ext != "" {
		if stem := strings.TrimSuffix(lower, ext); utf8.RuneCountInString(stem) >= minStemLen {
			forms = append(forms, stem)
		}
	}
	return forms
}

// containsWord reports whether name occurs in s with no letter, digit, or
// underscore directly before or after it.
func containsWord(s, name string) bool {
	if name == "" {
		return false
	}
	for from := 0; from+len(name) <= len(s); {
		i := strings.Index(s[from:], name)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(name)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		from = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

// Classifier turns question text into a Question.
type Classifier struct {
	detector EntityDetector
}

// NewClassifier returns a classifier using detector, or NameDetector when
// nil.
func NewClassifier(detector EntityDetector) *Classifier {
	if detector == nil {
		detector = NameDetector{}
	}
	return &Classifier{detector: detector}
}

// Classify detects the question kind and the document it names. Kinds are
// tried in order: summary, date, location, encroachment, section, then free.
func (c *Classifier) Classify(text string, knownIDs []string) Question {
	q := Question{
		Text:       text,
		Kind:       QuestionFree,
		DocumentID: c.detector.Detect(text, knownIDs),
	}

	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, summaryTriggers):
		q.Kind = QuestionSummary
	case containsAny(lower, dateTriggers):
		q.Kind = QuestionDate
	case containsAny(lower, locationTriggers) && !containsAny(lower, encroachmentMarkers):
		q.Kind = QuestionLocation
	case containsAny(lower, encroachmentTriggers):
		q.Kind = QuestionEncroachment
	default:
		if m := sectionPattern.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				q.Kind = QuestionSection
				q.Section = n
			}
		}
	}
	return q
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
