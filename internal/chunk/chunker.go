// Package chunk splits extracted document text into indexable chunks.
//
// A document yields three families of chunks, in order: date-context chunks
// (a sentence holding a date plus its neighbours), section chunks (the text
// between numbered headings such as "PASAL 4" or "ARTICLE 4"), and general
// chunks packing consecutive sentences up to a word budget. The families
// overlap on purpose: each answers a different kind of question.
package chunk

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Aman-CERP/docrag/internal/store"
)

// DefaultMaxWords is the word budget of a general chunk.
const DefaultMaxWords = 500

var (
	datePattern    = regexp.MustCompile(`\b\d{1,2}[-/\s]\d{1,2}[-/\s]\d{2,4}\b`)
	headingPattern = regexp.MustCompile(`(?im)^[ \t]*(?:pasal|article|section)[ \t]+([1-9]\d*)[ \t]*$`)
)

// Chunker turns document text into chunk texts with aligned metadata.
type Chunker interface {
	Chunk(text string) ([]string, []store.ChunkMeta)
}

// Options configures a DocumentChunker.
type Options struct {
	// MaxWords bounds general chunks. Zero uses DefaultMaxWords.
	MaxWords int
}

// DocumentChunker is the default Chunker.
type DocumentChunker struct {
	maxWords int
}

// NewDocumentChunker returns a chunker with opts.
func NewDocumentChunker(opts Options) *DocumentChunker {
	if opts.MaxWords <= 0 {
		opts.MaxWords = DefaultMaxWords
	}
	return &DocumentChunker{maxWords: opts.MaxWords}
}

// Chunk splits text. Metadata DocumentID is left empty for the caller to
// fill. Blank text yields no chunks.
func (c *DocumentChunker) Chunk(text string) ([]string, []store.ChunkMeta) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var texts []string
	var metas []store.ChunkMeta
	add := func(t string, m store.ChunkMeta) {
		texts = append(texts, t)
		metas = append(metas, m)
	}

	sentences := SplitSentences(text)

	for _, t := range dateChunks(text, sentences) {
		add(t, store.ChunkMeta{Kind: store.KindDateContext})
	}
	for _, sec := range splitSections(text) {
		if sec.number > 0 {
			add(sec.text, store.ChunkMeta{Kind: store.KindSection, SectionNumber: store.SectionNumber(sec.number)})
			continue
		}
		add(sec.text, store.ChunkMeta{Kind: store.KindGeneral})
	}
	for _, t := range packSentences(sentences, c.maxWords) {
		add(t, store.ChunkMeta{Kind: store.KindGeneral})
	}
	return texts, metas
}

// dateChunks returns, for every date in text, the first sentence holding it
// joined with the sentence before and after.
func dateChunks(text string, sentences []string) []string {
	var out []string
	for _, match := range datePattern.FindAllString(text, -1) {
		for i, s := range sentences {
			if !strings.Contains(s, match) {
				continue
			}
			lo, hi := max(0, i-1), min(len(sentences), i+2)
			out = append(out, strings.Join(sentences[lo:hi], " "))
			break
		}
	}
	return out
}

type section struct {
	text   string
	number int
}

// splitSections cuts text before every heading line. The piece before the
// first heading, if any, has number 0.
func splitSections(text string) []section {
	locs := headingPattern.FindAllStringSubmatchIndex(text, -1)
	starts := make([]int, 0, len(locs)+1)
	if len(locs) == 0 || locs[0][0] > 0 {
		starts = append(starts, 0)
	}
	for _, loc := range locs {
		starts = append(starts, loc[0])
	}

	var out []section
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		piece := strings.TrimSpace(text[start:end])
		if piece == "" {
			continue
		}
		sec := section{text: piece}
		if m := headingPattern.FindStringSubmatch(piece); m != nil {
			sec.number, _ = strconv.Atoi(m[1])
		}
		out = append(out, sec)
	}
	return out
}

// packSentences greedily joins consecutive sentences while the word count
// stays within maxWords. A single sentence longer than maxWords becomes its
// own chunk.
func packSentences(sentences []string, maxWords int) []string {
	var out []string
	for i := 0; i < len(sentences); {
		var cur []string
		words := 0
		for i < len(sentences) {
			n := len(strings.Fields(sentences[i]))
			if len(cur) > 0 && words+n > maxWords {
				break
			}
			cur = append(cur, sentences[i])
			words += n
			i++
			if words >= maxWords {
				break
			}
		}
		if t := strings.TrimSpace(strings.Join(cur, " ")); t != "" {
			out = append(out, t)
		}
	}
	return out
}
