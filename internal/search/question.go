package search

import (
	"fmt"

	"github.com/Aman-CERP/docrag/internal/store"
)

// QuestionKind selects how context is gathered for a question.
type QuestionKind int

const (
	// QuestionFree is answered from a hybrid search.
	QuestionFree QuestionKind = iota
	// QuestionSummary is answered from a start/middle/end sample.
	QuestionSummary
	// QuestionDate is answered from the document's opening date context.
	QuestionDate
	// QuestionLocation is answered from the chunk describing the object of
	// the agreement, which follows the opening chunk.
	QuestionLocation
	// QuestionSection is answered from one numbered section.
	QuestionSection
	// QuestionEncroachment asks for the size and place of an encroached
	// area. It reads the same chunk as QuestionLocation under a different
	// prompt.
	QuestionEncroachment
)

var questionKindNames = map[QuestionKind]string{
	QuestionFree:     "free",
	QuestionSummary:  "summary",
	QuestionDate:     "date",
	QuestionLocation: "location",
	QuestionSection:  "section",

	QuestionEncroachment: "encroachment",
}

// String returns the kind's name.
func (k QuestionKind) String() string {
	if s, ok := questionKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("QuestionKind(%d)", int(k))
}

// Question is a classified question.
type Question struct {
	Text string
	Kind QuestionKind
	// Section is the requested section number for QuestionSection.
	Section int
	// DocumentID is the document the question names, or "".
	DocumentID string
}

// Retrieval is the context gathered for a question.
type Retrieval struct {
	Question Question
	// Chunks are the context chunks in the order they should be shown.
	Chunks []store.Chunk
	// Results holds the ranked hits for free questions.
	Results []*Result
}

// Texts returns the chunk texts.
func (r *Retrieval) Texts() []string {
	out := make([]string, len(r.Chunks))
	for i, c := range r.Chunks {
		out[i] = c.Text
	}
	return out
}

// SelectChunks picks the context for a document-bound question from that
// document's ordered chunks. Free questions need a search and return nil.
func SelectChunks(q Question, chunks []store.Chunk, summaryChunks int) []store.Chunk {
	if len(chunks) == 0 {
		return []store.Chunk{}
	}
	switch q.Kind {
	case QuestionSummary:
		return Summarize(chunks, summaryChunks)
	case QuestionDate:
		for _, c := range chunks {
			if c.Kind == store.KindDateContext {
				return []store.Chunk{c}
			}
		}
		return chunks[:1]
	case QuestionLocation, QuestionEncroachment:
		if len(chunks) >= 2 {
			return chunks[1:2]
		}
		return chunks[:1]
	case QuestionSection:
		var out []store.Chunk
		for _, c := range chunks {
			if c.SectionNumber != nil && *c.SectionNumber == q.Section {
				out = append(out, c)
			}
		}
		if out == nil {
			return []store.Chunk{}
		}
		return out
	default:
		return nil
	}
}
