package answer

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/internal/store"
)

// ContextSeparator joins context chunks in the user message.
const ContextSeparator = "\n---\n"

const notFoundReply = "The information was not found in the document."

var systemPrompts = map[search.QuestionKind]string{
	search.QuestionSummary: "Give a comprehensive summary of this document without adding information from outside it. " +
		"Write five short points that together cover the whole document: the parties involved, the scope, " +
		"the term, and the main provisions.",
	search.QuestionDate: "From the document, find when the agreement was made. " +
		"Look for the sentence that opens the agreement and states its date. " +
		"Answer in the form: 'This agreement was made on [weekday], [day] [month] [year].'",
	search.QuestionLocation: "From the document, find the land area and the location of the MAIN property that is " +
		"the object of the agreement. Do not use the personal address of the owner. " +
		"Ignore additional plots or encroached areas even when they have a size and location. " +
		"Answer in the form: 'Property land area: [area] m². Property location: [location].'",
	search.QuestionEncroachment: "From the document, find the size and the location of the encroached area. " +
		"Do not use the main property or the personal address of the owner. " +
		"The encroached area is usually described apart from the main property, with its size in m². " +
		"Answer in the form: 'Encroached area: [area] m². Encroached area location: [location].'",
	search.QuestionSection: "You are a careful assistant. Answer the question about the requested section with a clear, " +
		"structured summary. If the answer is not in the document, reply: '" + notFoundReply + "'",
	search.QuestionFree: "You are a careful assistant. Answer the question using only the document below. " +
		"If the answer is not in the document, reply: '" + notFoundReply + "'",
}

// SystemPrompt returns the system prompt for a question kind.
func SystemPrompt(kind search.QuestionKind) string {
	if p, ok := systemPrompts[kind]; ok {
		return p
	}
	return systemPrompts[search.QuestionFree]
}

// BuildContext joins chunk texts with ContextSeparator.
func BuildContext(chunks []store.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, ContextSeparator)
}

// NoContextReply is returned instead of calling the model when retrieval
// found nothing.
func NoContextReply(documentID string) string {
	if documentID == "" {
		return "No matching information was found in the indexed documents."
	}
	return fmt.Sprintf("No matching information was found in document %q.", documentID)
}
