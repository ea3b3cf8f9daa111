package answer

import (
	"context"

	"github.com/Aman-CERP/docrag/internal/search"
)

// Answerer produces the final reply for a retrieval.
type Answerer struct {
	soft *Soft
}

// NewAnswerer returns an Answerer that asks soft.
func NewAnswerer(soft *Soft) *Answerer {
	return &Answerer{soft: soft}
}

// Answer picks the prompt for the question kind and asks the model. An empty
// retrieval is answered without a model call.
func (a *Answerer) Answer(ctx context.Context, r *search.Retrieval) string {
	if len(r.Chunks) == 0 {
		return NoContextReply(r.Question.DocumentID)
	}
	return a.soft.Answer(ctx, SystemPrompt(r.Question.Kind), BuildContext(r.Chunks), r.Question.Text)
}
