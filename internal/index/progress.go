package index

import "context"

// Step is an ingest milestone reported to a progress observer.
type Step int

const (
	// StepIndexed means both indices include the new document.
	StepIndexed Step = iota
	// StepPersisted means the snapshot holding the document is on disk.
	StepPersisted
)

type progressKey struct{}

// WithProgress returns a context whose Ingest calls report each Step to fn.
func WithProgress(ctx context.Context, fn func(Step)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

func reportStep(ctx context.Context, s Step) {
	if fn, ok := ctx.Value(progressKey{}).(func(Step)); ok && fn != nil {
		fn(s)
	}
}
