package answer

import (
	"context"
	"log/slog"
	"time"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// FailurePrefix starts every soft failure message.
const FailurePrefix = "failed to get a response from the model: "

// Soft wraps a Provider so failures become an answer string instead of an
// error. Each call is bounded by a timeout and guarded by a circuit breaker
// so a dead endpoint fails fast.
type Soft struct {
	inner   Provider
	timeout time.Duration
	breaker *docerrors.CircuitBreaker
	logger  *slog.Logger
}

// NewSoft wraps inner. A non-positive timeout uses DefaultTimeout.
func NewSoft(inner Provider, timeout time.Duration, logger *slog.Logger) *Soft {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Soft{
		inner:   inner,
		timeout: timeout,
		breaker: docerrors.NewCircuitBreaker("answer", docerrors.WithMaxFailures(3), docerrors.WithResetTimeout(time.Minute)),
		logger:  logger,
	}
}

// Answer never returns an error.
func (s *Soft) Answer(ctx context.Context, systemPrompt, docContext, question string) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := docerrors.CircuitExecute(s.breaker, func() (string, error) {
		return s.inner.Answer(ctx, systemPrompt, docContext, question)
	})
	if err != nil {
		s.logger.Warn("answer provider failed", docerrors.LogAttrs(err)...)
		return FailurePrefix + err.Error()
	}
	return out
}
