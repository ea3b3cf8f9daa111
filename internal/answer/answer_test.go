package answer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/logging"
	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/internal/store"
)

func chatServer(t *testing.T, handler func(req chatRequest) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.Error(w, "wrong path", http.StatusNotFound)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		status, body := handler(req)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatClient_Answer(t *testing.T) {
	// Given: an endpoint that echoes the user message length
	var got chatRequest
	srv := chatServer(t, func(req chatRequest) (int, string) {
		got = req
		return http.StatusOK, `{"choices":[{"message":{"content":"Rent is due monthly."}}]}`
	})
	c := NewChatClient(Config{Endpoint: srv.URL + "/", Model: "m1", APIKey: "test-key"})

	// When: asking
	out, err := c.Answer(context.Background(), "system", "ctx text", "when is rent due?")

	// Then: the reply is returned and the request carries both messages
	require.NoError(t, err)
	assert.Equal(t, "Rent is due monthly.", out)
	assert.Equal(t, "m1", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Document:\nctx text\n\nQuestion:\nwhen is rent due?", got.Messages[1].Content)
}

func TestChatClient_HTTPError(t *testing.T) {
	srv := chatServer(t, func(chatRequest) (int, string) {
		return http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`
	})
	c := NewChatClient(Config{Endpoint: srv.URL, APIKey: "test-key"})

	_, err := c.Answer(context.Background(), "s", "c", "q")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestChatClient_NoChoices(t *testing.T) {
	srv := chatServer(t, func(chatRequest) (int, string) {
		return http.StatusOK, `{"choices":[]}`
	})
	c := NewChatClient(Config{Endpoint: srv.URL, APIKey: "test-key"})

	_, err := c.Answer(context.Background(), "s", "c", "q")
	assert.Error(t, err)
}

type providerFunc func(ctx context.Context) (string, error)

func (f providerFunc) Answer(ctx context.Context, _, _, _ string) (string, error) {
	return f(ctx)
}

func TestSoft_ReturnsFailureString(t *testing.T) {
	// Given: a provider that fails
	soft := NewSoft(providerFunc(func(context.Context) (string, error) {
		return "", errors.New("connection refused")
	}), time.Second, logging.Discard())

	// When: asking
	out := soft.Answer(context.Background(), "s", "c", "q")

	// Then: the failure is reported in the answer text
	assert.True(t, strings.HasPrefix(out, FailurePrefix))
	assert.Contains(t, out, "connection refused")
}

func TestSoft_Timeout(t *testing.T) {
	// Given: a provider slower than the timeout
	soft := NewSoft(providerFunc(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), 10*time.Millisecond, logging.Discard())

	// When: asking
	out := soft.Answer(context.Background(), "s", "c", "q")

	// Then: the deadline error is reported
	assert.Contains(t, out, context.DeadlineExceeded.Error())
}

func TestSoft_Success(t *testing.T) {
	soft := NewSoft(providerFunc(func(context.Context) (string, error) {
		return "ok", nil
	}), 0, nil)
	assert.Equal(t, "ok", soft.Answer(context.Background(), "s", "c", "q"))
}

func TestSoft_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	// Given: a provider that always fails
	calls := 0
	soft := NewSoft(providerFunc(func(context.Context) (string, error) {
		calls++
		return "", errors.New("down")
	}), time.Second, logging.Discard())

	// When: asking more times than the breaker tolerates
	for i := 0; i < 5; i++ {
		_ = soft.Answer(context.Background(), "s", "c", "q")
	}

	// Then: later calls fail fast without reaching the provider
	assert.Equal(t, 3, calls)
}

func TestBuildContext(t *testing.T) {
	chunks := []store.Chunk{{Text: "one"}, {Text: "two"}, {Text: "three"}}
	assert.Equal(t, "one\n---\ntwo\n---\nthree", BuildContext(chunks))
	assert.Equal(t, "", BuildContext(nil))
}

func TestSystemPrompt_PerKind(t *testing.T) {
	seen := map[string]bool{}
	for _, kind := range []search.QuestionKind{
		search.QuestionFree, search.QuestionSummary, search.QuestionDate, search.QuestionLocation, search.QuestionSection,
		search.QuestionEncroachment,
	} {
		p := SystemPrompt(kind)
		assert.NotEmpty(t, p)
		assert.False(t, seen[p], "prompt for %s is shared", kind)
		seen[p] = true
	}
	assert.Equal(t, SystemPrompt(search.QuestionFree), SystemPrompt(search.QuestionKind(42)))
}

func TestAnswerer_EmptyRetrievalSkipsModel(t *testing.T) {
	// Given: a provider that must not be called
	called := false
	a := NewAnswerer(NewSoft(providerFunc(func(context.Context) (string, error) {
		called = true
		return "", nil
	}), time.Second, logging.Discard()))

	// When: answering with no chunks
	out := a.Answer(context.Background(), &search.Retrieval{Question: search.Question{DocumentID: "lease.pdf"}})

	// Then: a fixed reply names the document
	assert.False(t, called)
	assert.Contains(t, out, "lease.pdf")
}

func TestAnswerer_UsesKindPrompt(t *testing.T) {
	var gotPrompt, gotContext string
	a := NewAnswerer(NewSoft(recordingProvider{prompt: &gotPrompt, context: &gotContext}, time.Second, logging.Discard()))

	out := a.Answer(context.Background(), &search.Retrieval{
		Question: search.Question{Text: "summary please", Kind: search.QuestionSummary},
		Chunks:   []store.Chunk{{Text: "a"}, {Text: "b"}},
	})

	assert.Equal(t, "done", out)
	assert.Equal(t, SystemPrompt(search.QuestionSummary), gotPrompt)
	assert.Equal(t, "a\n---\nb", gotContext)
}

type recordingProvider struct {
	prompt  *string
	context *string
}

func (p recordingProvider) Answer(_ context.Context, systemPrompt, docContext, _ string) (string, error) {
	*p.prompt = systemPrompt
	*p.context = docContext
	return "done", nil
}
