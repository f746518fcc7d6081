package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordCounter(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

type fakeOllama struct {
	mu    sync.Mutex
	chats []api.ChatRequest
}

func (f *fakeOllama) lastChat() api.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats[len(f.chats)-1]
}

func newTestClient(t *testing.T) (*GraphOllamaClient, *fakeOllama) {
	t.Helper()
	fake := &fakeOllama{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/embed":
			var req api.EmbedRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			inputs, _ := req.Input.([]any)
			embs := make([][]float32, len(inputs))
			for i := range inputs {
				embs[i] = []float32{float32(i), 0.5}
			}
			_ = json.NewEncoder(w).Encode(api.EmbedResponse{Model: req.Model, Embeddings: embs, PromptEvalCount: 7})
		case "/api/chat":
			var req api.ChatRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			fake.mu.Lock()
			fake.chats = append(fake.chats, req)
			fake.mu.Unlock()
			_ = json.NewEncoder(w).Encode(api.ChatResponse{
				Model:   req.Model,
				Message: api.Message{Role: "assistant", Content: `[{"subject":"Bien","relation":"HAS_EQUIPMENT","object":"Parking"}]`},
				Done:    true,
				Metrics: api.Metrics{PromptEvalCount: 12, EvalCount: 8},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewGraphOllamaClient(NewGraphOllamaClientParams{
		EmbeddingModel: "nomic-embed-text",
		ChatModel:      "llama3.1",
		BaseURL:        srv.URL,
		TokenCounter:   wordCounter,
	})
	require.NoError(t, err)
	return c, fake
}

func TestGenerateEmbeddings(t *testing.T) {
	c, _ := newTestClient(t)

	vecs, err := c.GenerateEmbeddings(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0.5}, vecs[1])
	assert.Equal(t, 7, c.GetMetrics().InputTokens)
}

func TestGenerateCompletion(t *testing.T) {
	c, fake := newTestClient(t)

	out, err := c.GenerateCompletion(context.Background(), "short prompt", ai.WithSystemPrompts("sys"))
	require.NoError(t, err)
	assert.Contains(t, out, "HAS_EQUIPMENT")

	req := fake.lastChat()
	assert.Equal(t, "llama3.1", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	_, hasCtx := req.Options["num_ctx"]
	assert.False(t, hasCtx)
	assert.Equal(t, 20, c.GetMetrics().TotalTokens)
}

func TestGenerateCompletionSizesContext(t *testing.T) {
	c, fake := newTestClient(t)

	_, err := c.GenerateCompletion(context.Background(), strings.Repeat("word ", 5000))
	require.NoError(t, err)
	assert.EqualValues(t, 5200, fake.lastChat().Options["num_ctx"])
}

func TestGenerateCompletionWithFormat(t *testing.T) {
	c, fake := newTestClient(t)

	type fact struct {
		Subject  string `json:"subject"`
		Relation string `json:"relation"`
		Object   string `json:"object"`
	}
	var facts []fact
	require.NoError(t, c.GenerateCompletionWithFormat(context.Background(), "facts", "", "extract", &facts))
	require.Len(t, facts, 1)
	assert.Equal(t, "Parking", facts[0].Object)
	assert.NotEmpty(t, fake.lastChat().Format)

	assert.Error(t, c.GenerateCompletionWithFormat(context.Background(), "facts", "", "extract", facts))
}
