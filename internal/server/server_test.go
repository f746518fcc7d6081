package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/graphrag/internal/app"
	"github.com/OFFIS-RIT/graphrag/internal/config"
	"github.com/OFFIS-RIT/graphrag/internal/queue"
	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/embedding"
	lio "github.com/OFFIS-RIT/graphrag/pkg/loader/io"
	"github.com/OFFIS-RIT/graphrag/pkg/store/memory"

	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	reply func(prompt string) (string, error)
}

func (f *fakeChat) GenerateCompletion(_ context.Context, prompt string, _ ...ai.GenerateOption) (string, error) {
	return f.reply(prompt)
}

func (f *fakeChat) GenerateEmbeddings(_ context.Context, inputs []string) ([][]float32, error) {
	return make([][]float32, len(inputs)), nil
}

func (f *fakeChat) GenerateCompletionWithFormat(context.Context, string, string, string, any, ...ai.GenerateOption) error {
	return errors.New("not supported")
}

func (f *fakeChat) GenerateChat(context.Context, []ai.ChatMessage, ...ai.GenerateOption) (string, error) {
	return "", errors.New("not supported")
}

func (f *fakeChat) ResetMetrics()               {}
func (f *fakeChat) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

type lenProvider struct{}

func (lenProvider) Name() string     { return "fake" }
func (lenProvider) Model() string    { return "len" }
func (lenProvider) Dimension() int   { return 2 }
func (lenProvider) Probe() []float32 { return []float32{0, 0} }
func (lenProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}
func (p lenProvider) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = p.Embed(ctx, t)
	}
	return out, nil
}

type recordingPublisher struct {
	keys   []string
	bodies [][]byte
}

func (r *recordingPublisher) Publish(_, key string, _, _ bool, msg amqp091.Publishing) error {
	r.keys = append(r.keys, key)
	r.bodies = append(r.bodies, msg.Body)
	return nil
}

type testEnv struct {
	e    *echo.Echo
	app  *app.App
	mem  *memory.MemoryStore
	chat *fakeChat
}

func newTestEnv(t *testing.T, cfg config.Config, q queue.Publisher) *testEnv {
	t.Helper()
	mem := memory.New("chunk_embeddings")
	chat := &fakeChat{reply: func(string) (string, error) { return "[]", nil }}

	a, err := app.New(context.Background(), cfg,
		app.WithStore(mem),
		app.WithChat(chat),
		app.WithProvider(lenProvider{}),
		app.WithEmbedders(embedding.NewStaticConfigProvider(embedding.Config{Provider: embedding.ProviderOllama})),
		app.WithSeries(lio.NewDirSeriesSource(t.TempDir())),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &testEnv{e: New(ctx, a, q), app: a, mem: mem, chat: chat}
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestSegmentRoutes(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)

	rec := env.do(t, http.MethodPost, "/api/segment", `{"text":"Bonjour le monde.","strategy":"sentence","series_id":"demo"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody(t, rec)
	assert.Equal(t, "sentence", out["strategy"])
	assert.Equal(t, 1.0, out["count"])
	assert.Equal(t, "demo", out["series_id"])

	texts, err := env.app.Series.LoadSeries(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bonjour le monde."}, texts)

	rec = env.do(t, http.MethodPost, "/api/segment", `{"text":"x","strategy":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "configuration", decodeBody(t, rec)["kind"])

	rec = env.do(t, http.MethodPost, "/api/segment", `{"strategy":"line"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeBody(t, rec)["kind"])

	rec = env.do(t, http.MethodPost, "/api/segment/preview", `{"text":"abc","strategies":["line","nope"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out = decodeBody(t, rec)
	assert.Len(t, out, 1)
	assert.Equal(t, map[string]any{"n_chunks": 1.0, "avg_size": 3.0}, out["line"])

	rec = env.do(t, http.MethodPost, "/api/segment/suggest", `{"text":"short text"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sentence", decodeBody(t, rec)["strategy"])
}

func TestIndexAndQuery(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)

	rec := env.do(t, http.MethodPost, "/api/index", `{"series_id":"s1","texts":["Al Abrar est à Mediouna.","Le bien a un parking."]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody(t, rec)
	assert.Equal(t, 2.0, out["count"])

	chunks, links, _, _ := env.mem.Counts()
	assert.Equal(t, 2, chunks)
	assert.Equal(t, 1, links)

	rec = env.do(t, http.MethodPost, "/api/query", `{"question":"Où est Al Abrar ?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out = decodeBody(t, rec)
	assert.Len(t, out["vector_hits"], 2)
	assert.NotNil(t, out["graph_hits"])
	assert.Contains(t, out["context"], "Mediouna")

	rec = env.do(t, http.MethodGet, "/api/status/indexes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["indexes"], 1)
}

func TestIndexFromStoredSeriesRunsInline(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	_, err := env.app.Series.SaveSeries(context.Background(), "s2", []string{"un", "deux", "trois"})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/index", `{"series_id":"s2","similarity":"euclidean"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3.0, decodeBody(t, rec)["count"])
}

func TestIndexRejections(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)

	rec := env.do(t, http.MethodPost, "/api/index", `{"texts":["a"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/index", `{"series_id":"s1","texts":["a"],"similarity":"manhattan"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/index", `{"series_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndexEnqueuesSeries(t *testing.T) {
	pub := &recordingPublisher{}
	env := newTestEnv(t, config.Config{}, pub)

	rec := env.do(t, http.MethodPost, "/api/index", `{"series_id":"s1","build_graph":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	out := decodeBody(t, rec)
	assert.Equal(t, queue.IngestQueue, out["queue"])
	assert.NotEmpty(t, out["correlation_id"])

	require.Equal(t, []string{queue.IngestQueue}, pub.keys)
	var msg queue.IngestMsg
	require.NoError(t, json.Unmarshal(pub.bodies[0], &msg))
	assert.Equal(t, "s1", msg.SeriesID)
	assert.True(t, msg.BuildGraph)

	rec = env.do(t, http.MethodPost, "/api/kg", `{"series_id":"s1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, queue.GraphQueue, pub.keys[1])
}

func TestKnowledgeGraphRoute(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	env.chat.reply = func(string) (string, error) {
		return "```json\n[{\"subject\":\"Al Abrar\",\"relation\":\"LOCATED_IN\",\"object\":\"Mediouna\"}]\n```", nil
	}

	rec := env.do(t, http.MethodPost, "/api/kg", `{"chunks":["Al Abrar est à Mediouna."]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1.0, decodeBody(t, rec)["triplets_created"])
	assert.True(t, env.mem.HasEdge("Al Abrar", "LOCATED_IN", "Mediouna"))

	rec = env.do(t, http.MethodGet, "/api/status/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["exists"])

	env.chat.reply = func(string) (string, error) { return "no facts here", nil }
	rec = env.do(t, http.MethodPost, "/api/kg", `{"chunks":["texte"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no facts here", decodeBody(t, rec)["raw"])

	rec = env.do(t, http.MethodPost, "/api/kg", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnswerAndCypher(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	env.chat.reply = func(prompt string) (string, error) {
		if strings.Contains(prompt, "Cypher") {
			return "```cypher\nMATCH (e:Entity {name: 'Al Abrar'}) RETURN e\n```", nil
		}
		return "Je ne dispose pas de cette information.", nil
	}

	rec := env.do(t, http.MethodPost, "/api/answer", `{"question":"Prix ?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Je ne dispose pas de cette information.", decodeBody(t, rec)["answer"])

	rec = env.do(t, http.MethodPost, "/api/cypher", `{"question":"Où se trouve Al Abrar ?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody(t, rec)
	assert.Equal(t, "MATCH (e:Entity {name: 'Al Abrar'}) RETURN e", out["cypher"])
	assert.Contains(t, out["entities"], "Abrar")

	env.chat.reply = func(string) (string, error) { return "MATCH (n) DETACH DELETE n", nil }
	rec = env.do(t, http.MethodPost, "/api/cypher", `{"question":"Efface tout","entities":["Tout"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusRoutes(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)

	rec := env.do(t, http.MethodGet, "/api/status/neo4j", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["connected"])

	rec = env.do(t, http.MethodGet, "/api/status/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["exists"])

	rec = env.do(t, http.MethodGet, "/api/status/embedders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody(t, rec)
	assert.Equal(t, "ollama", out["current"])
	assert.Len(t, out["embedders"], len(embedding.Providers))

	env.mem.Fail = errors.New("connection refused")
	rec = env.do(t, http.MethodGet, "/api/status/neo4j", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["connected"])
}

func TestEmbedderRoutes(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)

	rec := env.do(t, http.MethodGet, "/api/embedder", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ollama", decodeBody(t, rec)["provider"])

	rec = env.do(t, http.MethodPut, "/api/embedder", `{"provider":"word2vec"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/embedder", `{"provider":"openai","params":{"model":"text-embedding-3-small"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cur, err := env.app.Embedders.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "openai", cur.Provider)
}

func TestRateLimitOnModelRoutes(t *testing.T) {
	cfg := config.Config{Server: config.ServerConfig{RateLimit: 1, RateBurst: 1}}
	env := newTestEnv(t, cfg, nil)

	first := env.do(t, http.MethodPost, "/api/query", `{"question":"Bonjour"}`)
	assert.Equal(t, http.StatusOK, first.Code)
	second := env.do(t, http.MethodPost, "/api/query", `{"question":"Bonjour"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// unlimited routes are not affected
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	env.do(t, http.MethodGet, "/health", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `graphrag_http_requests_total{method="GET",path="/health",status="200"} 1`)
}
