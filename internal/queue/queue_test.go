package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/graph"
	"github.com/OFFIS-RIT/graphrag/pkg/ingest"
	lio "github.com/OFFIS-RIT/graphrag/pkg/loader/io"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
	"github.com/OFFIS-RIT/graphrag/pkg/store/memory"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	key string
	msg amqp091.Publishing
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_, key string, _, _ bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{key: key, msg: msg})
	return nil
}

type fakeDeclarer struct {
	names  []string
	args   map[string]amqp091.Table
	failOn string
}

func (f *fakeDeclarer) QueueDeclare(name string, _, _, _, _ bool, args amqp091.Table) (amqp091.Queue, error) {
	if name == f.failOn {
		return amqp091.Queue{}, errors.New("channel closed")
	}
	f.names = append(f.names, name)
	if f.args == nil {
		f.args = map[string]amqp091.Table{}
	}
	f.args[name] = args
	return amqp091.Queue{Name: name}, nil
}

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked++; return nil }
func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}
func (a *fakeAck) Reject(uint64, bool) error { return nil }

func delivery(ack *fakeAck, headers amqp091.Table) amqp091.Delivery {
	return amqp091.Delivery{
		Acknowledger:  ack,
		Headers:       headers,
		ContentType:   "application/json",
		CorrelationId: "c1",
		Body:          []byte(`{"series_id":"s1"}`),
	}
}

func TestSetupQueues(t *testing.T) {
	d := &fakeDeclarer{}
	require.NoError(t, SetupQueues(d, Queues))

	assert.Equal(t, []string{
		"ingest_queue", "ingest_queue_dlq", "ingest_queue_retry",
		"graph_queue", "graph_queue_dlq", "graph_queue_retry",
	}, d.names)

	retry := d.args["graph_queue_retry"]
	assert.Equal(t, int32(10000), retry["x-message-ttl"])
	assert.Equal(t, "graph_queue", retry["x-dead-letter-routing-key"])
}

func TestSetupQueuesFails(t *testing.T) {
	d := &fakeDeclarer{failOn: "ingest_queue_dlq"}
	err := SetupQueues(d, Queues)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest_queue_dlq")
}

func TestPublishFIFO(t *testing.T) {
	p := &fakePublisher{}
	require.NoError(t, PublishFIFO(p, IngestQueue, "abc", []byte(`{}`)))
	require.Len(t, p.sent, 1)
	assert.Equal(t, IngestQueue, p.sent[0].key)
	assert.Equal(t, "abc", p.sent[0].msg.CorrelationId)
	assert.Equal(t, amqp091.Persistent, p.sent[0].msg.DeliveryMode)
}

func TestNewMessages(t *testing.T) {
	msg, err := NewIngestMsg("series-1", store.SimilarityCosine, true)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.CorrelationID)
	assert.True(t, msg.BuildGraph)

	_, err = NewIngestMsg("../etc", store.SimilarityCosine, false)
	assert.ErrorIs(t, err, common.ErrValidation)

	g, err := NewGraphMsg("series-1")
	require.NoError(t, err)
	assert.Equal(t, "series-1", g.SeriesID)

	_, err = NewGraphMsg("")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestHandleProcessingError(t *testing.T) {
	transient := common.NewConnectivityError("neo4j.UpsertChunks", errors.New("refused"))
	final := common.NewConfigurationError("ingest", "dimension mismatch")

	tests := []struct {
		name    string
		headers amqp091.Table
		err     error
		outcome string
		key     string
		retries any
	}{
		{"first failure", nil, transient, OutcomeRetry, "ingest_queue_retry", int32(1)},
		{"counts up from int64", amqp091.Table{"x-retries": int64(4)}, transient, OutcomeRetry, "ingest_queue_retry", int32(5)},
		{"exhausted", amqp091.Table{"x-retries": int32(MaxRetries)}, transient, OutcomeDLQ, "ingest_queue_dlq", int32(MaxRetries)},
		{"final error", nil, final, OutcomeDLQ, "ingest_queue_dlq", nil},
		{"plain error retries", nil, errors.New("boom"), OutcomeRetry, "ingest_queue_retry", int32(1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePublisher{}
			ack := &fakeAck{}
			got := HandleProcessingError(p, delivery(ack, tc.headers), IngestQueue, tc.err)

			assert.Equal(t, tc.outcome, got)
			assert.Equal(t, 1, ack.acked)
			require.Len(t, p.sent, 1)
			assert.Equal(t, tc.key, p.sent[0].key)
			assert.Equal(t, tc.retries, p.sent[0].msg.Headers["x-retries"])
			assert.Equal(t, "c1", p.sent[0].msg.CorrelationId)
			if tc.outcome == OutcomeDLQ {
				assert.Equal(t, tc.err.Error(), p.sent[0].msg.Headers["x-error"])
			}
		})
	}
}

func TestHandleProcessingErrorRequeuesWhenPublishFails(t *testing.T) {
	p := &fakePublisher{err: errors.New("channel closed")}
	ack := &fakeAck{}
	got := HandleProcessingError(p, delivery(ack, nil), GraphQueue, errors.New("boom"))

	assert.Equal(t, OutcomeRequeue, got)
	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeue)
}

type unitProvider struct{}

func (unitProvider) Name() string     { return "fake" }
func (unitProvider) Model() string    { return "unit" }
func (unitProvider) Dimension() int   { return 2 }
func (unitProvider) Probe() []float32 { return []float32{0, 0} }
func (unitProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}
func (p unitProvider) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = p.Embed(ctx, t)
	}
	return out, nil
}

type cannedLLM struct{ answer string }

func (c cannedLLM) GenerateCompletion(context.Context, string, ...ai.GenerateOption) (string, error) {
	return c.answer, nil
}

func newHandler(t *testing.T, mem *memory.MemoryStore, pub Publisher) *Handler {
	t.Helper()
	series := lio.NewDirSeriesSource(t.TempDir())
	_, err := series.SaveSeries(context.Background(), "s1", []string{"Al Abrar est à Mediouna.", "Le bien a un parking."})
	require.NoError(t, err)

	return &Handler{
		Pipeline: func() (*ingest.Pipeline, error) {
			return ingest.NewPipeline(ingest.NewPipelineParams{Provider: unitProvider{}, Index: mem, Series: series})
		},
		Builder: func() (*graph.Builder, error) {
			return graph.NewBuilder(graph.NewBuilderParams{
				Graph:     mem,
				Extractor: graph.NewExtractor(cannedLLM{`[{"subject":"Al Abrar","relation":"LOCATED_IN","object":"Mediouna"}]`}),
				Series:    series,
			})
		},
		Publisher: pub,
	}
}

func TestHandlerIngestChainsGraphBuild(t *testing.T) {
	ctx := context.Background()
	mem := memory.New("idx")
	pub := &fakePublisher{}
	h := newHandler(t, mem, pub)

	var ingested int
	h.OnIngested = func(n int) { ingested = n }

	body, _ := json.Marshal(IngestMsg{CorrelationID: "c1", SeriesID: "s1", Similarity: store.SimilarityCosine, BuildGraph: true})
	require.NoError(t, h.Handle(ctx, IngestQueue, body))

	assert.Equal(t, 2, ingested)
	chunks, links, _, _ := mem.Counts()
	assert.Equal(t, 2, chunks)
	assert.Equal(t, 1, links)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, GraphQueue, pub.sent[0].key)

	var merged int
	h.OnMerged = func(n int) { merged = n }
	require.NoError(t, h.Handle(ctx, GraphQueue, pub.sent[0].msg.Body))
	assert.Equal(t, 1, merged)
	assert.True(t, mem.HasEdge("Al Abrar", "LOCATED_IN", "Mediouna"))
}

func TestHandlerErrors(t *testing.T) {
	ctx := context.Background()
	h := newHandler(t, memory.New("idx"), &fakePublisher{})

	err := h.Handle(ctx, IngestQueue, []byte("not json"))
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.False(t, Retryable(err))

	body, _ := json.Marshal(GraphMsg{CorrelationID: "c2", SeriesID: "missing"})
	err = h.Handle(ctx, GraphQueue, body)
	require.Error(t, err)

	assert.Error(t, h.Handle(ctx, "other_queue", nil))
}
