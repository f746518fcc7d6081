package query

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
)

// Answer is a synthesized answer together with what it was based on.
type Answer struct {
	Answer  string `json:"answer"`
	Context string `json:"context"`
	Result
}

// Answerer phrases an answer from retrieved context with one completion.
type Answerer struct {
	retriever    *Retriever
	client       ai.CompletionClient
	contextLimit int
}

func NewAnswerer(retriever *Retriever, client ai.CompletionClient, contextLimit int) *Answerer {
	return &Answerer{retriever: retriever, client: client, contextLimit: contextLimit}
}

func (a *Answerer) Answer(ctx context.Context, question string, k int) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, common.NewValidationError("query.Answer", "question is empty")
	}
	res := a.retriever.Retrieve(ctx, question, k)
	merged := MergeContext(res, a.contextLimit)

	text, err := a.client.GenerateCompletion(ctx, fmt.Sprintf(ai.AnswerPrompt, merged, question), ai.WithTemperature(0))
	if err != nil {
		return Answer{}, fmt.Errorf("failed to synthesize answer: %w", err)
	}
	return Answer{Answer: strings.TrimSpace(text), Context: merged, Result: res}, nil
}

var writeClauseRe = regexp.MustCompile(`(?i)\b(CREATE|MERGE|SET|DELETE|DETACH|REMOVE|DROP|LOAD\s+CSV|FOREACH)\b`)

// CypherGenerator asks the model for a read-only Cypher query. The query is
// meant for display and is never executed here.
type CypherGenerator struct {
	client ai.CompletionClient
}

func NewCypherGenerator(client ai.CompletionClient) *CypherGenerator {
	return &CypherGenerator{client: client}
}

// Generate returns the generated query. Queries containing write clauses
// are rejected with a ValidationError.
func (g *CypherGenerator) Generate(ctx context.Context, question string, entities []string) (string, error) {
	prompt := fmt.Sprintf(ai.CypherPrompt, question, strings.Join(entities, ", "))
	raw, err := g.client.GenerateCompletion(ctx, prompt, ai.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("failed to generate cypher: %w", err)
	}
	query := strings.TrimSpace(ai.StripCodeFences(raw))
	query = strings.TrimSpace(strings.TrimPrefix(query, "cypher"))
	if m := writeClauseRe.FindString(query); m != "" {
		return "", common.NewValidationError("query.Cypher", "generated query is not read-only (%s)", strings.ToUpper(m))
	}
	return query, nil
}
