// Package graph turns passages into (subject, relation, object) triplets
// and merges them into the graph store.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
)

// rawTriplet accepts both "object" and "object_" for the object field.
type rawTriplet struct {
	Subject  scalar `json:"subject"`
	Relation string `json:"relation"`
	Object   scalar `json:"object"`
	Object_  scalar `json:"object_"`
}

func (t rawTriplet) triplet() common.Triplet {
	obj := t.Object
	if obj == "" {
		obj = t.Object_
	}
	return common.Triplet{
		Subject:  strings.TrimSpace(string(t.Subject)),
		Relation: t.Relation,
		Object:   strings.TrimSpace(string(obj)),
	}
}

// scalar decodes a JSON string, number or boolean into its text. Models
// often answer prices and counts as bare numbers. null decodes to "".
type scalar string

func (s *scalar) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty triplet field")
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = scalar(v)
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = scalar(strconv.FormatBool(v))
	case 'n':
		*s = ""
	default:
		var v json.Number
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("triplet field must be a string, number or boolean, got %s", data)
		}
		*s = scalar(v.String())
	}
	return nil
}

// Extractor asks a completion model for the triplets contained in a passage.
type Extractor struct {
	client ai.CompletionClient
	opts   []ai.GenerateOption
}

// NewExtractor creates an Extractor. opts are passed to every completion
// after the defaults (temperature 0 plus a schema system prompt).
func NewExtractor(client ai.CompletionClient, opts ...ai.GenerateOption) *Extractor {
	return &Extractor{client: client, opts: opts}
}

var tripletSchemaPrompt = "The answer must validate against this JSON schema:\n" + ai.SchemaJSON([]common.Triplet{})

// Extract sends one prompt and parses the answer. A malformed answer is an
// ExtractionError, never an empty result.
func (e *Extractor) Extract(ctx context.Context, text string) ([]common.Triplet, error) {
	prompt := fmt.Sprintf(ai.TripletExtractPrompt, text)
	opts := append([]ai.GenerateOption{
		ai.WithTemperature(0),
		ai.WithSystemPrompts(tripletSchemaPrompt),
	}, e.opts...)

	raw, err := e.client.GenerateCompletion(ctx, prompt, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to extract triplets: %w", err)
	}

	triplets, err := ParseTriplets(raw)
	if err != nil {
		var ce *common.Error
		if errors.As(err, &ce) {
			logger.Warn("Unparseable extraction response", "raw", ce.Raw)
		}
		return nil, err
	}
	logger.Debug("Extracted triplets", "count", len(triplets))
	return triplets, nil
}

// ParseTriplets decodes a model answer. Code fences and text around the
// outermost [...] are ignored. Strict JSON is tried first, then a repairing
// decoder.
func ParseTriplets(raw string) ([]common.Triplet, error) {
	cleaned := ai.StripCodeFences(raw)
	span, ok := ai.JSONArraySpan(cleaned)
	if !ok {
		return nil, common.NewExtractionError("graph.ParseTriplets", cleaned, errors.New("no JSON array in response"))
	}

	var items []rawTriplet
	if err := json.Unmarshal([]byte(span), &items); err != nil {
		items = nil
		if ferr := ai.UnmarshalFlexible(span, &items); ferr != nil {
			return nil, common.NewExtractionError("graph.ParseTriplets", span, err)
		}
	}

	out := make([]common.Triplet, 0, len(items))
	for _, item := range items {
		out = append(out, item.triplet())
	}
	return out, nil
}
