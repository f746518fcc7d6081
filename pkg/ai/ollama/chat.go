package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"

	"github.com/ollama/ollama/api"
)

const (
	defaultNumCtx  = 4096
	promptReserved = 200
)

// GenerateCompletion sends a single-turn prompt to the chat model and
// returns the generated completion as plain text.
func (c *GraphOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.3,
	}, opts...)

	msgs := append(systemMessages(options), api.Message{Role: "user", Content: prompt})
	req := c.newChatRequest(options, msgs)
	c.sizeContext(req, prompt)

	return c.chat(ctx, req)
}

// GenerateCompletionWithFormat sends a prompt to the chat model with a JSON
// schema derived from out as format and unmarshals the answer into out.
func (c *GraphOllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if out == nil {
		return errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	formatBytes, err := json.Marshal(ai.GenerateSchema(out))
	if err != nil {
		return err
	}

	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.1,
	}, opts...)

	msgs := append(systemMessages(options), api.Message{Role: "user", Content: prompt})
	req := c.newChatRequest(options, msgs)
	req.Format = json.RawMessage(formatBytes)
	c.sizeContext(req, prompt)

	content, err := c.chat(ctx, req)
	if err != nil {
		return err
	}
	return ai.UnmarshalFlexible(content, out)
}

// GenerateChat sends a multi-turn chat conversation to the model and
// returns the assistant's reply.
func (c *GraphOllamaClient) GenerateChat(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.2,
	}, opts...)

	msgs := systemMessages(options)
	var all string
	for _, m := range messages {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Message})
		all += m.Message + "\n"
	}

	req := c.newChatRequest(options, msgs)
	c.sizeContext(req, all)

	return c.chat(ctx, req)
}

func systemMessages(options ai.GenerateOptions) []api.Message {
	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	return msgs
}

func (c *GraphOllamaClient) newChatRequest(options ai.GenerateOptions, msgs []api.Message) *api.ChatRequest {
	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if options.Thinking != "" {
		req.Think = &api.ThinkValue{
			Value: options.Thinking,
		}
	}
	return req
}

// sizeContext raises num_ctx when the prompt would not fit the default
// context window.
func (c *GraphOllamaClient) sizeContext(req *api.ChatRequest, prompt string) {
	n, err := c.countTokens(prompt)
	if err != nil {
		logger.Warn("Failed to count prompt tokens", "err", err)
		return
	}
	if tokens := n + promptReserved; tokens > defaultNumCtx {
		req.Options["num_ctx"] = tokens
	}
}

func (c *GraphOllamaClient) chat(ctx context.Context, req *api.ChatRequest) (string, error) {
	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	var final api.ChatResponse
	if err := c.Client.Chat(rCtx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return "", err
	}

	c.modifyMetrics(metricsFrom(final.Metrics))

	return final.Message.Content, nil
}
