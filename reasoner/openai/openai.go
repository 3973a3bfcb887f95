// Package openai provides a reasoner backed by the OpenAI Chat Completions
// API. It adapts the core.Reasoner prompt/context call into the SDK's
// message format.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/graphmind/core"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI reasoner adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal; extend via
// functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Reasoner wraps the OpenAI Chat Completions API behind core.Reasoner.
type Reasoner struct {
	client *openai.Client
	opts   Options
}

var _ core.Reasoner = (*Reasoner)(nil)

// NewReasoner creates a new OpenAI reasoner using the official client. The
// API key falls back to the environment when not set explicitly.
func NewReasoner(optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)
	return &Reasoner{client: &client, opts: opts}
}

// NewReasonerFromClient creates a new OpenAI reasoner from an existing client.
func NewReasonerFromClient(client *openai.Client, optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reasoner{client: client, opts: opts}
}

// Generate implements core.Reasoner. Graph context is supplied as system
// messages; the prompt becomes the single user message.
func (r *Reasoner) Generate(ctx context.Context, prompt string, contextTexts []string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, c := range contextTexts {
		if c != "" {
			messages = append(messages, openai.SystemMessage(c))
		}
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               r.opts.Model,
		Temperature:         openai.Float(r.opts.Temperature),
		MaxCompletionTokens: openai.Int(r.opts.MaxCompletionTokens),
	}

	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
