// Package anthropic provides a reasoner backed by the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/graphmind/core"
)

// Options configures the Anthropic reasoner adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Reasoner wraps the Anthropic Messages API behind the core.Reasoner interface.
type Reasoner struct {
	client *anthropic.Client
	opts   Options
}

var _ core.Reasoner = (*Reasoner)(nil)

// NewReasoner creates a new Anthropic reasoner using the official client.
func NewReasoner(optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Reasoner{
		client: &client,
		opts:   opts,
	}
}

// NewReasonerFromClient creates a new Anthropic reasoner from an existing client.
func NewReasonerFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Reasoner{
		client: client,
		opts:   opts,
	}
}

// Generate implements core.Reasoner. Graph context is supplied as system
// blocks; the prompt becomes the single user message.
func (r *Reasoner) Generate(ctx context.Context, prompt string, contextTexts []string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       r.opts.Model,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		MaxTokens:   r.opts.MaxTokens,
		Temperature: anthropic.Float(r.opts.Temperature),
	}

	var systemBlocks []anthropic.TextBlockParam
	for _, c := range contextTexts {
		if c != "" {
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: c})
		}
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return sb.String(), nil
}
