// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/leseb/quizsearch/pkg/embedding"
)

// compile-time check
var _ embedding.Provider = (*Provider)(nil)

// Options configures the OpenAI-compatible embedding provider.
type Options struct {
	BaseURL    string // e.g. "https://api.openai.com/v1"; any OpenAI-compatible server works
	APIKey     string
	Model      string // e.g. "text-embedding-3-small"
	Dimensions int
	Timeout    time.Duration // per request, including retries
	MaxRetries int           // -1 keeps the SDK default
}

// Provider implements embedding.Provider using the OpenAI SDK.
type Provider struct {
	client     openai.Client
	model      string
	dimensions int
}

// New creates an embedding provider with its own base URL and API key.
func New(opts Options) *Provider {
	reqOpts := []option.RequestOption{}

	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	} else {
		reqOpts = append(reqOpts, option.WithAPIKey("dummy"))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	if opts.MaxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(opts.MaxRetries))
	}

	return &Provider{
		client:     openai.NewClient(reqOpts...),
		model:      opts.Model,
		dimensions: opts.Dimensions,
	}
}

// Dimensions returns the vector length requested from the model.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// Embed generates the embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, embedding.NewProviderError("no text to embed", embedding.ErrEmptyText)
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if p.dimensions > 0 {
		params.Dimensions = openai.Int(int64(p.dimensions))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, embedding.NewProviderError("embedding request failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, embedding.NewProviderError("malformed response", fmt.Errorf("no embedding data"))
	}

	data := resp.Data[0].Embedding
	vec := make([]float32, len(data))
	for i, v := range data {
		vec[i] = float32(v)
	}
	return vec, nil
}
