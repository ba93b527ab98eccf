// Copyright 2025 achetronic
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package anthropic implements inference.Backend over the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/achetronic/lexguard/inference"
)

const defaultMaxTokens = 1024

// Backend wraps an anthropic-sdk-go client.
type Backend struct {
	client   anthropic.Client
	registry inference.ModelRegistry
}

// Config holds configuration for Backend.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// Registry supplies context windows. Defaults to inference.NewCrushRegistry().
	Registry inference.ModelRegistry
	// MaxRetries for the SDK's own transport retries (default: 0).
	MaxRetries int
	// HTTPClient allows customizing the HTTP client used for requests.
	HTTPClient *http.Client
}

// New creates an Anthropic backend.
func New(cfg Config) *Backend {
	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/"))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	registry := cfg.Registry
	if registry == nil {
		registry = inference.NewCrushRegistry()
	}

	return &Backend{
		client:   anthropic.NewClient(opts...),
		registry: registry,
	}
}

func (b *Backend) Name() string { return "anthropic" }

// IsAvailable lists models as a reachability and credentials check.
func (b *Backend) IsAvailable(ctx context.Context) error {
	if _, err := b.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	return nil
}

// IsModelAvailable retrieves the model; a 404 means it does not exist.
func (b *Backend) IsModelAvailable(ctx context.Context, name string) (bool, error) {
	_, err := b.client.Models.Get(ctx, name, anthropic.ModelGetParams{})
	if err == nil {
		return true, nil
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("failed to get model %s: %w", name, err)
}

// PullModel is not supported for hosted models.
func (b *Backend) PullModel(_ context.Context, name string) error {
	return fmt.Errorf("model %s does not exist and hosted models cannot be pulled", name)
}

// ModelInfo builds a hosted descriptor from the model registry.
func (b *Backend) ModelInfo(_ context.Context, name string) (inference.ModelDescriptor, error) {
	d, ok := b.registry.Describe(name)
	if !ok {
		d = inference.ModelDescriptor{
			Name:          name,
			Family:        "anthropic",
			ContextWindow: b.registry.ContextWindow(name),
		}
	}
	d.Hosted = true
	return d, nil
}

// Generate sends one user message and concatenates the text blocks of the
// reply.
func (b *Backend) Generate(ctx context.Context, name, prompt string, opts inference.GenerateOptions) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(name),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(opts.Temperature),
	}
	if opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.System}}
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("messages call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// Ensure interface is implemented
var _ inference.Backend = (*Backend)(nil)
