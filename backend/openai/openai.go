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

// Package openai implements inference.Backend for OpenAI and any server
// speaking the OpenAI chat completions API (vLLM, LiteLLM, LocalAI, Ollama's
// /v1 endpoint).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/achetronic/lexguard/inference"
)

// Backend wraps an openai-go client.
type Backend struct {
	client   openai.Client
	registry inference.ModelRegistry
	local    bool
}

// Config holds configuration for Backend.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. "http://localhost:8000/v1".
	BaseURL string
	// Local marks a self-hosted server. Local models must report their
	// size in the name to pass the capability checks.
	Local bool
	// Registry supplies context windows. Defaults to inference.NewCrushRegistry().
	Registry inference.ModelRegistry
	// MaxRetries for the SDK's own transport retries (default: 0; the
	// orchestrator owns retries).
	MaxRetries int
	// HTTPClient allows customizing the HTTP client used for requests.
	HTTPClient *http.Client
}

// New creates an OpenAI-compatible backend.
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
		client:   openai.NewClient(opts...),
		registry: registry,
		local:    cfg.Local,
	}
}

func (b *Backend) Name() string { return "openai" }

// IsAvailable lists models as a reachability and credentials check.
func (b *Backend) IsAvailable(ctx context.Context) error {
	if _, err := b.client.Models.List(ctx); err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	return nil
}

// IsModelAvailable retrieves the model; a 404 means it is not served.
func (b *Backend) IsModelAvailable(ctx context.Context, name string) (bool, error) {
	_, err := b.client.Models.Get(ctx, name)
	if err == nil {
		return true, nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("failed to get model %s: %w", name, err)
}

// PullModel is not supported: the server decides which models it serves.
func (b *Backend) PullModel(_ context.Context, name string) error {
	return fmt.Errorf("model %s is not served and cannot be pulled through the OpenAI API", name)
}

// ModelInfo builds a descriptor from the model registry.
func (b *Backend) ModelInfo(_ context.Context, name string) (inference.ModelDescriptor, error) {
	d, ok := b.registry.Describe(name)
	if !ok {
		d = inference.ModelDescriptor{
			Name:          name,
			ContextWindow: b.registry.ContextWindow(name),
		}
	}
	d.Hosted = !b.local
	return d, nil
}

// Generate runs one chat completion.
func (b *Backend) Generate(ctx context.Context, name, prompt string, opts inference.GenerateOptions) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if opts.System != "" {
		messages = append(messages, openai.SystemMessage(opts.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(name),
		Messages:    messages,
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Ensure interface is implemented
var _ inference.Backend = (*Backend)(nil)
