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

// Package gemini implements inference.Backend over the Gemini API using
// google.golang.org/genai.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/achetronic/lexguard/inference"
)

// Backend wraps a genai client.
type Backend struct {
	client   *genai.Client
	registry inference.ModelRegistry
}

// Config holds configuration for Backend.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// Registry supplies context windows when the API does not report one.
	// Defaults to inference.NewCrushRegistry().
	Registry inference.ModelRegistry
	// HTTPClient allows customizing the HTTP client used for requests.
	HTTPClient *http.Client
}

// New creates a Gemini backend.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	registry := cfg.Registry
	if registry == nil {
		registry = inference.NewCrushRegistry()
	}

	return &Backend{client: client, registry: registry}, nil
}

func (b *Backend) Name() string { return "gemini" }

// IsAvailable lists one model as a reachability and credentials check.
func (b *Backend) IsAvailable(ctx context.Context) error {
	if _, err := b.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	return nil
}

// IsModelAvailable retrieves the model; a 404 means it does not exist.
func (b *Backend) IsModelAvailable(ctx context.Context, name string) (bool, error) {
	_, err := b.client.Models.Get(ctx, name, nil)
	if err == nil {
		return true, nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("failed to get model %s: %w", name, err)
}

// PullModel is not supported for hosted models.
func (b *Backend) PullModel(_ context.Context, name string) error {
	return fmt.Errorf("model %s does not exist and hosted models cannot be pulled", name)
}

// ModelInfo reads the input token limit from the API, falling back to the
// registry.
func (b *Backend) ModelInfo(ctx context.Context, name string) (inference.ModelDescriptor, error) {
	d := inference.ModelDescriptor{Name: name, Family: "gemini", Hosted: true}

	m, err := b.client.Models.Get(ctx, name, nil)
	if err != nil {
		return d, fmt.Errorf("failed to get model %s: %w", name, err)
	}
	d.ContextWindow = int(m.InputTokenLimit)
	if d.ContextWindow == 0 {
		d.ContextWindow = b.registry.ContextWindow(name)
	}
	return d, nil
}

// Generate runs one GenerateContent call and returns the response text.
func (b *Backend) Generate(ctx context.Context, name, prompt string, opts inference.GenerateOptions) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}

	resp, err := b.client.Models.GenerateContent(ctx, name, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}
	return resp.Text(), nil
}

// Ensure interface is implemented
var _ inference.Backend = (*Backend)(nil)
