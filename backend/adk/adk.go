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

// Package adk adapts ADK model.LLM implementations to inference.Backend, so
// any model an ADK agent already uses can back the model manager.
//
// Usage:
//
//	backend := adk.New(adk.Config{
//	    Models: map[string]model.LLM{"gemini-2.5-pro": llm},
//	})
//	manager, _ := inference.NewManager(inference.ManagerConfig{Backend: backend})
package adk

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/achetronic/lexguard/inference"
)

// Backend serves a fixed set of ADK models keyed by name.
type Backend struct {
	models   map[string]model.LLM
	registry inference.ModelRegistry
	hosted   bool
}

// Config holds configuration for Backend.
type Config struct {
	// Models maps model names to LLM instances. When an LLM is added without
	// a key, its Name() is used.
	Models map[string]model.LLM
	// Registry supplies descriptors. Defaults to inference.NewCrushRegistry().
	Registry inference.ModelRegistry
	// Local marks the models as running on this host so the manager
	// estimates their memory. Defaults to hosted.
	Local bool
}

// New creates an ADK-backed backend.
func New(cfg Config) *Backend {
	models := make(map[string]model.LLM, len(cfg.Models))
	for name, llm := range cfg.Models {
		if llm == nil {
			continue
		}
		if name == "" {
			name = llm.Name()
		}
		models[name] = llm
	}

	registry := cfg.Registry
	if registry == nil {
		registry = inference.NewCrushRegistry()
	}

	return &Backend{models: models, registry: registry, hosted: !cfg.Local}
}

func (b *Backend) Name() string { return "adk" }

// IsAvailable reports an error when no model has been configured.
func (b *Backend) IsAvailable(_ context.Context) error {
	if len(b.models) == 0 {
		return fmt.Errorf("no ADK models configured")
	}
	return nil
}

func (b *Backend) IsModelAvailable(_ context.Context, name string) (bool, error) {
	_, ok := b.models[name]
	return ok, nil
}

// PullModel is not supported: models are provided at construction.
func (b *Backend) PullModel(_ context.Context, name string) error {
	return fmt.Errorf("model %s is not configured; available: %s", name, strings.Join(b.names(), ", "))
}

func (b *Backend) ModelInfo(_ context.Context, name string) (inference.ModelDescriptor, error) {
	llm, ok := b.models[name]
	if !ok {
		return inference.ModelDescriptor{}, fmt.Errorf("model %s is not configured", name)
	}

	// The registry is keyed by provider model id, which may differ from the
	// key the model was registered under.
	d, found := b.registry.Describe(llm.Name())
	if !found {
		d, found = b.registry.Describe(name)
	}
	if !found {
		d = inference.ModelDescriptor{ContextWindow: b.registry.ContextWindow(llm.Name())}
	}
	d.Name = name
	d.Hosted = b.hosted
	return d, nil
}

// Generate issues a non-streaming request and concatenates the text parts of
// every response.
func (b *Backend) Generate(ctx context.Context, name, prompt string, opts inference.GenerateOptions) (string, error) {
	llm, ok := b.models[name]
	if !ok {
		return "", fmt.Errorf("model %s is not configured", name)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: opts.System}},
		}
	}

	req := &model.LLMRequest{
		Model: llm.Name(),
		Contents: []*genai.Content{
			{
				Role:  "user",
				Parts: []*genai.Part{{Text: prompt}},
			},
		},
		Config: cfg,
	}

	var result strings.Builder
	for resp, err := range llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", fmt.Errorf("LLM call failed: %w", err)
		}
		if resp != nil && resp.Content != nil {
			for _, part := range resp.Content.Parts {
				if part != nil && part.Text != "" {
					result.WriteString(part.Text)
				}
			}
		}
	}
	return result.String(), nil
}

func (b *Backend) names() []string {
	names := make([]string, 0, len(b.models))
	for name := range b.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ensure interface is implemented
var _ inference.Backend = (*Backend)(nil)
