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

// Package ollama implements inference.Backend over the Ollama API client.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/achetronic/lexguard/inference"
)

// Backend talks to an Ollama server.
type Backend struct {
	client *api.Client
}

// Config holds configuration for Backend.
type Config struct {
	// BaseURL of the Ollama server (default: "http://localhost:11434")
	BaseURL string

	// HTTPClient allows customizing the HTTP client used for requests.
	// Useful for testing with mock servers. Pulls can take minutes, so
	// the default client has no timeout and relies on contexts.
	HTTPClient *http.Client
}

// New creates an Ollama backend. An unparsable BaseURL falls back to the
// default address.
func New(cfg Config) *Backend {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if cfg.BaseURL == "" || err != nil || base.Host == "" {
		base = &url.URL{Scheme: "http", Host: "localhost:11434"}
	}
	return &Backend{client: api.NewClient(base, httpClient)}
}

func (b *Backend) Name() string { return "ollama" }

// IsAvailable checks the version endpoint.
func (b *Backend) IsAvailable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	version, err := b.client.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to call ollama version: %w", err)
	}
	if version == "" {
		return fmt.Errorf("ollama reported no version")
	}
	return nil
}

// IsModelAvailable looks the model up in the local tags list.
func (b *Backend) IsModelAvailable(ctx context.Context, name string) (bool, error) {
	list, err := b.client.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list ollama models: %w", err)
	}
	for _, m := range list.Models {
		if matchesTag(m.Name, name) || matchesTag(m.Model, name) {
			return true, nil
		}
	}
	return false, nil
}

// matchesTag compares model names, treating a missing tag as ":latest".
func matchesTag(have, want string) bool {
	if have == want {
		return true
	}
	if !strings.Contains(want, ":") {
		return have == want+":latest"
	}
	return false
}

// PullModel downloads a model and waits for completion.
func (b *Backend) PullModel(ctx context.Context, name string) error {
	stream := false
	status := ""
	err := b.client.Pull(ctx, &api.PullRequest{Model: name, Stream: &stream}, func(p api.ProgressResponse) error {
		status = p.Status
		return nil
	})
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}
	if status != "success" {
		return fmt.Errorf("pull ended with status %q", status)
	}
	return nil
}

// ModelInfo reads the model card from /api/show.
func (b *Backend) ModelInfo(ctx context.Context, name string) (inference.ModelDescriptor, error) {
	show, err := b.client.Show(ctx, &api.ShowRequest{Model: name})
	if err != nil {
		return inference.ModelDescriptor{}, fmt.Errorf("failed to show ollama model: %w", err)
	}

	d := inference.ModelDescriptor{
		Name:          name,
		Family:        show.Details.Family,
		ParameterSize: show.Details.ParameterSize,
		Quantization:  show.Details.QuantizationLevel,
	}

	if count := number(show.ModelInfo["general.parameter_count"]); count > 0 {
		d.ParameterCount = count / 1e9
	}
	if arch, _ := show.ModelInfo["general.architecture"].(string); arch != "" {
		d.ContextWindow = int(number(show.ModelInfo[arch+".context_length"]))
	}
	return d, nil
}

// number reads a JSON number decoded into an any.
func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// Generate runs a non-streaming completion.
func (b *Backend) Generate(ctx context.Context, name, prompt string, opts inference.GenerateOptions) (string, error) {
	options := map[string]any{
		"temperature": opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if opts.ContextWindow > 0 {
		options["num_ctx"] = opts.ContextWindow
	}

	stream := false
	req := &api.GenerateRequest{
		Model:   name,
		Prompt:  prompt,
		System:  opts.System,
		Stream:  &stream,
		Options: options,
	}

	var out strings.Builder
	err := b.client.Generate(ctx, req, func(r api.GenerateResponse) error {
		out.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate failed: %w", err)
	}
	return out.String(), nil
}

// Ensure interface is implemented
var _ inference.Backend = (*Backend)(nil)
