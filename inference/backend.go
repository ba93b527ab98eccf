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

package inference

import (
	"context"
)

// Backend is the model-serving system the Manager drives. Implementations
// live under backend/.
type Backend interface {
	// Name identifies the backend in logs, metrics and status.
	Name() string

	// IsAvailable returns nil when the backend is reachable.
	IsAvailable(ctx context.Context) error

	// IsModelAvailable reports whether the model is present locally (or
	// served, for hosted backends).
	IsModelAvailable(ctx context.Context, name string) (bool, error)

	// PullModel fetches a model that is not yet available.
	PullModel(ctx context.Context, name string) error

	// ModelInfo describes a model. Unknown fields are left zero.
	ModelInfo(ctx context.Context, name string) (ModelDescriptor, error)

	// Generate runs one completion and returns the produced text.
	Generate(ctx context.Context, name, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions are the per-call sampling settings passed to a Backend.
type GenerateOptions struct {
	Temperature   float64
	MaxTokens     int
	ContextWindow int
	System        string
}

// ModelDescriptor is what a Backend knows about a model.
type ModelDescriptor struct {
	Name   string `json:"name"`
	Family string `json:"family,omitempty"`

	// ParameterSize is the size label reported by the backend, e.g. "8.0B".
	ParameterSize string `json:"parameterSize,omitempty"`

	// ParameterCount is in billions. Zero when unknown.
	ParameterCount float64 `json:"parameterCount,omitempty"`

	ContextWindow int    `json:"contextWindow,omitempty"`
	Quantization  string `json:"quantization,omitempty"`
	SizeBytes     int64  `json:"sizeBytes,omitempty"`

	// MaxOutputTokens caps the completion length. Zero means no cap.
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`

	// Hosted is true for models served by a remote provider, where
	// parameter counts are not published and memory is not local.
	Hosted bool `json:"hosted,omitempty"`
}
