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
	"log/slog"

	"charm.land/catwalk/pkg/catwalk"
	"charm.land/catwalk/pkg/embedded"
)

const (
	defaultRegistryContextWindow = 128000
	defaultRegistryMaxTokens     = 4096
)

// ModelRegistry provides model metadata that backends do not report
// themselves. Implementations can read a compiled database, a local config,
// or a static map.
type ModelRegistry interface {
	// ContextWindow returns the context window (in tokens) for the model, or
	// a reasonable default when it is unknown.
	ContextWindow(modelID string) int

	// DefaultMaxTokens returns the default output token limit for the model,
	// or a reasonable default when it is unknown.
	DefaultMaxTokens(modelID string) int

	// Describe returns a descriptor for a known model.
	Describe(modelID string) (ModelDescriptor, bool)
}

// CrushRegistry implements ModelRegistry using catwalk's embedded model
// database. Everything is compiled into the binary; lookups never touch the
// network.
//
// Usage:
//
//	registry := inference.NewCrushRegistry()
//	backend := anthropic.New(anthropic.Config{APIKey: key, Registry: registry})
type CrushRegistry struct {
	models    map[string]catwalk.Model
	providers map[string]string
}

// NewCrushRegistry creates a registry pre-loaded with every model from
// catwalk's embedded provider database.
func NewCrushRegistry() *CrushRegistry {
	models := make(map[string]catwalk.Model)
	providers := make(map[string]string)
	for _, provider := range embedded.GetAll() {
		for _, m := range provider.Models {
			models[m.ID] = m
			providers[m.ID] = string(provider.ID)
		}
	}

	slog.Info("CrushRegistry: loaded models from catwalk", "count", len(models))

	return &CrushRegistry{models: models, providers: providers}
}

// ContextWindow returns the context window for the model, or 128000.
func (r *CrushRegistry) ContextWindow(modelID string) int {
	if m, ok := r.models[modelID]; ok && m.ContextWindow > 0 {
		return int(m.ContextWindow)
	}
	return defaultRegistryContextWindow
}

// DefaultMaxTokens returns the default output limit for the model, or 4096.
func (r *CrushRegistry) DefaultMaxTokens(modelID string) int {
	if m, ok := r.models[modelID]; ok && m.DefaultMaxTokens > 0 {
		return int(m.DefaultMaxTokens)
	}
	return defaultRegistryMaxTokens
}

// Describe returns a hosted descriptor for models known to catwalk.
func (r *CrushRegistry) Describe(modelID string) (ModelDescriptor, bool) {
	m, ok := r.models[modelID]
	if !ok {
		return ModelDescriptor{}, false
	}
	return ModelDescriptor{
		Name:            m.ID,
		Family:          r.providers[modelID],
		ParameterCount:  ParseParameterCount(m.ID),
		ContextWindow:   int(m.ContextWindow),
		MaxOutputTokens: r.DefaultMaxTokens(modelID),
		Hosted:          true,
	}, true
}

// StaticRegistry is a ModelRegistry over a fixed map, for local models the
// embedded database does not know.
type StaticRegistry struct {
	Models map[string]ModelDescriptor
}

func (r StaticRegistry) ContextWindow(modelID string) int {
	if d, ok := r.Models[modelID]; ok && d.ContextWindow > 0 {
		return d.ContextWindow
	}
	return defaultRegistryContextWindow
}

func (r StaticRegistry) DefaultMaxTokens(modelID string) int {
	if d, ok := r.Models[modelID]; ok && d.MaxOutputTokens > 0 {
		return d.MaxOutputTokens
	}
	return defaultRegistryMaxTokens
}

func (r StaticRegistry) Describe(modelID string) (ModelDescriptor, bool) {
	d, ok := r.Models[modelID]
	return d, ok
}
