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
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/achetronic/lexguard/config"
	"github.com/achetronic/lexguard/errors"
)

const (
	// MinParametersB is the smallest accepted model size, in billions.
	MinParametersB = 7.0
	// MinContextWindow is the smallest accepted model context window.
	MinContextWindow = 50000

	warmupPrompt = "Reply with the single word OK."
)

var parameterPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)b(?:[^a-z]|$)`)

// ParseParameterCount extracts a parameter count in billions from a model
// name or size label ("llama3.1:8b", "qwen2.5-14B-instruct", "8.0B").
// Returns 0 when no size can be found.
func ParseParameterCount(s string) float64 {
	m := parameterPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return n
}

// loadRun carries the values one Load attempt builds up stage by stage.
type loadRun struct {
	settings   config.Model
	descriptor ModelDescriptor
	params     float64
	context    int
}

// stage is one step of the load pipeline. Each returns a classified error
// and stops the chain on failure.
type stage struct {
	name string
	run  func(ctx context.Context, r *loadRun) error
}

func (m *Manager) loadStages() []stage {
	return []stage{
		{"checkBackend", m.checkBackend},
		{"ensureModel", m.ensureModel},
		{"describe", m.describe},
		{"verify", m.verify},
		{"warmup", m.warmup},
	}
}

func (m *Manager) checkBackend(ctx context.Context, _ *loadRun) error {
	if err := m.backend.IsAvailable(ctx); err != nil {
		return errors.BackendUnavailable("Manager", "checkBackend", err)
	}
	return nil
}

func (m *Manager) ensureModel(ctx context.Context, r *loadRun) error {
	name := r.settings.ModelName

	ok, err := m.backend.IsModelAvailable(ctx, name)
	if err != nil {
		return errors.BackendUnavailable("Manager", "ensureModel", err)
	}
	if ok {
		return nil
	}

	m.logger.Info("Manager: model not present, pulling", "backend", m.backend.Name(), "model", name)
	start := time.Now()
	if err := m.backend.PullModel(ctx, name); err != nil {
		return errors.BackendUnavailable("Manager", "ensureModel", fmt.Errorf("pull %s: %w", name, err))
	}
	m.logger.Info("Manager: model pulled", "model", name, "duration", time.Since(start))
	return nil
}

func (m *Manager) describe(ctx context.Context, r *loadRun) error {
	name := r.settings.ModelName

	d, err := m.backend.ModelInfo(ctx, name)
	if err != nil {
		return errors.BackendUnavailable("Manager", "describe", fmt.Errorf("model info for %s: %w", name, err))
	}
	if d.Name == "" {
		d.Name = name
	}

	if m.registry != nil {
		if known, ok := m.registry.Describe(name); ok {
			if d.ContextWindow == 0 {
				d.ContextWindow = known.ContextWindow
			}
			if d.Family == "" {
				d.Family = known.Family
			}
			if d.MaxOutputTokens == 0 {
				d.MaxOutputTokens = m.registry.DefaultMaxTokens(name)
			}
		}
	}
	if d.MaxOutputTokens > 0 && r.settings.MaxTokens > d.MaxOutputTokens {
		m.logger.Warn("Manager: configured maxTokens exceeds model output limit, clamping",
			"model", name,
			"configured", r.settings.MaxTokens,
			"limit", d.MaxOutputTokens,
		)
	}

	r.descriptor = d
	return nil
}

func (m *Manager) verify(_ context.Context, r *loadRun) error {
	d := r.descriptor

	params := ParseParameterCount(r.settings.ModelName)
	if params == 0 {
		params = d.ParameterCount
	}
	if params == 0 {
		params = ParseParameterCount(d.ParameterSize)
	}

	switch {
	case params == 0 && !d.Hosted:
		return errors.ModelRequirement("Manager", "verify",
			"cannot determine the parameter count of %s", r.settings.ModelName)
	case params > 0 && params < MinParametersB:
		return errors.ModelRequirement("Manager", "verify",
			"%s has %.1fB parameters, at least %.0fB required", r.settings.ModelName, params, MinParametersB)
	}

	capacity := d.ContextWindow
	if capacity == 0 {
		capacity = r.settings.ContextWindow
	}
	if capacity < MinContextWindow {
		return errors.ModelRequirement("Manager", "verify",
			"%s supports a %d token context window, at least %d required", r.settings.ModelName, capacity, MinContextWindow)
	}

	r.params = params
	r.context = min(r.settings.ContextWindow, capacity)
	if r.context < r.settings.ContextWindow {
		m.logger.Warn("Manager: configured context window exceeds model capacity, clamping",
			"model", r.settings.ModelName,
			"configured", r.settings.ContextWindow,
			"capacity", capacity,
		)
	}
	return nil
}

func (m *Manager) warmup(ctx context.Context, r *loadRun) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.settings.Timeout)*time.Millisecond)
	defer cancel()

	text, err := m.backend.Generate(ctx, r.settings.ModelName, warmupPrompt, GenerateOptions{
		Temperature:   0,
		MaxTokens:     8,
		ContextWindow: r.context,
	})
	if err != nil {
		return errors.Inference("Manager", "warmup", err)
	}
	if strings.TrimSpace(text) == "" {
		return errors.Inference("Manager", "warmup", fmt.Errorf("empty response from %s", r.settings.ModelName))
	}
	return nil
}
