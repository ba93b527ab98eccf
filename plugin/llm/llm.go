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

// Package llm provides an AI-backed plugin that runs analysis.ModelAnalyzer
// on a model lifecycle manager.
//
// Initialize loads the model when the manager has none loaded. Cleanup
// unloads it only when this plugin performed the load, so a plugin sharing
// the orchestrator's manager never tears down a model it did not bring up.
package llm

import (
	"context"
	"log/slog"
	"sync"

	"github.com/achetronic/lexguard/analysis"
	"github.com/achetronic/lexguard/config"
	"github.com/achetronic/lexguard/errors"
	"github.com/achetronic/lexguard/inference"
	"github.com/achetronic/lexguard/plugin"
)

const (
	Name    = "llm"
	Version = "1.0.0"
)

// Model is the manager surface the plugin needs. *inference.Manager
// implements it.
type Model interface {
	analysis.Inferrer
	State() inference.State
	Load(ctx context.Context, overrides config.Values) error
	Unload()
}

// Config holds configuration for Plugin.
type Config struct {
	Model Model
	// Store supplies the analysis, extraction and risk namespaces. Nil uses
	// compiled defaults.
	Store *config.Store
	// LoadOverrides are passed to Load when Initialize loads the model.
	LoadOverrides config.Values
	Logger        *slog.Logger
}

// Plugin analyzes contracts through model inference.
type Plugin struct {
	model     Model
	analyzer  *analysis.ModelAnalyzer
	store     *config.Store
	overrides config.Values
	logger    *slog.Logger

	mu     sync.Mutex
	loaded bool
}

// New creates an LLM plugin.
func New(cfg Config) *Plugin {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Plugin{
		model:     cfg.Model,
		analyzer:  analysis.NewModelAnalyzer(cfg.Model, logger),
		store:     cfg.Store,
		overrides: config.Clone(cfg.LoadOverrides),
		logger:    logger,
	}
}

// Initialize loads the model unless one is already serving.
func (p *Plugin) Initialize(ctx context.Context) error {
	if p.model == nil {
		return errors.Validation("LLMPlugin", "Initialize", "no model manager configured")
	}
	if p.model.State().Serving() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.model.Load(ctx, p.overrides); err != nil {
		return err
	}
	p.loaded = true
	p.logger.Info("LLMPlugin: model loaded", "model", p.model.Settings().ModelName)
	return nil
}

func (p *Plugin) settings(opts analysis.Options) (analysis.Settings, error) {
	s, err := analysis.LoadSettings(p.store)
	if err != nil {
		return s, err
	}
	return s.With(opts)
}

func (p *Plugin) ProcessContract(ctx context.Context, text string, opts analysis.Options) (*analysis.Result, error) {
	s, err := p.settings(opts)
	if err != nil {
		return nil, err
	}
	return p.analyzer.Analyze(ctx, text, s)
}

// ExtractClauses returns the model's clauses that reach the confidence
// threshold.
func (p *Plugin) ExtractClauses(ctx context.Context, text string, opts analysis.Options) ([]analysis.Clause, error) {
	s, err := p.settings(opts)
	if err != nil {
		return nil, err
	}
	clauses, err := p.analyzer.ExtractClauses(ctx, text, s)
	if err != nil {
		return nil, err
	}
	return analysis.FilterClauses(clauses, s.Analysis.ConfidenceThreshold), nil
}

func (p *Plugin) AnalyzeRisks(ctx context.Context, clauses []analysis.Clause, opts analysis.Options) (*analysis.RiskReport, error) {
	s, err := p.settings(opts)
	if err != nil {
		return nil, err
	}
	return p.analyzer.AnalyzeRisks(ctx, clauses, s)
}

func (p *Plugin) Capabilities() []plugin.Capability {
	return []plugin.Capability{
		plugin.CapabilityProcessContract,
		plugin.CapabilityExtractClauses,
		plugin.CapabilityAnalyzeRisks,
		plugin.CapabilitySummarize,
		plugin.CapabilityModelInference,
	}
}

func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        Name,
		Version:     Version,
		Description: "Model-driven contract analysis",
		Author:      "lexguard",
	}
}

// Cleanup unloads the model if Initialize loaded it.
func (p *Plugin) Cleanup(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		p.model.Unload()
		p.loaded = false
		p.logger.Info("LLMPlugin: model unloaded")
	}
	return nil
}

// Ensure interface is implemented
var _ plugin.Plugin = (*Plugin)(nil)
