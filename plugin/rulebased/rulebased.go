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

// Package rulebased provides a deterministic plugin over analysis.RuleEngine.
package rulebased

import (
	"context"
	"log/slog"

	"github.com/achetronic/lexguard/analysis"
	"github.com/achetronic/lexguard/config"
	"github.com/achetronic/lexguard/plugin"
)

const (
	Name    = "rule-based"
	Version = "1.0.0"
)

// Config holds configuration for Plugin.
type Config struct {
	// Store supplies the analysis, extraction and risk namespaces. Nil uses
	// compiled defaults.
	Store  *config.Store
	Logger *slog.Logger
}

// Plugin analyzes contracts with keyword rules only.
type Plugin struct {
	engine *analysis.RuleEngine
	store  *config.Store
}

// New creates a rule-based plugin.
func New(cfg Config) *Plugin {
	return &Plugin{
		engine: analysis.NewRuleEngine(cfg.Logger),
		store:  cfg.Store,
	}
}

func (p *Plugin) settings(opts analysis.Options) (analysis.Settings, error) {
	s, err := analysis.LoadSettings(p.store)
	if err != nil {
		return s, err
	}
	return s.With(opts)
}

func (p *Plugin) Initialize(context.Context) error { return nil }

func (p *Plugin) ProcessContract(_ context.Context, text string, opts analysis.Options) (*analysis.Result, error) {
	s, err := p.settings(opts)
	if err != nil {
		return nil, err
	}
	return p.engine.Analyze(text, s)
}

// ExtractClauses returns the clauses that reach the confidence threshold.
func (p *Plugin) ExtractClauses(_ context.Context, text string, opts analysis.Options) ([]analysis.Clause, error) {
	s, err := p.settings(opts)
	if err != nil {
		return nil, err
	}
	return analysis.FilterClauses(p.engine.ExtractClauses(text, s), s.Analysis.ConfidenceThreshold), nil
}

func (p *Plugin) AnalyzeRisks(_ context.Context, clauses []analysis.Clause, opts analysis.Options) (*analysis.RiskReport, error) {
	s, err := p.settings(opts)
	if err != nil {
		return nil, err
	}
	return p.engine.AnalyzeRisks(clauses, s)
}

func (p *Plugin) Capabilities() []plugin.Capability {
	return []plugin.Capability{
		plugin.CapabilityProcessContract,
		plugin.CapabilityExtractClauses,
		plugin.CapabilityAnalyzeRisks,
		plugin.CapabilitySummarize,
	}
}

func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        Name,
		Version:     Version,
		Description: "Deterministic keyword and pattern based contract analysis",
		Author:      "lexguard",
	}
}

func (p *Plugin) Cleanup(context.Context) error { return nil }

// Ensure interface is implemented
var _ plugin.Plugin = (*Plugin)(nil)
