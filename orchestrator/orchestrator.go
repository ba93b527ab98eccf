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

// Package orchestrator implements the fallback analysis orchestrator and the
// composition root of lexguard.
//
// Every request tries, in order:
//
//   - plugin: the active plugin, when one is registered and initialized.
//   - model: direct model inference, when the manager is Healthy.
//   - rule_based: the deterministic rule engine.
//
// The two AI tiers are retried with exponential backoff up to the model
// namespace's retryAttempts. The tier that produced the result, the reason
// for any fallback and every attempt are recorded in the result metadata.
// When every tier fails the caller receives an *errors.AnalysisError.
//
// Usage:
//
//	manager, _ := inference.NewManager(inference.ManagerConfig{Backend: backend, Store: store})
//	orch, _ := orchestrator.New(orchestrator.Config{Store: store, Manager: manager})
//	result, err := orch.ProcessContract(ctx, text, analysis.Options{})
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/achetronic/lexguard/analysis"
	"github.com/achetronic/lexguard/config"
	"github.com/achetronic/lexguard/errors"
	"github.com/achetronic/lexguard/inference"
	"github.com/achetronic/lexguard/metrics"
	"github.com/achetronic/lexguard/plugin"
)

const tracerName = "github.com/achetronic/lexguard/orchestrator"

// Config holds configuration for Orchestrator. Only Manager is needed for
// the model tier; without it requests go from the plugin tier straight to
// the rule engine.
type Config struct {
	// Store holds every namespace. Defaults to the Manager's store, or a new
	// in-memory store.
	Store   *config.Store
	Manager *inference.Manager
	// Plugins defaults to an empty registry.
	Plugins *plugin.Registry
	// Rules defaults to analysis.NewRuleEngine.
	Rules *analysis.RuleEngine
	// Analyzer defaults to a ModelAnalyzer over Manager.
	Analyzer *analysis.ModelAnalyzer

	Logger         *slog.Logger
	Metrics        *metrics.Registry
	TracerProvider trace.TracerProvider
}

// Orchestrator routes analysis requests through the fallback tiers and
// exposes the administrative surface of the manager, the plugin registry
// and the configuration store.
type Orchestrator struct {
	store    *config.Store
	manager  *inference.Manager
	plugins  *plugin.Registry
	rules    *analysis.RuleEngine
	analyzer *analysis.ModelAnalyzer

	logger  *slog.Logger
	metrics *metrics.Registry
	tracer  trace.Tracer

	mu    sync.Mutex
	stats Stats
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := cfg.Store
	if store == nil && cfg.Manager != nil {
		store = cfg.Manager.Store()
	}
	if store == nil {
		store = config.NewStore(config.StoreConfig{Logger: logger, Metrics: cfg.Metrics})
	}
	if cfg.Manager != nil && cfg.Manager.Store() != store {
		return nil, errors.Validation("Orchestrator", "New", "manager and orchestrator must share the configuration store")
	}

	plugins := cfg.Plugins
	if plugins == nil {
		plugins = plugin.NewRegistry(plugin.RegistryConfig{Logger: logger, Metrics: cfg.Metrics})
	}
	rules := cfg.Rules
	if rules == nil {
		rules = analysis.NewRuleEngine(logger)
	}
	analyzer := cfg.Analyzer
	if analyzer == nil && cfg.Manager != nil {
		analyzer = analysis.NewModelAnalyzer(cfg.Manager, logger)
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}

	return &Orchestrator{
		store:    store,
		manager:  cfg.Manager,
		plugins:  plugins,
		rules:    rules,
		analyzer: analyzer,
		logger:   logger,
		metrics:  cfg.Metrics,
		tracer:   tp.Tracer(tracerName),
		stats:    Stats{ByMethod: map[string]int64{}},
	}, nil
}

// request is the resolved state of one call.
type request struct {
	settings analysis.Settings
	policy   retryPolicy
}

func (o *Orchestrator) resolve(opts analysis.Options) (request, error) {
	settings, err := analysis.LoadSettings(o.store)
	if err != nil {
		return request{}, err
	}
	settings, err = settings.With(opts)
	if err != nil {
		return request{}, err
	}

	model, err := o.store.ModelSettings()
	if err != nil {
		return request{}, err
	}
	perf, err := o.store.PerformanceSettings()
	if err != nil {
		return request{}, err
	}
	return request{settings: settings, policy: newRetryPolicy(model, perf)}, nil
}

// ProcessContract analyzes text through the fallback tiers. Invalid input
// is rejected before any tier runs.
func (o *Orchestrator) ProcessContract(ctx context.Context, text string, opts analysis.Options) (*analysis.Result, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "orchestrator.ProcessContract", trace.WithAttributes(
		attribute.Int("text.length", len(text)),
	))
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, o.reject(span, errors.Validation("Orchestrator", "ProcessContract", "contract text is empty"))
	}
	req, err := o.resolve(opts)
	if err != nil {
		return nil, o.reject(span, err)
	}
	if limit := req.settings.Analysis.MaxDocumentLength; limit > 0 && len(text) > limit {
		return nil, o.reject(span, errors.Validation("Orchestrator", "ProcessContract",
			"contract text is %d characters, maximum is %d", len(text), limit))
	}

	// Snapshot so a concurrent switch does not affect this request.
	active, info, hasPlugin := o.plugins.Active()

	tiers := []tier[*analysis.Result]{
		{
			name:  analysis.MethodPlugin,
			skip:  pluginSkipReason(hasPlugin, info),
			retry: true,
			run: func(ctx context.Context) (*analysis.Result, error) {
				return plugin.ProcessWith(ctx, active, info, text, opts)
			},
		},
		{
			name:  analysis.MethodModel,
			skip:  o.modelSkipReason(),
			retry: true,
			run: func(ctx context.Context) (*analysis.Result, error) {
				return o.analyzer.Analyze(ctx, text, req.settings)
			},
		},
		{
			name: analysis.MethodRuleBased,
			run: func(context.Context) (*analysis.Result, error) {
				return o.rules.Analyze(text, req.settings)
			},
		},
	}

	out, err := runTiers(ctx, o, "ProcessContract", req.policy, tiers)
	elapsed := time.Since(start)
	if err != nil {
		o.count("", false, false)
		o.metrics.ObserveAnalysis("none", false, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "all tiers failed")
		o.logger.Error("Orchestrator: analysis failed", "error", err, "duration", elapsed)
		return nil, err
	}

	res := out.value
	res.Metadata.ProcessingMethod = out.method
	res.Metadata.FallbackReason = out.reason
	res.Metadata.Attempts = out.attempts
	res.Metadata.ProcessingTime = elapsed
	if out.method == analysis.MethodModel && res.Metadata.ModelUsed == "" {
		res.Metadata.ModelUsed = o.manager.Settings().ModelName
	}

	o.count(out.method, true, out.reason != "")
	o.metrics.ObserveAnalysis(out.method, true, elapsed)
	span.SetAttributes(
		attribute.String("processing.method", out.method),
		attribute.Int("clauses", len(res.Clauses)),
		attribute.Int("risks", len(res.Risks)),
	)

	o.logger.Info("Orchestrator: contract analyzed",
		"method", out.method,
		"fallbackReason", out.reason,
		"clauses", len(res.Clauses),
		"risks", len(res.Risks),
		"duration", elapsed,
	)
	return res, nil
}

// AnalyzeRisks runs risk analysis over already extracted clauses through
// the same tiers. A nil slice is a Validation error; an empty slice yields
// an empty report.
func (o *Orchestrator) AnalyzeRisks(ctx context.Context, clauses []analysis.Clause, opts analysis.Options) (*analysis.RiskReport, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.AnalyzeRisks", trace.WithAttributes(
		attribute.Int("clauses", len(clauses)),
	))
	defer span.End()

	if clauses == nil {
		return nil, o.reject(span, errors.Validation("Orchestrator", "AnalyzeRisks", "clauses must be a list, got nil"))
	}
	req, err := o.resolve(opts)
	if err != nil {
		return nil, o.reject(span, err)
	}
	if len(clauses) == 0 {
		return analysis.NewRiskReport(nil, req.settings), nil
	}

	active, info, hasPlugin := o.plugins.Active()
	tiers := []tier[*analysis.RiskReport]{
		{
			name:  analysis.MethodPlugin,
			skip:  pluginSkipReason(hasPlugin, info),
			retry: true,
			run: func(ctx context.Context) (*analysis.RiskReport, error) {
				report, err := active.AnalyzeRisks(ctx, clauses, opts)
				if err == nil && report == nil {
					err = errors.PluginContract("Orchestrator", "AnalyzeRisks", "plugin %q returned no report", info.Name)
				}
				return report, err
			},
		},
		{
			name:  analysis.MethodModel,
			skip:  o.modelSkipReason(),
			retry: true,
			run: func(ctx context.Context) (*analysis.RiskReport, error) {
				return o.analyzer.AnalyzeRisks(ctx, clauses, req.settings)
			},
		},
		{
			name: analysis.MethodRuleBased,
			run: func(context.Context) (*analysis.RiskReport, error) {
				return o.rules.AnalyzeRisks(clauses, req.settings)
			},
		},
	}

	out, err := runTiers(ctx, o, "AnalyzeRisks", req.policy, tiers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "all tiers failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("processing.method", out.method))
	return out.value, nil
}

func pluginSkipReason(ok bool, info plugin.Info) string {
	switch {
	case !ok:
		return "no active plugin"
	case !info.Initialized:
		return fmt.Sprintf("plugin %q is not initialized", info.Name)
	default:
		return ""
	}
}

func (o *Orchestrator) modelSkipReason() string {
	if o.manager == nil || o.analyzer == nil {
		return "no model manager configured"
	}
	if state := o.manager.State(); state != inference.StateHealthy {
		return fmt.Sprintf("model is %s", state)
	}
	return ""
}

func (o *Orchestrator) reject(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "rejected")
	o.logger.Warn("Orchestrator: request rejected", "error", err)
	return err
}
