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

// Package inference manages the lifecycle of one model on a pluggable
// inference backend: loading with capability checks, memory governance,
// health checks, inference with latency accounting, and atomic
// configuration updates that reload the model when needed.
//
// Usage:
//
//	mgr := inference.NewManager(inference.ManagerConfig{
//	    Backend: ollama.New(ollama.Config{BaseURL: "http://localhost:11434"}),
//	    Store:   store,
//	})
//	if err := mgr.Load(ctx, nil); err != nil {
//	    // state is Error, the orchestrator falls back to rules
//	}
//	text, err := mgr.Infer(ctx, prompt, inference.InferOptions{})
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/achetronic/lexguard/config"
	"github.com/achetronic/lexguard/errors"
	"github.com/achetronic/lexguard/metrics"
)

const tracerName = "github.com/achetronic/lexguard/inference"

// reloadFields are the model settings that require a reload when changed
// on a loaded model.
var reloadFields = []string{"modelName", "contextWindow", "memoryOptimization"}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Backend Backend

	// Registry fills in model metadata the backend does not report.
	Registry ModelRegistry

	// Store supplies the model and performance namespaces. A private store
	// with compiled defaults is used when nil.
	Store *config.Store

	Logger         *slog.Logger
	Metrics        *metrics.Registry
	TracerProvider trace.TracerProvider

	// MemoryProbe reports host memory for the default ceiling. Defaults to
	// HostMemory.
	MemoryProbe MemoryProbe
}

// InferOptions override the configured sampling settings for one call.
// Zero values keep the configuration.
type InferOptions struct {
	Temperature *float64
	MaxTokens   int
	System      string
	Timeout     time.Duration
}

// Manager is the ModelLifecycleManager. At most one model is loaded at a
// time. All methods are safe for concurrent use; lifecycle operations are
// serialized while inference calls run concurrently.
type Manager struct {
	backend     Backend
	registry    ModelRegistry
	store       *config.Store
	logger      *slog.Logger
	metrics     *metrics.Registry
	tracer      trace.Tracer
	memoryProbe MemoryProbe

	// lifecycle serializes Load, Unload and UpdateConfiguration.
	lifecycle sync.Mutex

	mu          sync.RWMutex
	cfg         config.Values
	settings    config.Model
	state       State
	loaded      bool
	generation  uint64
	descriptor  *ModelDescriptor
	attempt     string
	outputLimit int
	params      float64
	context     int
	optimized   bool
	memoryMB    float64
	ceilingMB   float64
	loadedAt    time.Time
	loadTime    time.Duration
	lastErr     error
	lastHealth  time.Time
	perf        Performance
}

// NewManager creates a Manager in the Unloaded state.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Backend == nil {
		return nil, errors.Validation("Manager", "New", "backend is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := cfg.Store
	if store == nil {
		store = config.NewStore(config.StoreConfig{Logger: logger})
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	probe := cfg.MemoryProbe
	if probe == nil {
		probe = HostMemory
	}

	values, err := store.Get(config.NamespaceModel)
	if err != nil {
		return nil, err
	}
	var settings config.Model
	if err := config.DecodeValues(values, &settings); err != nil {
		return nil, err
	}

	m := &Manager{
		backend:     cfg.Backend,
		registry:    cfg.Registry,
		store:       store,
		logger:      logger,
		metrics:     cfg.Metrics,
		tracer:      tp.Tracer(tracerName),
		memoryProbe: probe,
		cfg:         values,
		settings:    settings,
		state:       StateUnloaded,
	}
	m.metrics.SetModelState(m.backend.Name(), int(StateUnloaded))
	return m, nil
}

// Store returns the configuration store the Manager reads and writes.
func (m *Manager) Store() *config.Store {
	return m.store
}

// Backend returns the managed backend.
func (m *Manager) Backend() Backend {
	return m.backend
}

// Load merges overrides over the stored model configuration, validates the
// result and runs the load pipeline. Validation failures leave the Manager
// untouched. Any other failure leaves it in the Error state with the
// previous configuration kept. A model that is already loaded is unloaded
// first.
func (m *Manager) Load(ctx context.Context, overrides config.Values) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	base, err := m.store.Get(config.NamespaceModel)
	if err != nil {
		return err
	}
	merged := config.Merge(base, overrides)
	if err := config.ModelSchema.Validate(merged); err != nil {
		return err
	}
	return m.load(ctx, merged)
}

// load runs the pipeline for an already validated configuration. Callers
// hold m.lifecycle.
func (m *Manager) load(ctx context.Context, values config.Values) error {
	var settings config.Model
	if err := config.DecodeValues(values, &settings); err != nil {
		return errors.Validation("Manager", "Load", "%v", err)
	}

	ctx, span := m.tracer.Start(ctx, "inference.Load", trace.WithAttributes(
		attribute.String("backend", m.backend.Name()),
		attribute.String("model", settings.ModelName),
	))
	defer span.End()

	m.mu.Lock()
	if m.loaded || m.state != StateUnloaded {
		m.resetLocked()
	}
	m.attempt = settings.ModelName
	m.setStateLocked(StateLoading)
	m.mu.Unlock()

	m.logger.Info("Manager: loading model",
		"backend", m.backend.Name(),
		"model", settings.ModelName,
		"contextWindow", settings.ContextWindow,
	)

	start := time.Now()
	run := &loadRun{settings: settings}
	for _, st := range m.loadStages() {
		if err := st.run(ctx, run); err != nil {
			m.mu.Lock()
			m.lastErr = err
			m.setStateLocked(StateError)
			m.mu.Unlock()

			span.RecordError(err)
			span.SetStatus(codes.Error, st.name+" failed")
			m.logger.Error("Manager: load failed",
				"model", settings.ModelName,
				"stage", st.name,
				"error", err,
			)
			return err
		}
	}

	ceiling, err := memoryCeilingMB(m.performance().MaxMemoryMB, m.memoryProbe)
	if err != nil {
		m.logger.Warn("Manager: could not resolve memory ceiling, running unbounded", "error", err)
	}

	m.mu.Lock()
	d := run.descriptor
	m.cfg = config.Clone(values)
	m.settings = settings
	m.descriptor = &d
	m.outputLimit = d.MaxOutputTokens
	m.params = run.params
	m.context = run.context
	m.optimized = settings.MemoryOptimization
	m.ceilingMB = ceiling
	m.recomputeMemoryLocked()
	m.loaded = true
	m.generation++
	m.loadedAt = time.Now()
	m.loadTime = time.Since(start)
	m.lastErr = nil
	m.perf = Performance{}
	m.setStateLocked(StateHealthy)
	m.governMemoryLocked("load")
	loadTime, memoryMB := m.loadTime, m.memoryMB
	m.mu.Unlock()

	span.SetStatus(codes.Ok, "")
	m.logger.Info("Manager: model loaded",
		"model", settings.ModelName,
		"loadTime", loadTime,
		"estimatedMemoryMB", memoryMB,
		"ceilingMB", ceiling,
	)
	return nil
}

// Unload returns the Manager to Unloaded from any state, zeroing the memory
// estimate and the performance counters.
func (m *Manager) Unload() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	model := m.settings.ModelName
	m.resetLocked()
	m.mu.Unlock()

	m.logger.Info("Manager: model unloaded", "backend", m.backend.Name(), "model", model)
}

func (m *Manager) resetLocked() {
	m.loaded = false
	m.generation++
	m.descriptor = nil
	m.attempt = ""
	m.outputLimit = 0
	m.params = 0
	m.context = 0
	m.optimized = false
	m.memoryMB = 0
	m.loadedAt = time.Time{}
	m.loadTime = 0
	m.lastErr = nil
	m.lastHealth = time.Time{}
	m.perf = Performance{}
	m.setStateLocked(StateUnloaded)
	m.metrics.SetMemoryEstimate(m.backend.Name(), 0)
}

func (m *Manager) setStateLocked(s State) {
	if m.state != s {
		m.logger.Debug("Manager: state transition", "from", m.state.String(), "to", s.String())
	}
	m.state = s
	m.metrics.SetModelState(m.backend.Name(), int(s))
}

func (m *Manager) recomputeMemoryLocked() {
	if m.descriptor != nil && m.descriptor.Hosted {
		m.memoryMB = 0
	} else {
		m.memoryMB = EstimateMemoryMB(m.params, m.context, m.optimized)
	}
	m.metrics.SetMemoryEstimate(m.backend.Name(), m.memoryMB)
}

// governMemoryLocked runs an optimization pass when the estimate exceeds
// the ceiling: weights are estimated quantized and the effective context
// window is halved down to 4096 until the estimate fits.
func (m *Manager) governMemoryLocked(trigger string) {
	if m.ceilingMB <= 0 || m.memoryMB <= m.ceilingMB {
		return
	}
	if m.optimized && m.context <= minEffectiveContext {
		m.logger.Debug("Manager: estimate over ceiling, nothing left to optimize",
			"estimatedMemoryMB", m.memoryMB,
			"ceilingMB", m.ceilingMB,
		)
		return
	}

	before, beforeContext := m.memoryMB, m.context
	m.optimized = true
	m.recomputeMemoryLocked()
	for m.memoryMB > m.ceilingMB && m.context > minEffectiveContext {
		m.context = max(m.context/2, minEffectiveContext)
		m.recomputeMemoryLocked()
	}
	debug.FreeOSMemory()

	m.perf.OptimizationPasses++
	m.metrics.IncOptimization(m.backend.Name())

	level := slog.LevelInfo
	if m.memoryMB > m.ceilingMB {
		level = slog.LevelWarn
	}
	m.logger.Log(context.Background(), level, "Manager: memory optimization pass",
		"trigger", trigger,
		"beforeMB", before,
		"afterMB", m.memoryMB,
		"ceilingMB", m.ceilingMB,
		"contextBefore", beforeContext,
		"contextAfter", m.context,
	)
}

func (m *Manager) performance() config.Performance {
	p, err := m.store.PerformanceSettings()
	if err != nil {
		m.logger.Warn("Manager: failed to decode performance settings", "error", err)
	}
	return p
}

// Infer runs one completion on the loaded model. It fails with a
// BackendUnavailable error unless the model is Healthy or Degraded. Slow
// calls are logged, not aborted; the configured timeout bounds the wait.
func (m *Manager) Infer(ctx context.Context, prompt string, opts InferOptions) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.Validation("Manager", "Infer", "prompt is required")
	}

	perf := m.performance()
	ceiling, ceilingErr := memoryCeilingMB(perf.MaxMemoryMB, m.memoryProbe)

	m.mu.Lock()
	if !m.state.Serving() {
		state := m.state
		m.mu.Unlock()
		return "", errors.BackendUnavailable("Manager", "Infer", fmt.Errorf("model not loaded (state %s)", state))
	}
	if ceilingErr == nil {
		m.ceilingMB = ceiling
	}
	m.governMemoryLocked("infer")
	settings := m.settings
	contextWindow := m.context
	outputLimit := m.outputLimit
	generation := m.generation
	m.mu.Unlock()

	genOpts := GenerateOptions{
		Temperature:   settings.Temperature,
		MaxTokens:     settings.MaxTokens,
		ContextWindow: contextWindow,
		System:        opts.System,
	}
	if opts.Temperature != nil {
		genOpts.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		genOpts.MaxTokens = min(opts.MaxTokens, settings.MaxTokens)
	}
	if outputLimit > 0 {
		genOpts.MaxTokens = min(genOpts.MaxTokens, outputLimit)
	}
	timeout := time.Duration(settings.Timeout) * time.Millisecond
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	ctx, span := m.tracer.Start(ctx, "inference.Infer", trace.WithAttributes(
		attribute.String("backend", m.backend.Name()),
		attribute.String("model", settings.ModelName),
		attribute.Int("prompt.length", len(prompt)),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := m.backend.Generate(callCtx, settings.ModelName, prompt, genOpts)
	elapsed := time.Since(start)

	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("empty response")
	}
	if err != nil && callCtx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("timed out after %s: %w", timeout, err)
	}

	maxProcessing := time.Duration(perf.MaxProcessingTimeMs) * time.Millisecond
	slow := maxProcessing > 0 && elapsed > maxProcessing
	m.record(generation, elapsed, err == nil, slow)
	m.metrics.ObserveInference(m.backend.Name(), settings.ModelName, err == nil, elapsed)

	if slow {
		m.logger.Warn("Manager: inference exceeded processing time ceiling",
			"model", settings.ModelName,
			"duration", elapsed,
			"ceiling", maxProcessing,
		)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		m.logger.Warn("Manager: inference failed",
			"model", settings.ModelName,
			"duration", elapsed,
			"error", err,
		)
		return "", errors.Inference("Manager", "Infer", err)
	}

	span.SetAttributes(attribute.Int("response.length", len(text)))
	return text, nil
}

// record updates counters unless the model was reloaded or unloaded while
// the call was in flight.
func (m *Manager) record(generation uint64, d time.Duration, ok, slow bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != generation {
		return
	}
	m.perf.record(d, ok, slow)
}

// HealthCheck issues a minimal test call and moves the state to Healthy,
// Degraded (slow response) or Error (failed or empty response). It returns
// the current state without calling the backend when no model is loaded.
func (m *Manager) HealthCheck(ctx context.Context) State {
	m.mu.RLock()
	if !m.loaded {
		state := m.state
		m.mu.RUnlock()
		return state
	}
	settings := m.settings
	contextWindow := m.context
	generation := m.generation
	m.mu.RUnlock()

	threshold := time.Duration(m.performance().HealthCheckLatencyMs) * time.Millisecond

	ctx, span := m.tracer.Start(ctx, "inference.HealthCheck", trace.WithAttributes(
		attribute.String("model", settings.ModelName),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(settings.Timeout)*time.Millisecond)
	defer cancel()

	start := time.Now()
	text, err := m.backend.Generate(callCtx, settings.ModelName, warmupPrompt, GenerateOptions{
		MaxTokens:     8,
		ContextWindow: contextWindow,
	})
	latency := time.Since(start)

	next := StateHealthy
	switch {
	case err != nil:
		next = StateError
	case strings.TrimSpace(text) == "":
		next = StateError
		err = fmt.Errorf("empty health check response")
	case latency > threshold:
		next = StateDegraded
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != generation {
		return m.state
	}
	m.lastHealth = time.Now()
	if err != nil {
		m.lastErr = errors.Inference("Manager", "HealthCheck", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "health check failed")
	}
	if next != m.state {
		m.logger.Info("Manager: health changed",
			"model", settings.ModelName,
			"from", m.state.String(),
			"to", next.String(),
			"latency", latency,
		)
	}
	m.setStateLocked(next)
	return next
}

// UpdateConfiguration validates partial against the model schema and applies
// it atomically. When a loaded model is affected (modelName, contextWindow
// or memoryOptimization changed) it is unloaded and reloaded; if the reload
// fails the previous configuration is kept, the previous model is reloaded
// on a best-effort basis with its counters carried over, and the reload
// error is returned. The
// accepted configuration is written to the model namespace of the store.
func (m *Manager) UpdateConfiguration(ctx context.Context, partial config.Values) error {
	if partial == nil {
		return errors.Validation("Manager", "UpdateConfiguration", "partial configuration is required")
	}
	if err := config.ModelSchema.ValidatePartial(partial); err != nil {
		return err
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.RLock()
	backup := config.Clone(m.cfg)
	loaded := m.loaded
	perf, loadedAt, loadTime := m.perf, m.loadedAt, m.loadTime
	m.mu.RUnlock()

	next := config.Merge(backup, partial)
	if err := config.ModelSchema.Validate(next); err != nil {
		return err
	}

	if !loaded || !requiresReload(backup, next) {
		var settings config.Model
		if err := config.DecodeValues(next, &settings); err != nil {
			return errors.Validation("Manager", "UpdateConfiguration", "%v", err)
		}
		m.mu.Lock()
		m.cfg = next
		m.settings = settings
		m.mu.Unlock()
		return m.commit(ctx, next)
	}

	m.logger.Info("Manager: configuration change requires reload",
		"from", backup["modelName"],
		"to", next["modelName"],
	)

	if err := m.load(ctx, next); err != nil {
		m.logger.Warn("Manager: reload failed, restoring previous configuration", "error", err)

		if rerr := m.load(ctx, backup); rerr != nil {
			m.logger.Error("Manager: failed to reload previous model", "error", rerr)
		} else {
			m.mu.Lock()
			m.perf = perf
			m.loadedAt, m.loadTime = loadedAt, loadTime
			m.mu.Unlock()
		}
		return errors.Wrap(err, "Manager", "UpdateConfiguration", "reload")
	}
	return m.commit(ctx, next)
}

func (m *Manager) commit(ctx context.Context, values config.Values) error {
	if err := m.store.Set(ctx, config.NamespaceModel, values, true); err != nil {
		return errors.Wrap(err, "Manager", "UpdateConfiguration", "store")
	}
	return nil
}

func requiresReload(prev, next config.Values) bool {
	for _, k := range reloadFields {
		if fmt.Sprint(prev[k]) != fmt.Sprint(next[k]) {
			return true
		}
	}
	return false
}

// Configuration returns a copy of the active model configuration.
func (m *Manager) Configuration() config.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return config.Clone(m.cfg)
}

// Settings returns the active model configuration as a typed struct.
func (m *Manager) Settings() config.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Performance returns a copy of the performance counters.
func (m *Manager) Performance() Performance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.perf
}

// Status returns a snapshot of the Manager.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		State:                  m.state,
		StateName:              m.state.String(),
		HealthStatus:           m.state.HealthStatus(),
		Backend:                m.backend.Name(),
		LoadedAt:               m.loadedAt,
		LoadTime:               m.loadTime,
		EstimatedMemoryMB:      m.memoryMB,
		MemoryCeilingMB:        m.ceilingMB,
		Optimized:              m.optimized,
		EffectiveContextWindow: m.context,
		LastHealthCheck:        m.lastHealth,
		Performance:            m.perf,
	}
	switch {
	case m.loaded:
		s.Model = m.settings.ModelName
	case m.state == StateLoading || m.state == StateError:
		s.Model = m.attempt
	}
	if m.descriptor != nil {
		d := *m.descriptor
		s.Descriptor = &d
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}
