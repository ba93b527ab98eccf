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

package plugin

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/achetronic/lexguard/analysis"
	"github.com/achetronic/lexguard/errors"
	"github.com/achetronic/lexguard/metrics"
)

type fakePlugin struct {
	name       string
	version    string
	caps       []Capability
	initErr    error
	cleanupErr error
	processErr error

	mu          sync.Mutex
	initCalls   int
	cleanupCall int
}

func newFakePlugin(name string) *fakePlugin {
	return &fakePlugin{name: name, version: "0.1.0", caps: RequiredCapabilities}
}

func (f *fakePlugin) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initErr
}

func (f *fakePlugin) ProcessContract(_ context.Context, text string, _ analysis.Options) (*analysis.Result, error) {
	if f.processErr != nil {
		return nil, f.processErr
	}
	return &analysis.Result{
		Summary:  analysis.Summary{Text: f.name + ":" + text},
		Metadata: analysis.Metadata{ProcessingMethod: "custom"},
	}, nil
}

func (f *fakePlugin) ExtractClauses(context.Context, string, analysis.Options) ([]analysis.Clause, error) {
	return []analysis.Clause{}, nil
}

func (f *fakePlugin) AnalyzeRisks(_ context.Context, clauses []analysis.Clause, _ analysis.Options) (*analysis.RiskReport, error) {
	if clauses == nil {
		return nil, errors.Validation("fake", "AnalyzeRisks", "nil clauses")
	}
	return &analysis.RiskReport{Risks: []analysis.Risk{}}, nil
}

func (f *fakePlugin) Capabilities() []Capability { return f.caps }

func (f *fakePlugin) Metadata() Metadata {
	return Metadata{Name: f.name, Version: f.version}
}

func (f *fakePlugin) Cleanup(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanupCall++
	return f.cleanupErr
}

func TestFirstPluginIsActiveAndDefault(t *testing.T) {
	r := NewRegistry(RegistryConfig{})

	if err := r.Register(context.Background(), "p1", newFakePlugin("p1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	list := r.List()
	if len(list) != 1 {
		t.Fatalf("expected one plugin, got %d", len(list))
	}
	if list[0].Name != "p1" || !list[0].IsActive || !list[0].IsDefault || !list[0].Initialized {
		t.Errorf("unexpected info: %+v", list[0])
	}
	if h := r.History(); len(h) != 1 || h[0].From != "" || h[0].To != "p1" {
		t.Errorf("unexpected history: %+v", h)
	}
	t.Logf("✓ p1 is active and default")
}

func TestRegisterRejectsInvalidPlugins(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(RegistryConfig{})

	incomplete := newFakePlugin("incomplete")
	incomplete.caps = []Capability{CapabilityProcessContract}
	if err := r.Register(ctx, "incomplete", incomplete); !errors.Is(err, errors.ErrPluginContract) {
		t.Errorf("expected plugin contract error, got %v", err)
	}
	if incomplete.initCalls != 0 {
		t.Error("expected incomplete plugin not to be initialized")
	}

	unnamed := newFakePlugin("")
	if err := r.Register(ctx, "unnamed", unnamed); !errors.Is(err, errors.ErrPluginContract) {
		t.Errorf("expected plugin contract error for empty metadata, got %v", err)
	}

	if err := r.Register(ctx, "nil", nil); !errors.Is(err, errors.ErrPluginContract) {
		t.Errorf("expected plugin contract error for nil plugin, got %v", err)
	}
	var typedNil *fakePlugin
	if err := r.Register(ctx, "typed-nil", typedNil); !errors.Is(err, errors.ErrPluginContract) {
		t.Errorf("expected plugin contract error for nil pointer plugin, got %v", err)
	}

	failing := newFakePlugin("failing")
	failing.initErr = fmt.Errorf("boom")
	if err := r.Register(ctx, "failing", failing); err == nil {
		t.Error("expected initialize error")
	}

	if err := r.Register(ctx, "ok", newFakePlugin("ok")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(ctx, "ok", newFakePlugin("ok")); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error for duplicate, got %v", err)
	}

	if list := r.List(); len(list) != 1 || list[0].Name != "ok" {
		t.Errorf("expected only the valid plugin to be stored, got %+v", list)
	}
}

func TestCheckContractReport(t *testing.T) {
	p := newFakePlugin("p")
	p.caps = []Capability{CapabilityAnalyzeRisks}
	p.version = ""

	report := CheckContract(p)
	if report.Valid {
		t.Fatal("expected invalid report")
	}
	if len(report.Missing) != 2 || len(report.Problems) != 2 {
		t.Errorf("unexpected report: %+v", report)
	}

	if !CheckContract(newFakePlugin("p")).Valid {
		t.Error("expected valid report")
	}
}

func TestSwitchMissingChangesNothing(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(RegistryConfig{})
	r.Register(ctx, "p1", newFakePlugin("p1"))
	r.Register(ctx, "p2", newFakePlugin("p2"))

	before := len(r.History())
	if err := r.Switch("missing"); err == nil {
		t.Fatal("expected error switching to a missing plugin")
	}
	if _, info, _ := r.Active(); info.Name != "p1" {
		t.Errorf("expected p1 to stay active, got %s", info.Name)
	}
	if len(r.History()) != before {
		t.Error("expected no history entry")
	}
}

func TestSwitchAndDefault(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	r := NewRegistry(RegistryConfig{Metrics: m})
	r.Register(ctx, "p1", newFakePlugin("p1"))
	r.Register(ctx, "p2", newFakePlugin("p2"))

	if err := r.Switch("p2"); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	if err := r.Switch("p2"); err != nil {
		t.Fatalf("Switch to active failed: %v", err)
	}
	if _, info, _ := r.Active(); info.Name != "p2" || info.IsDefault {
		t.Errorf("unexpected active: %+v", info)
	}

	if err := r.SwitchToDefault(); err != nil {
		t.Fatalf("SwitchToDefault failed: %v", err)
	}
	h := r.History()
	if len(h) != 3 || h[1].From != "p1" || h[1].To != "p2" || h[2].To != "p1" {
		t.Errorf("unexpected history: %+v", h)
	}
	if got := testutil.ToFloat64(m.PluginSwitches); got != 3 {
		t.Errorf("expected 3 switches counted, got %v", got)
	}
}

func TestUnregisterActiveFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(RegistryConfig{})
	p1, p2, p3 := newFakePlugin("p1"), newFakePlugin("p2"), newFakePlugin("p3")
	r.Register(ctx, "p1", p1)
	r.Register(ctx, "p2", p2)
	r.Register(ctx, "p3", p3)
	r.Switch("p3")

	if err := r.Unregister(ctx, "p3"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}
	if p3.cleanupCall != 1 {
		t.Error("expected cleanup to be called")
	}
	if _, info, _ := r.Active(); info.Name != "p1" {
		t.Errorf("expected default p1 to become active, got %s", info.Name)
	}

	p1.cleanupErr = fmt.Errorf("cleanup failed")
	if err := r.Unregister(ctx, "p1"); err != nil {
		t.Fatalf("expected cleanup failure to be soft, got %v", err)
	}
	if _, info, _ := r.Active(); info.Name != "p2" || !info.IsDefault {
		t.Errorf("expected p2 to become active and default, got %+v", info)
	}

	if err := r.Unregister(ctx, "p2"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}
	if _, _, ok := r.Active(); ok {
		t.Error("expected no active plugin")
	}
	if err := r.SwitchToDefault(); err == nil {
		t.Error("expected error without plugins")
	}
	if err := r.Unregister(ctx, "p2"); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error for unknown plugin, got %v", err)
	}
}

func TestProcessDecoratesMetadata(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(RegistryConfig{})

	if _, err := r.Process(ctx, "text", analysis.Options{}); !errors.Is(err, ErrNoActivePlugin) {
		t.Fatalf("expected ErrNoActivePlugin, got %v", err)
	}

	p := newFakePlugin("p1")
	r.Register(ctx, "p1", p)

	res, err := r.Process(ctx, "text", analysis.Options{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Metadata.Plugin != "p1" || res.Metadata.PluginVersion != "0.1.0" || res.Metadata.ProcessingMethod != analysis.MethodPlugin {
		t.Errorf("unexpected metadata: %+v", res.Metadata)
	}

	p.processErr = errors.Inference("fake", "ProcessContract", fmt.Errorf("model timeout"))
	_, err = r.Process(ctx, "text", analysis.Options{})
	if !errors.Is(err, errors.ErrInference) {
		t.Errorf("expected the plugin error to be preserved, got %v", err)
	}
}

func TestFindByCapability(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(RegistryConfig{})
	ai := newFakePlugin("ai")
	ai.caps = append([]Capability{CapabilityModelInference}, RequiredCapabilities...)
	r.Register(ctx, "rules", newFakePlugin("rules"))
	r.Register(ctx, "ai", ai)

	got := r.FindByCapability(CapabilityModelInference)
	if len(got) != 1 || got[0].Name != "ai" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got[0].IsActive || got[0].IsDefault {
		t.Errorf("ai is neither active nor default: %+v", got[0])
	}

	got = r.FindByCapability(CapabilityAnalyzeRisks)
	if len(got) != 2 || got[0].Name != "rules" || got[1].Name != "ai" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if !got[0].IsActive || !got[0].IsDefault {
		t.Errorf("rules should be active and default: %+v", got[0])
	}

	if err := r.Switch("ai"); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	got = r.FindByCapability(CapabilityModelInference)
	if !got[0].IsActive || got[0].IsDefault {
		t.Errorf("ai should be active but not default: %+v", got[0])
	}

	if got := r.FindByCapability(CapabilitySummarize); got == nil || len(got) != 0 {
		t.Errorf("expected an empty result, got %v", got)
	}
}
