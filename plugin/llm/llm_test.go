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

package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/achetronic/lexguard/analysis"
	"github.com/achetronic/lexguard/config"
	"github.com/achetronic/lexguard/errors"
	"github.com/achetronic/lexguard/inference"
	"github.com/achetronic/lexguard/plugin"
)

type fakeModel struct {
	mu      sync.Mutex
	state   inference.State
	loadErr error
	loads   int
	unloads int
	lastOv  config.Values
}

func (f *fakeModel) Infer(_ context.Context, prompt string, opts inference.InferOptions) (string, error) {
	switch {
	case strings.Contains(opts.System, "extract clauses"):
		return `{"clauses": [{"text": "The Supplier's liability shall be unlimited for any breach.", "category": "liability", "confidence": 0.9}]}`, nil
	case strings.Contains(opts.System, "assess legal"):
		return `{"risks": [{"title": "Unlimited liability", "severity": "Critical", "businessImpact": "Very High", "confidence": 0.9, "riskScore": 0.9, "clauses": [1]}]}`, nil
	default:
		return "Summary.", nil
	}
}

func (f *fakeModel) Settings() config.Model {
	return config.Model{ModelName: "llama3.1:70b", ContextWindow: 128000, MaxTokens: 2048, BatchSize: 5}
}

func (f *fakeModel) State() inference.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeModel) Load(_ context.Context, overrides config.Values) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	f.lastOv = overrides
	if f.loadErr != nil {
		f.state = inference.StateError
		return f.loadErr
	}
	f.state = inference.StateHealthy
	return nil
}

func (f *fakeModel) Unload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloads++
	f.state = inference.StateUnloaded
}

func TestInitializeLoadsAndCleanupUnloads(t *testing.T) {
	ctx := context.Background()
	m := &fakeModel{}
	p := New(Config{Model: m, LoadOverrides: config.Values{"modelName": "llama3.1:70b"}})

	if err := p.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if m.loads != 1 || m.lastOv["modelName"] != "llama3.1:70b" {
		t.Errorf("expected one load with overrides, got %d %v", m.loads, m.lastOv)
	}

	res, err := p.ProcessContract(ctx, "The Supplier's liability shall be unlimited for any breach.", analysis.Options{})
	if err != nil {
		t.Fatalf("ProcessContract failed: %v", err)
	}
	if res.Metadata.ProcessingMethod != analysis.MethodModel || len(res.Risks) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}

	if err := p.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if m.unloads != 1 {
		t.Errorf("expected cleanup to unload the model it loaded, got %d unloads", m.unloads)
	}
}

func TestInitializeReusesServingModel(t *testing.T) {
	ctx := context.Background()
	m := &fakeModel{state: inference.StateHealthy}
	p := New(Config{Model: m})

	if err := p.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := p.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if m.loads != 0 || m.unloads != 0 {
		t.Errorf("expected shared model to be left alone, got %d loads %d unloads", m.loads, m.unloads)
	}
}

func TestInitializeFailureRejectsRegistration(t *testing.T) {
	m := &fakeModel{loadErr: errors.BackendUnavailable("Manager", "Load", fmt.Errorf("connection refused"))}
	r := plugin.NewRegistry(plugin.RegistryConfig{})

	err := r.Register(context.Background(), Name, New(Config{Model: m}))
	if !errors.Is(err, errors.ErrBackendUnavailable) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}
	if len(r.List()) != 0 {
		t.Error("expected plugin not to be registered")
	}

	if err := New(Config{}).Initialize(context.Background()); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error without a model, got %v", err)
	}
}

func TestCapabilities(t *testing.T) {
	p := New(Config{Model: &fakeModel{}})
	if !plugin.CheckContract(p).Valid {
		t.Fatal("expected plugin to satisfy the contract")
	}
	r := plugin.NewRegistry(plugin.RegistryConfig{})
	m := &fakeModel{state: inference.StateHealthy}
	r.Register(context.Background(), Name, New(Config{Model: m}))
	got := r.FindByCapability(plugin.CapabilityModelInference)
	if len(got) != 1 || got[0].Name != Name {
		t.Fatalf("expected llm plugin to advertise model inference, got %+v", got)
	}
	if !got[0].IsActive || !got[0].IsDefault {
		t.Errorf("sole plugin should be active and default: %+v", got[0])
	}
}
