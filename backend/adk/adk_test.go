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

package adk

import (
	"context"
	"fmt"
	"iter"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/achetronic/lexguard/inference"
)

type mockLLM struct {
	name    string
	parts   []string
	fail    bool
	lastReq *model.LLMRequest
}

func (m *mockLLM) Name() string { return m.name }

func (m *mockLLM) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	m.lastReq = req
	return func(yield func(*model.LLMResponse, error) bool) {
		if m.fail {
			yield(nil, fmt.Errorf("quota exceeded"))
			return
		}
		for _, p := range m.parts {
			if !yield(&model.LLMResponse{
				Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: p}}},
			}, nil) {
				return
			}
		}
	}
}

func newTestBackend(llm *mockLLM) *Backend {
	return New(Config{
		Models: map[string]model.LLM{"analysis": llm},
		Registry: inference.StaticRegistry{Models: map[string]inference.ModelDescriptor{
			"llama3.1:70b": {Family: "llama", ParameterCount: 70, ContextWindow: 131072},
		}},
		Local: true,
	})
}

func TestGenerateConcatenatesParts(t *testing.T) {
	llm := &mockLLM{name: "llama3.1:70b", parts: []string{"hel", "lo"}}
	b := newTestBackend(llm)

	text, err := b.Generate(context.Background(), "analysis", "ping", inference.GenerateOptions{
		Temperature: 0.1,
		MaxTokens:   64,
		System:      "be brief",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "hello" {
		t.Errorf("expected hello, got %q", text)
	}
	if llm.lastReq.Config.MaxOutputTokens != 64 {
		t.Errorf("expected max output tokens to be forwarded, got %d", llm.lastReq.Config.MaxOutputTokens)
	}
	if llm.lastReq.Config.SystemInstruction == nil {
		t.Error("expected system instruction to be set")
	}
	t.Logf("✓ Generated %q", text)
}

func TestGenerateError(t *testing.T) {
	b := newTestBackend(&mockLLM{name: "llama3.1:70b", fail: true})
	if _, err := b.Generate(context.Background(), "analysis", "ping", inference.GenerateOptions{}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := b.Generate(context.Background(), "other", "ping", inference.GenerateOptions{}); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestAvailabilityAndInfo(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(&mockLLM{name: "llama3.1:70b"})

	if err := b.IsAvailable(ctx); err != nil {
		t.Fatalf("IsAvailable failed: %v", err)
	}
	if ok, _ := b.IsModelAvailable(ctx, "analysis"); !ok {
		t.Error("expected configured model to be available")
	}
	if ok, _ := b.IsModelAvailable(ctx, "missing"); ok {
		t.Error("expected unknown model to be unavailable")
	}
	if err := b.PullModel(ctx, "missing"); err == nil {
		t.Error("expected pull to fail")
	}

	d, err := b.ModelInfo(ctx, "analysis")
	if err != nil {
		t.Fatalf("ModelInfo failed: %v", err)
	}
	if d.Name != "analysis" || d.ParameterCount != 70 || d.ContextWindow != 131072 || d.Hosted {
		t.Errorf("unexpected descriptor: %+v", d)
	}

	empty := New(Config{})
	if err := empty.IsAvailable(ctx); err == nil {
		t.Error("expected error without models")
	}
}

func TestManagerOverADK(t *testing.T) {
	b := New(Config{
		Models: map[string]model.LLM{"hosted": &mockLLM{name: "hosted-model", parts: []string{"OK"}}},
		Registry: inference.StaticRegistry{Models: map[string]inference.ModelDescriptor{
			"hosted-model": {ContextWindow: 200000},
		}},
	})

	m, err := inference.NewManager(inference.ManagerConfig{Backend: b})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := m.Load(context.Background(), map[string]any{"modelName": "hosted"}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.State() != inference.StateHealthy {
		t.Fatalf("expected healthy, got %s", m.State())
	}
}
