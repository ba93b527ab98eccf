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

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/achetronic/lexguard/inference"
)

func setupTestBackend(t *testing.T) (*Backend, *map[string]any) {
	t.Helper()
	var lastRequest map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"vllm-llama-70b","object":"model","created":1,"owned_by":"vllm"}]}`))
	})
	mux.HandleFunc("/v1/models/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		id := strings.TrimPrefix(r.URL.Path, "/v1/models/")
		if id != "vllm-llama-70b" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
			return
		}
		w.Write([]byte(`{"id":"vllm-llama-70b","object":"model","created":1,"owned_by":"vllm"}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&lastRequest)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "vllm-llama-70b",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "OK"}, "finish_reason": "stop"}]
		}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	b := New(Config{
		APIKey:   "test",
		BaseURL:  srv.URL + "/v1",
		Local:    true,
		Registry: inference.StaticRegistry{},
	})
	return b, &lastRequest
}

func TestAvailability(t *testing.T) {
	b, _ := setupTestBackend(t)
	ctx := context.Background()

	if err := b.IsAvailable(ctx); err != nil {
		t.Fatalf("IsAvailable failed: %v", err)
	}
	ok, err := b.IsModelAvailable(ctx, "vllm-llama-70b")
	if err != nil || !ok {
		t.Fatalf("expected model available, got %v (err=%v)", ok, err)
	}
	ok, err = b.IsModelAvailable(ctx, "unknown")
	if err != nil || ok {
		t.Fatalf("expected model unavailable without error, got %v (err=%v)", ok, err)
	}
	if err := b.PullModel(ctx, "unknown"); err == nil {
		t.Error("expected pull to be unsupported")
	}
}

func TestGenerate(t *testing.T) {
	b, last := setupTestBackend(t)

	text, err := b.Generate(context.Background(), "vllm-llama-70b", "hello", inference.GenerateOptions{
		Temperature: 0.3,
		MaxTokens:   128,
		System:      "be brief",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "OK" {
		t.Errorf("expected OK, got %q", text)
	}
	if (*last)["model"] != "vllm-llama-70b" {
		t.Errorf("unexpected request: %v", *last)
	}
	if msgs, _ := (*last)["messages"].([]any); len(msgs) != 2 {
		t.Errorf("expected system and user messages, got %v", (*last)["messages"])
	}
}

func TestModelInfoLocal(t *testing.T) {
	b, _ := setupTestBackend(t)
	d, err := b.ModelInfo(context.Background(), "vllm-llama-70b")
	if err != nil {
		t.Fatalf("ModelInfo failed: %v", err)
	}
	if d.Hosted || d.ContextWindow != 128000 {
		t.Errorf("unexpected descriptor: %+v", d)
	}
}
