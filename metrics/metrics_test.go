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

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	r.ObserveInference("ollama", "m", true, time.Second)
	r.SetModelState("ollama", 2)
	r.IncFallback("plugin", "model")
	r.IncConfigChange("model", "set")
	r.IncPluginSwitch()
	if r.Prometheus() != nil {
		t.Error("nil registry must return a nil prometheus registry")
	}
}

func TestRecording(t *testing.T) {
	r := New()

	r.ObserveInference("ollama", "llama3.1:8b", true, 150*time.Millisecond)
	r.ObserveInference("ollama", "llama3.1:8b", false, time.Second)
	r.IncFallback("plugin", "model")
	r.IncConfigChange("analysis", "update")
	r.SetPluginsRegistered(2)

	if got := testutil.ToFloat64(r.InferenceRequests.WithLabelValues("ollama", "llama3.1:8b", "success")); got != 1 {
		t.Errorf("expected 1 successful inference, got %v", got)
	}
	if got := testutil.ToFloat64(r.InferenceRequests.WithLabelValues("ollama", "llama3.1:8b", "failure")); got != 1 {
		t.Errorf("expected 1 failed inference, got %v", got)
	}
	if got := testutil.ToFloat64(r.FallbackTransitions.WithLabelValues("plugin", "model")); got != 1 {
		t.Errorf("expected 1 fallback, got %v", got)
	}
	if got := testutil.ToFloat64(r.PluginsRegistered); got != 2 {
		t.Errorf("expected 2 plugins, got %v", got)
	}

	families, err := r.Prometheus().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected gathered metric families")
	}
}
