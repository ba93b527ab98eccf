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

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
		kind     Kind
	}{
		{Validation("Store", "Set", "bad %s", "field"), ErrValidation, KindValidation},
		{BackendUnavailable("Manager", "Load", fmt.Errorf("dial")), ErrBackendUnavailable, KindBackendUnavailable},
		{ModelRequirement("Manager", "verify", "too small"), ErrModelRequirement, KindModelRequirement},
		{Inference("Manager", "Infer", fmt.Errorf("boom")), ErrInference, KindInference},
		{PluginContract("Registry", "Register", "missing"), ErrPluginContract, KindPluginContract},
		{Persistence("Store", "Set", fmt.Errorf("disk")), ErrConfigurationPersistence, KindConfigurationPersistence},
	}

	for _, tc := range cases {
		if !stderrors.Is(tc.err, tc.sentinel) {
			t.Errorf("%v: expected errors.Is(%v)", tc.err, tc.sentinel)
		}
		kind, ok := KindOf(tc.err)
		if !ok || kind != tc.kind {
			t.Errorf("%v: expected kind %s, got %s (ok=%v)", tc.err, tc.kind, kind, ok)
		}
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := BackendUnavailable("Manager", "checkBackend", cause)

	if !strings.HasPrefix(err.Error(), "Manager.checkBackend: inference backend unavailable") {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected the cause to be reachable through Unwrap")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !stderrors.Is(wrapped, ErrBackendUnavailable) {
		t.Error("expected sentinel match through an outer wrap")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Inference("m", "op", fmt.Errorf("x"))) {
		t.Error("inference errors must be retryable")
	}
	if !IsRetryable(BackendUnavailable("m", "op", fmt.Errorf("x"))) {
		t.Error("backend unavailable errors must be retryable")
	}
	if IsRetryable(Validation("m", "op", "x")) {
		t.Error("validation errors must not be retryable")
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("unclassified errors must not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestAnalysisError(t *testing.T) {
	cause := Validation("RuleEngine", "Process", "text is required")
	err := NewAnalysisError("all tiers failed", []TierFailure{
		{Tier: "plugin", Attempts: 3, Error: "timeout"},
		{Tier: "rule_based", Attempts: 1, Error: cause.Error()},
	}, cause)

	if !stderrors.Is(err, ErrAnalysis) {
		t.Error("expected ErrAnalysis match")
	}
	if !stderrors.Is(err, ErrValidation) {
		t.Error("expected the last cause to be reachable")
	}
	if !strings.Contains(err.Error(), "plugin(3), rule_based(1)") {
		t.Errorf("expected tier summary in message, got %q", err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "a", "b", "c") != nil {
		t.Error("Wrap(nil) must be nil")
	}
	err := Wrap(fmt.Errorf("x"), "Store", "Set", "persist")
	if err.Error() != "Store.Set: persist failed: x" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
