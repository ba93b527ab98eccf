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

package gemini

import (
	"context"
	"testing"

	"github.com/achetronic/lexguard/inference"
)

func TestPullIsUnsupported(t *testing.T) {
	b, err := New(context.Background(), Config{APIKey: "test", Registry: inference.StaticRegistry{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if b.Name() != "gemini" {
		t.Errorf("unexpected name %q", b.Name())
	}
	if err := b.PullModel(context.Background(), "gemini-2.5-pro"); err == nil {
		t.Error("expected pull to be unsupported")
	}
}
