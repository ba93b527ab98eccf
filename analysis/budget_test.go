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

package analysis

import (
	"strings"
	"testing"
)

func TestComputeBuffer(t *testing.T) {
	if got := computeBuffer(1_000_000); got != largeContextWindowBuffer {
		t.Errorf("expected fixed buffer for large windows, got %d", got)
	}
	if got := computeBuffer(128000); got != 25600 {
		t.Errorf("expected 20%% buffer, got %d", got)
	}
	if got := promptBudget(4096, 4096, promptOverheadTokens); got != minChunkTokens {
		t.Errorf("expected minimum budget, got %d", got)
	}
}

func TestChunkText(t *testing.T) {
	para := strings.Repeat("word ", 300) // 1500 bytes
	text := strings.Join([]string{para, para, para, strings.Repeat("é", 3000)}, "\n\n")

	budget := 512 // 2048 bytes
	chunks := chunkText(text, budget)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	var rebuilt strings.Builder
	for _, c := range chunks {
		if len(c.text) > budget*4 {
			t.Errorf("chunk of %d bytes exceeds budget", len(c.text))
		}
		if text[c.offset:c.offset+len(c.text)] != c.text {
			t.Errorf("chunk offset %d does not match its text", c.offset)
		}
		if !strings.HasPrefix(c.text, "w") && !strings.HasPrefix(c.text, "é") && !strings.HasPrefix(c.text, "\n") {
			t.Errorf("chunk starts mid rune or word: %q", c.text[:8])
		}
		rebuilt.WriteString(c.text)
	}
	if rebuilt.String() != text {
		t.Error("chunks do not cover the text")
	}

	small := chunkText("short text", budget)
	if len(small) != 1 || small[0].text != "short text" {
		t.Errorf("unexpected chunks for short text: %+v", small)
	}
}
