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
	"unicode/utf8"
)

const (
	largeContextWindowThreshold = 200_000
	largeContextWindowBuffer    = 20_000
	smallContextWindowRatio     = 0.20

	// minChunkTokens keeps chunking usable on tiny effective windows.
	minChunkTokens = 512

	fallbackExcerptChars = 200
)

// estimateTokens returns a rough token count using the ~4 chars per token
// heuristic.
func estimateTokens(s string) int {
	return len(s) / 4
}

// computeBuffer returns the token buffer kept free in a context window:
// fixed 20k for windows >200k, 20% for smaller ones.
func computeBuffer(contextWindow int) int {
	if contextWindow > largeContextWindowThreshold {
		return largeContextWindowBuffer
	}
	return int(float64(contextWindow) * smallContextWindowRatio)
}

// promptBudget returns how many tokens of document text fit in one call
// after the buffer, the reply and the fixed prompt overhead.
func promptBudget(contextWindow, maxTokens, overhead int) int {
	budget := contextWindow - computeBuffer(contextWindow) - maxTokens - overhead
	if budget < minChunkTokens {
		return minChunkTokens
	}
	return budget
}

type chunk struct {
	text   string
	offset int
}

// chunkText splits text on blank lines into chunks of at most budgetTokens.
// Paragraphs larger than the budget are cut on rune boundaries. Offsets are
// byte positions in text.
func chunkText(text string, budgetTokens int) []chunk {
	maxBytes := budgetTokens * 4
	if len(text) <= maxBytes {
		return []chunk{{text: text, offset: 0}}
	}

	var out []chunk
	start, end := 0, 0
	flush := func() {
		if end > start {
			out = append(out, chunk{text: text[start:end], offset: start})
		}
		start = end
	}

	for end < len(text) {
		next := strings.Index(text[end:], "\n\n")
		paraEnd := len(text)
		if next >= 0 {
			paraEnd = end + next + 2
		}

		switch {
		case paraEnd-start <= maxBytes:
			end = paraEnd
		case end > start:
			flush()
		default:
			cut := start + maxBytes
			for cut > start && !utf8.RuneStart(text[cut]) {
				cut--
			}
			end = cut
			flush()
		}
	}
	flush()
	return out
}

// buildFallbackSummary creates a best-effort summary without a model by
// concatenating the first 200 characters of each clause. Used when the
// summarization call fails or returns empty.
func buildFallbackSummary(base string, clauses []Clause) string {
	var sb strings.Builder
	sb.WriteString(base)
	for _, c := range clauses {
		sb.WriteString("\n")
		sb.WriteString(c.Category)
		sb.WriteString(": ")
		if len(c.Text) > fallbackExcerptChars {
			cut := fallbackExcerptChars
			for cut > 0 && !utf8.RuneStart(c.Text[cut]) {
				cut--
			}
			sb.WriteString(c.Text[:cut])
			sb.WriteString("...")
		} else {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}
