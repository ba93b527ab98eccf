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
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/achetronic/lexguard/config"
	"github.com/achetronic/lexguard/errors"
	"github.com/achetronic/lexguard/inference"
)

const extractSystemPrompt = `You extract clauses from contracts.

Reply with JSON only, no prose, using this shape:
{"clauses": [{"text": "<verbatim clause text>", "category": "<category>", "confidence": <0..1>}]}

Copy clause text verbatim from the document. Use only the allowed categories.`

const riskSystemPrompt = `You assess legal and business risks in contract clauses.

Reply with JSON only, no prose, using this shape:
{"risks": [{"title": "...", "description": "...", "severity": "Low|Medium|High|Critical",
  "businessImpact": "Low|Medium|High|Very High", "category": "<clause category>",
  "confidence": <0..1>, "riskScore": <0..1>, "clauses": [<clause numbers>]}]}

Only report real risks. An empty list is a valid answer.`

const summarySystemPrompt = `You summarize contract analyses for a business reader.

State the purpose of the contract, the most important obligations and the main risks. Write plain prose.`

// promptOverheadTokens approximates the instructions wrapped around each
// document chunk.
const promptOverheadTokens = 400

// Inferrer is the model access ModelAnalyzer needs. *inference.Manager
// implements it.
type Inferrer interface {
	Infer(ctx context.Context, prompt string, opts inference.InferOptions) (string, error)
	Settings() config.Model
}

// ModelAnalyzer drives clause extraction, risk analysis and summarization
// through model inference. Model replies are parsed as JSON; a reply that is
// not valid JSON fails the call with an Inference error so callers can retry.
type ModelAnalyzer struct {
	model  Inferrer
	logger *slog.Logger
}

// NewModelAnalyzer creates a ModelAnalyzer.
func NewModelAnalyzer(model Inferrer, logger *slog.Logger) *ModelAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelAnalyzer{model: model, logger: logger}
}

// Analyze runs the full model pipeline over text.
func (a *ModelAnalyzer) Analyze(ctx context.Context, text string, s Settings) (*Result, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return nil, errors.Validation("ModelAnalyzer", "Analyze", "contract text is empty")
	}

	clauses, err := a.ExtractClauses(ctx, text, s)
	if err != nil {
		return nil, err
	}
	clauses = FilterClauses(clauses, s.Analysis.ConfidenceThreshold)

	risks := []Risk{}
	if s.Enabled(FeatureRisks) || s.Enabled(FeatureRecommendations) {
		report, err := a.AnalyzeRisks(ctx, clauses, s)
		if err != nil {
			return nil, err
		}
		risks = report.Risks
	}

	res := Assemble(clauses, risks, s)
	if s.Enabled(FeatureSummary) {
		res.Summary.Text = a.Summarize(ctx, res.Summary.Text, clauses, risks)
	}

	res.Metadata.ProcessingMethod = MethodModel
	res.Metadata.ModelUsed = a.model.Settings().ModelName
	res.Metadata.ProcessingTime = time.Since(start)
	return res, nil
}

// ExtractClauses asks the model for clauses, one call per chunk of text
// that fits the model's context window.
func (a *ModelAnalyzer) ExtractClauses(ctx context.Context, text string, s Settings) ([]Clause, error) {
	settings := a.model.Settings()
	budget := promptBudget(settings.ContextWindow, settings.MaxTokens, promptOverheadTokens)
	chunks := chunkText(text, budget)

	a.logger.Debug("ModelAnalyzer: extracting clauses",
		"chunks", len(chunks),
		"estimatedTokens", estimateTokens(text),
		"budget", budget,
	)

	system := extractSystemPrompt + "\n\nAllowed categories: " + strings.Join(s.Extraction.Categories, ", ")

	clauses := make([]Clause, 0)
	for i, c := range chunks {
		raw, err := a.model.Infer(ctx, "Document:\n"+c.text, inference.InferOptions{System: system})
		if err != nil {
			return nil, fmt.Errorf("clause extraction failed on chunk %d/%d: %w", i+1, len(chunks), err)
		}
		doc, err := parseJSON("ExtractClauses", raw)
		if err != nil {
			return nil, err
		}

		for _, item := range doc.Get("clauses").Array() {
			clause, ok := a.toClause(item, c, s)
			if !ok {
				continue
			}
			clauses = append(clauses, clause)
			if s.Extraction.MaxClauses > 0 && len(clauses) >= s.Extraction.MaxClauses {
				return clauses, nil
			}
		}
	}
	return clauses, nil
}

func (a *ModelAnalyzer) toClause(item gjson.Result, c chunk, s Settings) (Clause, bool) {
	text := collapseSpace(item.Get("text").String())
	if text == "" || len(text) < s.Extraction.MinClauseLength {
		return Clause{}, false
	}

	category := strings.ToLower(strings.TrimSpace(item.Get("category").String()))
	if category == "" || !s.categoryEnabled(category) {
		if !s.categoryEnabled(generalCategory) {
			return Clause{}, false
		}
		category = generalCategory
	}

	position := -1
	if idx := strings.Index(c.text, text); idx >= 0 {
		position = c.offset + idx
	}

	return Clause{
		ID:         stableID("clause", category, strconv.Itoa(position), text),
		Text:       text,
		Category:   category,
		Confidence: Clamp01(item.Get("confidence").Float()),
		Position:   position,
	}, true
}

// AnalyzeRisks asks the model for the risks in clauses, batchSize clauses
// per call. A nil slice is invalid input; an empty slice yields an empty
// report without calling the model.
func (a *ModelAnalyzer) AnalyzeRisks(ctx context.Context, clauses []Clause, s Settings) (*RiskReport, error) {
	if clauses == nil {
		return nil, errors.Validation("ModelAnalyzer", "AnalyzeRisks", "clauses must be a list, got nil")
	}
	if len(clauses) == 0 {
		return NewRiskReport(nil, s), nil
	}

	batchSize := a.model.Settings().BatchSize
	if batchSize <= 0 {
		batchSize = len(clauses)
	}

	risks := make([]Risk, 0)
	for start := 0; start < len(clauses); start += batchSize {
		batch := clauses[start:min(start+batchSize, len(clauses))]

		var sb strings.Builder
		sb.WriteString("Clauses:\n")
		for i, c := range batch {
			fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, c.Category, c.Text)
		}

		raw, err := a.model.Infer(ctx, sb.String(), inference.InferOptions{System: riskSystemPrompt})
		if err != nil {
			return nil, fmt.Errorf("risk analysis failed on clauses %d-%d: %w", start+1, start+len(batch), err)
		}
		doc, err := parseJSON("AnalyzeRisks", raw)
		if err != nil {
			return nil, err
		}

		for _, item := range doc.Get("risks").Array() {
			if r, ok := a.toRisk(item, batch); ok {
				risks = append(risks, r)
			}
		}
	}
	return NewRiskReport(risks, s), nil
}

func (a *ModelAnalyzer) toRisk(item gjson.Result, batch []Clause) (Risk, bool) {
	title := strings.TrimSpace(item.Get("title").String())
	severity := NormalizeSeverity(item.Get("severity").String())
	if title == "" || severity == "" {
		a.logger.Debug("ModelAnalyzer: skipping malformed risk", "risk", item.Raw)
		return Risk{}, false
	}

	var affected []string
	category := strings.ToLower(strings.TrimSpace(item.Get("category").String()))
	for _, n := range item.Get("clauses").Array() {
		idx := int(n.Int()) - 1
		if idx < 0 || idx >= len(batch) {
			continue
		}
		affected = append(affected, batch[idx].ID)
		if category == "" {
			category = batch[idx].Category
		}
	}
	if category == "" {
		category = generalCategory
	}

	impact := NormalizeImpact(item.Get("businessImpact").String())
	if impact == "" {
		impact = impactForSeverity(severity)
	}

	confidence := 0.5
	if v := item.Get("confidence"); v.Exists() {
		confidence = v.Float()
	}

	return Risk{
		ID:              stableID("risk", category, title, strings.Join(affected, ",")),
		Title:           title,
		Description:     strings.TrimSpace(item.Get("description").String()),
		Severity:        severity,
		Category:        category,
		AffectedClauses: affected,
		Confidence:      Clamp01(confidence),
		RiskScore:       Clamp01(item.Get("riskScore").Float()),
		BusinessImpact:  impact,
	}, true
}

func impactForSeverity(severity string) string {
	if severity == SeverityCritical {
		return ImpactVeryHigh
	}
	return severity
}

// Summarize asks the model for a prose summary. The reply may use up to
// half of the context buffer, converted to words at 0.75 words per token.
// On failure or an empty reply base is extended with clause excerpts.
func (a *ModelAnalyzer) Summarize(ctx context.Context, base string, clauses []Clause, risks []Risk) string {
	settings := a.model.Settings()
	maxOutputTokens := min(int(float64(computeBuffer(settings.ContextWindow))*0.50), settings.MaxTokens)
	maxWords := int(float64(maxOutputTokens) * 0.75)

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\nClauses:\n")
	for _, c := range clauses {
		fmt.Fprintf(&sb, "- [%s] %s\n", c.Category, c.Text)
	}
	sb.WriteString("\nRisks:\n")
	for _, r := range risks {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", r.Title, r.Severity, r.Description)
	}

	reply, err := a.model.Infer(ctx, sb.String(), inference.InferOptions{
		System:    summarySystemPrompt + fmt.Sprintf("\n\nKeep the summary under %d words.", maxWords),
		MaxTokens: maxOutputTokens,
	})
	if err != nil {
		a.logger.Warn("ModelAnalyzer: summarization failed, using fallback", "error", err)
		return buildFallbackSummary(base, clauses)
	}
	if reply = strings.TrimSpace(reply); reply == "" {
		return buildFallbackSummary(base, clauses)
	}
	return reply
}

// parseJSON extracts the outermost JSON object from a model reply, which
// may be wrapped in prose or code fences.
func parseJSON(operation, raw string) (gjson.Result, error) {
	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first < 0 || last < first {
		return gjson.Result{}, errors.Inference("ModelAnalyzer", operation, fmt.Errorf("model reply contains no JSON object"))
	}
	body := raw[first : last+1]
	if !gjson.Valid(body) {
		return gjson.Result{}, errors.Inference("ModelAnalyzer", operation, fmt.Errorf("model reply is not valid JSON"))
	}
	return gjson.Parse(body), nil
}
