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
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/achetronic/lexguard/errors"
)

const (
	generalCategory = "general"

	generalConfidence  = 0.3
	baseConfidence     = 0.5
	perMatchConfidence = 0.15
	maxRuleConfidence  = 0.95
)

// categoryKeywords are matched case-insensitively on word boundaries.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"payment", []string{`pay\w*`, `invoic\w*`, `fees?`, `price\w*`, `compensation`, `late charge\w*`, `interest`}},
	{"termination", []string{`terminat\w*`, `cancel\w*`, `expir\w*`, `notice period`}},
	{"liability", []string{`liab\w*`, `damages`, `consequential`, `limitation of liability`}},
	{"indemnification", []string{`indemn\w*`, `hold harmless`, `defend`}},
	{"confidentiality", []string{`confidential\w*`, `non-disclosure`, `trade secrets?`, `proprietary information`}},
	{"intellectual_property", []string{`intellectual property`, `copyrights?`, `patents?`, `trademarks?`, `licen[cs]\w*`, `work made for hire`}},
	{"dispute_resolution", []string{`arbitrat\w*`, `disputes?`, `mediat\w*`, `litigation`}},
	{"governing_law", []string{`governing law`, `governed by`, `jurisdiction`, `venue`}},
	{"warranty", []string{`warrant\w*`, `guarantee\w*`, `as is`}},
	{"force_majeure", []string{`force majeure`, `acts? of god`, `beyond (?:its|their|the party's) (?:reasonable )?control`}},
	{"non_compete", []string{`non-compet\w*`, `not compete`, `non-solicit\w*`, `competing business`}},
	{"data_protection", []string{`personal data`, `data protection`, `gdpr`, `privacy`, `data breach\w*`}},
	{"renewal", []string{`renew\w*`, `auto-renew\w*`, `successive (?:term|period)s?`}},
}

type riskRule struct {
	category    string
	pattern     *regexp.Regexp
	title       string
	description string
	severity    string
	impact      string
	score       float64
}

// riskRules are evaluated in order; the first rule matching a clause of its
// category produces that clause's risk.
var riskRules = []riskRule{
	{"liability", regexp.MustCompile(`(?i)\b(unlimited|without limit\w*|no limit\w*)`), "Unlimited liability", "Liability is not capped and exposure is open ended.", SeverityCritical, ImpactVeryHigh, 0.95},
	{"liability", regexp.MustCompile(`(?i)\b(consequential|indirect|punitive)`), "Indirect damages exposure", "Liability extends to indirect or consequential damages.", SeverityHigh, ImpactHigh, 0.75},
	{"liability", regexp.MustCompile(`(?i)\bliab`), "Liability allocation", "The clause allocates liability between the parties.", SeverityMedium, ImpactMedium, 0.45},
	{"indemnification", regexp.MustCompile(`(?i)\b(any and all|all claims|whatsoever)`), "Broad indemnification", "Indemnity covers any and all claims without limitation.", SeverityCritical, ImpactVeryHigh, 0.9},
	{"indemnification", regexp.MustCompile(`(?i)\b(indemn|hold harmless)`), "Indemnification obligation", "The party must indemnify the counterparty.", SeverityHigh, ImpactHigh, 0.7},
	{"termination", regexp.MustCompile(`(?i)\b(without cause|for convenience|at any time|sole discretion)`), "Unilateral termination", "The contract may be terminated without cause.", SeverityHigh, ImpactHigh, 0.7},
	{"termination", regexp.MustCompile(`(?i)\b(immediately|without notice|without prior notice)`), "Termination without notice", "Termination can take effect without notice.", SeverityHigh, ImpactMedium, 0.65},
	{"payment", regexp.MustCompile(`(?i)\b(late|penalt\w*|interest)`), "Late payment penalties", "Late payment triggers penalties or interest.", SeverityMedium, ImpactMedium, 0.5},
	{"payment", regexp.MustCompile(`(?i)\b(non-refundable|in advance|upfront)`), "Prepayment exposure", "Amounts are paid upfront or are non-refundable.", SeverityMedium, ImpactMedium, 0.45},
	{"renewal", regexp.MustCompile(`(?i)\b(automatic\w*|auto-renew\w*)`), "Automatic renewal", "The contract renews automatically unless cancelled.", SeverityMedium, ImpactMedium, 0.5},
	{"non_compete", regexp.MustCompile(`(?i)\b(non-compet|not compete|non-solicit|competing)`), "Restrictive covenant", "A non-compete or non-solicitation restricts future business.", SeverityHigh, ImpactHigh, 0.7},
	{"confidentiality", regexp.MustCompile(`(?i)\b(perpetu\w*|indefinite\w*|survive\w*)`), "Open ended confidentiality", "Confidentiality obligations have no end date.", SeverityMedium, ImpactLow, 0.4},
	{"data_protection", regexp.MustCompile(`(?i)\bbreach`), "Data breach exposure", "The clause governs liability for data breaches.", SeverityHigh, ImpactHigh, 0.7},
	{"data_protection", regexp.MustCompile(`(?i)\b(personal data|privacy|gdpr|data protection)`), "Personal data processing", "Personal data is processed under this contract.", SeverityMedium, ImpactMedium, 0.5},
	{"intellectual_property", regexp.MustCompile(`(?i)\b(assign\w*|all rights|work made for hire)`), "IP assignment", "Intellectual property is assigned to the counterparty.", SeverityHigh, ImpactHigh, 0.75},
	{"dispute_resolution", regexp.MustCompile(`(?i)\b(waive\w*|class action|jury)`), "Waiver of legal remedies", "Jury trial or class action rights are waived.", SeverityHigh, ImpactMedium, 0.65},
	{"dispute_resolution", regexp.MustCompile(`(?i)\barbitrat`), "Mandatory arbitration", "Disputes must go to arbitration.", SeverityLow, ImpactLow, 0.35},
	{"warranty", regexp.MustCompile(`(?i)\b(as is|disclaim\w*)`), "Warranty disclaimer", "Warranties are disclaimed.", SeverityMedium, ImpactMedium, 0.5},
	{"governing_law", regexp.MustCompile(`(?i)\b(governed by|governing law|jurisdiction)`), "Foreign governing law", "The governing law or jurisdiction may be unfavourable.", SeverityLow, ImpactLow, 0.2},
	{"force_majeure", regexp.MustCompile(`(?i)\bforce majeure`), "Force majeure scope", "Force majeure may excuse the counterparty's performance.", SeverityLow, ImpactMedium, 0.3},
}

// RuleEngine extracts clauses and risks with keyword patterns. It has no
// external dependency and the same input always yields the same output,
// identifiers included.
type RuleEngine struct {
	logger   *slog.Logger
	patterns map[string]*regexp.Regexp
}

// NewRuleEngine compiles the built-in category patterns.
func NewRuleEngine(logger *slog.Logger) *RuleEngine {
	if logger == nil {
		logger = slog.Default()
	}
	patterns := make(map[string]*regexp.Regexp, len(categoryKeywords))
	for _, ck := range categoryKeywords {
		patterns[ck.category] = compileKeywords(ck.keywords)
	}
	return &RuleEngine{logger: logger, patterns: patterns}
}

func compileKeywords(keywords []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(keywords, "|") + `)\b`)
}

// Analyze runs extraction, confidence filtering and risk analysis.
func (e *RuleEngine) Analyze(text string, s Settings) (*Result, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return nil, errors.Validation("RuleEngine", "Analyze", "contract text is empty")
	}

	clauses := FilterClauses(e.ExtractClauses(text, s), s.Analysis.ConfidenceThreshold)
	report, err := e.AnalyzeRisks(clauses, s)
	if err != nil {
		return nil, err
	}

	res := Assemble(clauses, report.Risks, s)
	res.Metadata.ProcessingMethod = MethodRuleBased
	res.Metadata.ProcessingTime = time.Since(start)

	e.logger.Debug("RuleEngine: analysis completed",
		"clauses", len(res.Clauses),
		"risks", len(res.Risks),
	)
	return res, nil
}

// ExtractClauses splits text into sentences and tags each one long enough
// with its best matching category. Confidence grows with the number of
// keyword hits. Sentences without hits become "general" clauses when that
// category is enabled.
func (e *RuleEngine) ExtractClauses(text string, s Settings) []Clause {
	custom := compileCustomPatterns(s.Extraction.CustomPatterns, e.logger)

	clauses := make([]Clause, 0)
	for _, seg := range splitSegments(text) {
		if len(seg.text) < s.Extraction.MinClauseLength {
			continue
		}

		category, hits := e.classify(seg.text, s, custom)
		confidence := generalConfidence
		if hits > 0 {
			confidence = min(baseConfidence+perMatchConfidence*float64(hits), maxRuleConfidence)
		} else {
			if !s.categoryEnabled(generalCategory) {
				continue
			}
			category = generalCategory
		}

		clauses = append(clauses, Clause{
			ID:         stableID("clause", category, strconv.Itoa(seg.position), seg.text),
			Text:       seg.text,
			Category:   category,
			Confidence: Clamp01(confidence),
			Position:   seg.position,
		})
		if s.Extraction.MaxClauses > 0 && len(clauses) >= s.Extraction.MaxClauses {
			break
		}
	}
	return clauses
}

// classify returns the enabled category with the most keyword hits. Ties
// go to the category listed first.
func (e *RuleEngine) classify(text string, s Settings, custom map[string]*regexp.Regexp) (string, int) {
	best, bestHits := "", 0
	for _, ck := range categoryKeywords {
		if !s.categoryEnabled(ck.category) {
			continue
		}
		hits := len(e.patterns[ck.category].FindAllStringIndex(text, -1))
		if re, ok := custom[ck.category]; ok {
			hits += len(re.FindAllStringIndex(text, -1))
		}
		if hits > bestHits {
			best, bestHits = ck.category, hits
		}
	}
	return best, bestHits
}

func compileCustomPatterns(custom map[string][]string, logger *slog.Logger) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(custom))
	for category, keywords := range custom {
		if len(keywords) == 0 {
			continue
		}
		quoted := make([]string, 0, len(keywords))
		for _, k := range keywords {
			if k = strings.TrimSpace(k); k != "" {
				quoted = append(quoted, regexp.QuoteMeta(k))
			}
		}
		if len(quoted) == 0 {
			continue
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
		if err != nil {
			logger.Warn("RuleEngine: ignoring custom patterns", "category", category, "error", err)
			continue
		}
		out[category] = re
	}
	return out
}

// AnalyzeRisks applies the risk rules to each clause. A nil slice is
// invalid input; an empty slice yields an empty report.
func (e *RuleEngine) AnalyzeRisks(clauses []Clause, s Settings) (*RiskReport, error) {
	if clauses == nil {
		return nil, errors.Validation("RuleEngine", "AnalyzeRisks", "clauses must be a list, got nil")
	}

	risks := make([]Risk, 0)
	for _, c := range clauses {
		for _, rule := range riskRules {
			if rule.category != c.Category || !rule.pattern.MatchString(c.Text) {
				continue
			}
			risks = append(risks, Risk{
				ID:              stableID("risk", c.ID, rule.title),
				Title:           rule.title,
				Description:     rule.description,
				Severity:        rule.severity,
				Category:        c.Category,
				AffectedClauses: []string{c.ID},
				Confidence:      c.Confidence,
				RiskScore:       rule.score,
				BusinessImpact:  rule.impact,
			})
			break
		}
	}
	return NewRiskReport(risks, s), nil
}

type segment struct {
	text     string
	position int
}

// splitSegments cuts text into trimmed sentences, breaking after '.', '!',
// '?' or ';' followed by whitespace and at blank lines. Positions are byte
// offsets into text.
func splitSegments(text string) []segment {
	var out []segment
	start := 0
	emit := func(end int) {
		raw := text[start:end]
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
			out = append(out, segment{text: collapseSpace(trimmed), position: start + lead})
		}
		start = end
	}

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?', ';':
			if i+1 == len(text) || isSpace(text[i+1]) {
				emit(i + 1)
			}
		case '\n':
			if i+1 < len(text) && text[i+1] == '\n' {
				emit(i)
			}
		}
	}
	if start < len(text) {
		emit(len(text))
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
