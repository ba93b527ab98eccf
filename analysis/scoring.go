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
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

const (
	severityWeightFactor   = 0.4
	impactWeightFactor     = 0.3
	confidenceWeightFactor = 0.2
	riskScoreWeightFactor  = 0.1

	// mediumToleranceScoreFloor drops Low risks scoring below it when the
	// risk tolerance is medium.
	mediumToleranceScoreFloor = 0.3
)

var severityWeights = map[string]float64{
	SeverityLow:      0.25,
	SeverityMedium:   0.5,
	SeverityHigh:     0.75,
	SeverityCritical: 1.0,
}

var impactWeights = map[string]float64{
	ImpactLow:      0.25,
	ImpactMedium:   0.5,
	ImpactHigh:     0.75,
	ImpactVeryHigh: 1.0,
}

var severityOrder = []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Clamp01 bounds v to [0, 1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SeverityRank returns the position of a severity from 0 (Low) to 3
// (Critical), or -1 when unknown.
func SeverityRank(severity string) int {
	return slices.Index(severityOrder, severity)
}

// NormalizeSeverity maps case variants of a known severity to its canonical
// form. Unknown values return "".
func NormalizeSeverity(s string) string {
	for _, sev := range severityOrder {
		if strings.EqualFold(strings.TrimSpace(s), sev) {
			return sev
		}
	}
	return ""
}

// NormalizeImpact maps case and spacing variants of a business impact
// rating to its canonical form. Unknown values return "".
func NormalizeImpact(s string) string {
	key := strings.ToLower(strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), " "))
	for impact := range impactWeights {
		if strings.ToLower(impact) == key {
			return impact
		}
	}
	return ""
}

// PriorityScore weighs severity, business impact, confidence and raw risk
// score into a single value in [0, 1].
func PriorityScore(r Risk) float64 {
	return Clamp01(
		severityWeightFactor*severityWeights[r.Severity] +
			impactWeightFactor*impactWeights[r.BusinessImpact] +
			confidenceWeightFactor*Clamp01(r.Confidence) +
			riskScoreWeightFactor*Clamp01(r.RiskScore),
	)
}

// PrioritizeRisks returns a copy of risks with PriorityScore set, sorted by
// descending priority. Ties keep their input order.
func PrioritizeRisks(risks []Risk) []Risk {
	out := make([]Risk, len(risks))
	for i, r := range risks {
		r.Confidence = Clamp01(r.Confidence)
		r.RiskScore = Clamp01(r.RiskScore)
		r.PriorityScore = PriorityScore(r)
		out[i] = r
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PriorityScore > out[j].PriorityScore
	})
	return out
}

// FilterClauses keeps clauses whose confidence reaches threshold. Raising
// the threshold never adds clauses to the result.
func FilterClauses(clauses []Clause, threshold float64) []Clause {
	out := make([]Clause, 0, len(clauses))
	for _, c := range clauses {
		if c.Confidence >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// FilterByTolerance applies a risk tolerance: low keeps every risk, medium
// drops Low risks with a risk score under 0.3, high keeps only High and
// Critical risks.
func FilterByTolerance(risks []Risk, tolerance string) []Risk {
	out := make([]Risk, 0, len(risks))
	for _, r := range risks {
		switch tolerance {
		case "medium":
			if r.Severity == SeverityLow && r.RiskScore < mediumToleranceScoreFloor {
				continue
			}
		case "high":
			if SeverityRank(r.Severity) < SeverityRank(SeverityHigh) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// FilterBySeverity keeps risks at or above minSeverity.
func FilterBySeverity(risks []Risk, minSeverity string) []Risk {
	floor := SeverityRank(minSeverity)
	out := make([]Risk, 0, len(risks))
	for _, r := range risks {
		if SeverityRank(r.Severity) >= floor {
			out = append(out, r)
		}
	}
	return out
}

// SummarizeRisks counts risks per severity and averages their priority.
func SummarizeRisks(risks []Risk) RiskSummary {
	s := RiskSummary{
		TotalRisks: len(risks),
		BySeverity: make(map[string]int, len(severityOrder)),
	}
	for _, sev := range severityOrder {
		s.BySeverity[sev] = 0
	}
	if len(risks) == 0 {
		return s
	}

	highest := -1
	total := 0.0
	for _, r := range risks {
		s.BySeverity[r.Severity]++
		total += r.PriorityScore
		if rank := SeverityRank(r.Severity); rank > highest {
			highest = rank
			s.HighestSeverity = r.Severity
		}
	}
	s.AverageScore = Clamp01(total / float64(len(risks)))
	return s
}

// FinalizeRisks applies the minimum severity, the risk tolerance, priority
// ordering and the maxRisks cap.
func FinalizeRisks(risks []Risk, s Settings) []Risk {
	out := FilterBySeverity(risks, s.Risk.MinSeverity)
	out = FilterByTolerance(out, s.Analysis.RiskTolerance)
	out = PrioritizeRisks(out)
	if s.Risk.MaxRisks > 0 && len(out) > s.Risk.MaxRisks {
		out = out[:s.Risk.MaxRisks]
	}
	return out
}

// NewRiskReport prioritises risks and summarises them.
func NewRiskReport(risks []Risk, s Settings) *RiskReport {
	final := FinalizeRisks(risks, s)
	return &RiskReport{Risks: final, Summary: SummarizeRisks(final)}
}

// Assemble builds a Result from raw clauses and already finalized risks,
// applying the feature switches. Clauses are expected to be filtered by
// confidence already. Recommendations come from every risk found, even
// when the risks feature hides them from the result.
func Assemble(clauses []Clause, risks []Risk, s Settings) *Result {
	if clauses == nil {
		clauses = []Clause{}
	}
	if risks == nil {
		risks = []Risk{}
	}

	res := &Result{
		Clauses:         clauses,
		Risks:           risks,
		Recommendations: []Recommendation{},
	}
	if s.Enabled(FeatureRecommendations) {
		res.Recommendations = GenerateRecommendations(risks, s.Risk.RecommendationSeverities)
	}
	if !s.Enabled(FeatureRisks) {
		risks = []Risk{}
		res.Risks = risks
	}

	res.Summary = BuildSummary(clauses, risks)
	if !s.Enabled(FeatureSummary) {
		res.Summary.Text = ""
	}
	if !s.Enabled(FeatureClauses) {
		res.Clauses = []Clause{}
	}
	res.Metadata.Confidence = meanConfidence(clauses)
	return res
}

// BuildSummary aggregates clauses and risks. OverallRisk is the highest
// severity found, or "None".
func BuildSummary(clauses []Clause, risks []Risk) Summary {
	rs := SummarizeRisks(risks)
	sum := Summary{
		TotalClauses: len(clauses),
		TotalRisks:   rs.TotalRisks,
		BySeverity:   rs.BySeverity,
		OverallRisk:  rs.HighestSeverity,
		OverallScore: rs.AverageScore,
	}
	if sum.OverallRisk == "" {
		sum.OverallRisk = "None"
	}

	categories := make(map[string]struct{})
	for _, c := range clauses {
		categories[c.Category] = struct{}{}
	}
	sum.Text = fmt.Sprintf("Identified %d clauses across %d categories and %d risks (%d critical, %d high). Overall risk: %s.",
		len(clauses), len(categories), rs.TotalRisks,
		rs.BySeverity[SeverityCritical], rs.BySeverity[SeverityHigh], sum.OverallRisk)
	return sum
}

func meanConfidence(clauses []Clause) float64 {
	if len(clauses) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range clauses {
		total += c.Confidence
	}
	return Clamp01(total / float64(len(clauses)))
}
