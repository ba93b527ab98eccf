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
	"math"
	"testing"
)

func TestClamp01(t *testing.T) {
	cases := map[float64]float64{
		-1:         0,
		0:          0,
		0.42:       0.42,
		1:          1,
		7:          1,
		math.NaN(): 0,
	}
	for in, want := range cases {
		if got := Clamp01(in); got != want {
			t.Errorf("Clamp01(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestPriorityScore(t *testing.T) {
	top := PriorityScore(Risk{Severity: SeverityCritical, BusinessImpact: ImpactVeryHigh, Confidence: 1, RiskScore: 1})
	if top != 1 {
		t.Errorf("expected 1 for the highest risk, got %v", top)
	}

	low := PriorityScore(Risk{Severity: SeverityLow, BusinessImpact: ImpactLow})
	if math.Abs(low-0.175) > 1e-9 {
		t.Errorf("expected 0.175, got %v", low)
	}

	clamped := PriorityScore(Risk{Severity: SeverityCritical, BusinessImpact: ImpactVeryHigh, Confidence: 5, RiskScore: 9})
	if clamped != 1 {
		t.Errorf("expected out of range inputs to be clamped, got %v", clamped)
	}
}

func TestPrioritizeRisksSortedAndStable(t *testing.T) {
	risks := []Risk{
		{ID: "a", Severity: SeverityLow, BusinessImpact: ImpactLow, Confidence: 0.5},
		{ID: "b", Severity: SeverityCritical, BusinessImpact: ImpactHigh, Confidence: 0.9, RiskScore: 2},
		{ID: "c", Severity: SeverityMedium, BusinessImpact: ImpactMedium, Confidence: 0.5},
		{ID: "d", Severity: SeverityMedium, BusinessImpact: ImpactMedium, Confidence: 0.5},
		{ID: "e", Severity: SeverityHigh, BusinessImpact: ImpactVeryHigh, Confidence: -3},
	}

	out := PrioritizeRisks(risks)
	if len(out) != len(risks) {
		t.Fatalf("expected %d risks, got %d", len(risks), len(out))
	}
	for i, r := range out {
		if r.PriorityScore < 0 || r.PriorityScore > 1 {
			t.Errorf("priority out of range: %+v", r)
		}
		if i > 0 && out[i-1].PriorityScore < r.PriorityScore {
			t.Errorf("not sorted at %d: %v < %v", i, out[i-1].PriorityScore, r.PriorityScore)
		}
	}

	pos := map[string]int{}
	for i, r := range out {
		pos[r.ID] = i
	}
	if pos["c"] > pos["d"] {
		t.Error("expected ties to keep input order")
	}
	if out[0].ID != "b" {
		t.Errorf("expected the critical risk first, got %s", out[0].ID)
	}
	if risks[0].PriorityScore != 0 {
		t.Error("expected input slice to be left untouched")
	}
}

func TestFilterClausesMonotonic(t *testing.T) {
	clauses := []Clause{
		{ID: "1", Confidence: 0.1},
		{ID: "2", Confidence: 0.5},
		{ID: "3", Confidence: 0.6},
		{ID: "4", Confidence: 0.95},
		{ID: "5", Confidence: 1},
	}
	thresholds := []float64{0, 0.1, 0.3, 0.5, 0.6, 0.61, 0.9, 1}

	for i := 0; i < len(thresholds); i++ {
		for j := i + 1; j < len(thresholds); j++ {
			lower := map[string]bool{}
			for _, c := range FilterClauses(clauses, thresholds[i]) {
				lower[c.ID] = true
			}
			for _, c := range FilterClauses(clauses, thresholds[j]) {
				if !lower[c.ID] {
					t.Errorf("clause %s accepted at %v but not at %v", c.ID, thresholds[j], thresholds[i])
				}
			}
		}
	}
}

func TestFilterByTolerance(t *testing.T) {
	risks := []Risk{
		{ID: "low-small", Severity: SeverityLow, RiskScore: 0.1},
		{ID: "low-big", Severity: SeverityLow, RiskScore: 0.5},
		{ID: "medium", Severity: SeverityMedium, RiskScore: 0.1},
		{ID: "high", Severity: SeverityHigh},
		{ID: "critical", Severity: SeverityCritical},
	}

	tests := []struct {
		tolerance string
		want      []string
	}{
		{"low", []string{"low-small", "low-big", "medium", "high", "critical"}},
		{"medium", []string{"low-big", "medium", "high", "critical"}},
		{"high", []string{"high", "critical"}},
	}
	for _, tt := range tests {
		t.Run(tt.tolerance, func(t *testing.T) {
			got := FilterByTolerance(risks, tt.tolerance)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %d risks", tt.want, len(got))
			}
			for i, r := range got {
				if r.ID != tt.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.want[i], r.ID)
				}
			}
		})
	}
}

func TestGenerateRecommendations(t *testing.T) {
	risks := []Risk{
		{ID: "r1", Title: "Unlimited liability", Severity: SeverityCritical, Category: "liability"},
		{ID: "r2", Title: "Termination", Severity: SeverityHigh, Category: "termination"},
		{ID: "r3", Title: "Late fees", Severity: SeverityMedium, Category: "payment"},
		{ID: "r4", Title: "Unknown", Severity: SeverityHigh, Category: "other"},
	}

	recs := GenerateRecommendations(risks, nil)
	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(recs))
	}
	if recs[0].RiskID != "r1" || recs[0].Priority != "urgent" {
		t.Errorf("unexpected first recommendation: %+v", recs[0])
	}
	if recs[1].Priority != "high" {
		t.Errorf("expected high priority, got %s", recs[1].Priority)
	}
	if recs[2].Mitigation != defaultMitigation.text {
		t.Errorf("expected default mitigation for unknown category, got %q", recs[2].Mitigation)
	}
	for _, r := range recs {
		if r.Mitigation == "" || len(r.Actions) == 0 {
			t.Errorf("incomplete recommendation: %+v", r)
		}
	}

	again := GenerateRecommendations(risks, nil)
	if again[0].ID != recs[0].ID {
		t.Error("expected recommendation ids to be stable")
	}

	withMedium := GenerateRecommendations(risks, []string{SeverityMedium})
	if len(withMedium) != 1 || withMedium[0].Priority != "medium" {
		t.Errorf("expected one medium recommendation, got %+v", withMedium)
	}
}

func TestSummarizeRisksEmpty(t *testing.T) {
	s := SummarizeRisks(nil)
	if s.TotalRisks != 0 || s.HighestSeverity != "" || s.AverageScore != 0 {
		t.Errorf("unexpected summary: %+v", s)
	}
	for _, sev := range []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if n, ok := s.BySeverity[sev]; !ok || n != 0 {
			t.Errorf("expected zero count for %s", sev)
		}
	}
}

func TestNormalize(t *testing.T) {
	if NormalizeSeverity(" critical ") != SeverityCritical {
		t.Error("expected severity to be normalized")
	}
	if NormalizeSeverity("severe") != "" {
		t.Error("expected unknown severity to be rejected")
	}
	if NormalizeImpact("very_high") != ImpactVeryHigh {
		t.Error("expected impact to be normalized")
	}
}

func TestSettingsWith(t *testing.T) {
	s := DefaultSettings()
	threshold := 0.9

	got, err := s.With(Options{ConfidenceThreshold: &threshold, RiskTolerance: "high", EnabledFeatures: []string{FeatureClauses}})
	if err != nil {
		t.Fatalf("With failed: %v", err)
	}
	if got.Analysis.ConfidenceThreshold != 0.9 || got.Analysis.RiskTolerance != "high" {
		t.Errorf("overrides not applied: %+v", got.Analysis)
	}
	if got.Enabled(FeatureRisks) || !got.Enabled(FeatureClauses) {
		t.Error("expected only clauses to be enabled")
	}
	if !s.Enabled(FeatureRisks) {
		t.Error("expected base settings to be left untouched")
	}

	bad := 1.5
	for _, opts := range []Options{
		{ConfidenceThreshold: &bad},
		{RiskTolerance: "extreme"},
		{EnabledFeatures: []string{"translation"}},
	} {
		if _, err := s.With(opts); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}

func TestAssembleRecommendsWithRisksHidden(t *testing.T) {
	s, err := DefaultSettings().With(Options{EnabledFeatures: []string{FeatureClauses, FeatureRecommendations}})
	if err != nil {
		t.Fatalf("With failed: %v", err)
	}
	clauses := []Clause{{ID: "c1", Category: "liability", Confidence: 0.9}}
	risks := []Risk{{ID: "r1", AffectedClauses: []string{"c1"}, Category: "liability", Severity: SeverityCritical, Title: "Unlimited liability"}}

	res := Assemble(clauses, risks, s)
	if len(res.Risks) != 0 {
		t.Errorf("expected risks hidden, got %d", len(res.Risks))
	}
	if len(res.Recommendations) != 1 || res.Recommendations[0].RiskID != "r1" {
		t.Errorf("expected a recommendation for r1, got %+v", res.Recommendations)
	}
	if res.Summary.TotalRisks != 0 {
		t.Errorf("summary should only count reported risks, got %d", res.Summary.TotalRisks)
	}
}
