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

// Package analysis holds the contract analysis data model and the shared
// analysis building blocks: confidence filtering, risk prioritisation,
// recommendation generation, the deterministic RuleEngine and the
// model-driven ModelAnalyzer.
//
// Every analyzer produces its raw clauses and risks and then calls Assemble,
// so all processing methods share the same filtering, ordering and summary
// rules.
package analysis

import (
	"time"

	"github.com/google/uuid"
)

// Processing methods recorded in Metadata.ProcessingMethod.
const (
	MethodPlugin    = "plugin"
	MethodModel     = "model"
	MethodRuleBased = "rule_based"
)

// Features a request can enable.
const (
	FeatureClauses         = "clauses"
	FeatureRisks           = "risks"
	FeatureRecommendations = "recommendations"
	FeatureSummary         = "summary"
)

// Risk severities, lowest first.
const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// Business impact ratings, lowest first.
const (
	ImpactLow      = "Low"
	ImpactMedium   = "Medium"
	ImpactHigh     = "High"
	ImpactVeryHigh = "Very High"
)

// idNamespace seeds the name-based UUIDs of clauses, risks and
// recommendations so identical input always yields identical ids.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/achetronic/lexguard/analysis"))

func stableID(parts ...string) string {
	var b []byte
	for i, p := range parts {
		if i > 0 {
			b = append(b, 0)
		}
		b = append(b, p...)
	}
	return uuid.NewSHA1(idNamespace, b).String()
}

// Options are per-request overrides of the analysis namespace. Nil or empty
// fields fall back to the configured values.
type Options struct {
	ConfidenceThreshold *float64 `json:"confidenceThreshold,omitempty"`
	EnabledFeatures     []string `json:"enabledFeatures,omitempty"`
	RiskTolerance       string   `json:"riskTolerance,omitempty"`
}

// Clause is a categorised excerpt of the contract text. Position is the
// byte offset of the excerpt in the analysed document, or -1 when unknown.
type Clause struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Position   int     `json:"position"`
}

// Risk is a concern derived from one or more clauses.
type Risk struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Severity        string   `json:"severity"`
	Category        string   `json:"category"`
	AffectedClauses []string `json:"affectedClauses"`
	Confidence      float64  `json:"confidence"`
	RiskScore       float64  `json:"riskScore"`
	BusinessImpact  string   `json:"businessImpact"`
	PriorityScore   float64  `json:"priorityScore"`
}

// Recommendation is a mitigation for one risk.
type Recommendation struct {
	ID         string   `json:"id"`
	RiskID     string   `json:"riskId"`
	Title      string   `json:"title"`
	Mitigation string   `json:"mitigation"`
	Priority   string   `json:"priority"`
	Actions    []string `json:"actions"`
}

// Summary describes a whole analysis result.
type Summary struct {
	Text         string         `json:"text"`
	TotalClauses int            `json:"totalClauses"`
	TotalRisks   int            `json:"totalRisks"`
	BySeverity   map[string]int `json:"bySeverity"`
	OverallRisk  string         `json:"overallRisk"`
	OverallScore float64        `json:"overallScore"`
}

// RiskSummary describes a RiskReport.
type RiskSummary struct {
	TotalRisks      int            `json:"totalRisks"`
	BySeverity      map[string]int `json:"bySeverity"`
	HighestSeverity string         `json:"highestSeverity"`
	AverageScore    float64        `json:"averageScore"`
}

// RiskReport is the output of a risk analysis over a set of clauses.
type RiskReport struct {
	Risks   []Risk      `json:"risks"`
	Summary RiskSummary `json:"summary"`
}

// TierAttempt records what happened in one fallback tier.
type TierAttempt struct {
	Tier     string `json:"tier"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// Metadata describes how a Result was produced.
type Metadata struct {
	ProcessingMethod string        `json:"processingMethod"`
	ModelUsed        string        `json:"modelUsed,omitempty"`
	Plugin           string        `json:"plugin,omitempty"`
	PluginVersion    string        `json:"pluginVersion,omitempty"`
	ProcessingTime   time.Duration `json:"processingTime"`
	Confidence       float64       `json:"confidence"`
	FallbackReason   string        `json:"fallbackReason,omitempty"`
	Attempts         []TierAttempt `json:"attempts,omitempty"`
}

// Result is the full analysis of one contract.
type Result struct {
	Summary         Summary          `json:"summary"`
	Clauses         []Clause         `json:"clauses"`
	Risks           []Risk           `json:"risks"`
	Recommendations []Recommendation `json:"recommendations"`
	Metadata        Metadata         `json:"metadata"`
}
