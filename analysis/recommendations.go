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

import "slices"

type mitigation struct {
	text    string
	actions []string
}

var mitigations = map[string]mitigation{
	"payment": {
		text:    "Negotiate payment terms, late fees and interest to market standard levels.",
		actions: []string{"Cap late payment interest", "Add a grace period before penalties apply"},
	},
	"termination": {
		text:    "Balance termination rights and require reasonable notice.",
		actions: []string{"Require written notice of at least 30 days", "Add a cure period for alleged breaches"},
	},
	"liability": {
		text:    "Limit liability to a defined cap and exclude indirect damages.",
		actions: []string{"Cap liability at fees paid in the last 12 months", "Exclude consequential and indirect damages"},
	},
	"indemnification": {
		text:    "Make indemnities mutual and limit them to third party claims caused by the indemnifying party.",
		actions: []string{"Make the indemnity mutual", "Exclude claims caused by your own negligence"},
	},
	"confidentiality": {
		text:    "Bound confidentiality obligations in time and scope.",
		actions: []string{"Limit the obligation to a fixed term", "Add standard exclusions for public information"},
	},
	"intellectual_property": {
		text:    "Retain ownership of pre-existing IP and license rather than assign.",
		actions: []string{"Carve out background IP", "Replace assignment with a limited license"},
	},
	"dispute_resolution": {
		text:    "Preserve access to courts and fair dispute forums.",
		actions: []string{"Remove jury and class action waivers", "Agree on a neutral venue"},
	},
	"governing_law": {
		text:    "Agree on a governing law both parties can operate under.",
		actions: []string{"Propose your home jurisdiction or a neutral one"},
	},
	"warranty": {
		text:    "Obtain baseline warranties on quality and fitness.",
		actions: []string{"Add a performance warranty", "Limit as-is disclaimers"},
	},
	"force_majeure": {
		text:    "Define force majeure events precisely and add a termination right for prolonged events.",
		actions: []string{"List qualifying events explicitly", "Allow termination after 60 days of force majeure"},
	},
	"non_compete": {
		text:    "Narrow restrictive covenants in duration, geography and scope.",
		actions: []string{"Limit duration to 12 months", "Restrict to directly competing activities"},
	},
	"data_protection": {
		text:    "Require data protection commitments aligned with applicable law.",
		actions: []string{"Attach a data processing agreement", "Require breach notification within 72 hours"},
	},
	"renewal": {
		text:    "Control automatic renewal and price changes on renewal.",
		actions: []string{"Require opt-in renewal or a notice window", "Cap price increases on renewal"},
	},
}

var defaultMitigation = mitigation{
	text:    "Review the clause with counsel and negotiate balanced terms.",
	actions: []string{"Request legal review"},
}

// RecommendationPriority maps a risk severity to a recommendation priority.
func RecommendationPriority(severity string) string {
	switch severity {
	case SeverityCritical:
		return "urgent"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// GenerateRecommendations creates one recommendation per risk whose
// severity is in severities. Empty severities means High and Critical.
func GenerateRecommendations(risks []Risk, severities []string) []Recommendation {
	if len(severities) == 0 {
		severities = []string{SeverityHigh, SeverityCritical}
	}

	recs := make([]Recommendation, 0, len(risks))
	for _, r := range risks {
		if !slices.Contains(severities, r.Severity) {
			continue
		}
		m, ok := mitigations[r.Category]
		if !ok {
			m = defaultMitigation
		}
		recs = append(recs, Recommendation{
			ID:         stableID("recommendation", r.ID),
			RiskID:     r.ID,
			Title:      "Mitigate: " + r.Title,
			Mitigation: m.text,
			Priority:   RecommendationPriority(r.Severity),
			Actions:    slices.Clone(m.actions),
		})
	}
	return recs
}
