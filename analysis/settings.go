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
	"slices"

	"github.com/achetronic/lexguard/config"
	"github.com/achetronic/lexguard/errors"
)

// Settings is the resolved configuration one analysis runs with.
type Settings struct {
	Analysis   config.Analysis
	Extraction config.Extraction
	Risk       config.Risk
}

// LoadSettings reads the analysis, extraction and risk namespaces. A nil
// store yields the compiled defaults.
func LoadSettings(store *config.Store) (Settings, error) {
	if store == nil {
		store = config.NewStore(config.StoreConfig{})
	}

	var s Settings
	var err error
	if s.Analysis, err = store.AnalysisSettings(); err != nil {
		return s, fmt.Errorf("failed to read analysis settings: %w", err)
	}
	if s.Extraction, err = store.ExtractionSettings(); err != nil {
		return s, fmt.Errorf("failed to read extraction settings: %w", err)
	}
	if s.Risk, err = store.RiskSettings(); err != nil {
		return s, fmt.Errorf("failed to read risk settings: %w", err)
	}
	return s, nil
}

// DefaultSettings returns the compiled defaults.
func DefaultSettings() Settings {
	s, _ := LoadSettings(nil)
	return s
}

// With applies request overrides. Invalid overrides are rejected with a
// Validation error.
func (s Settings) With(opts Options) (Settings, error) {
	out := s
	out.Analysis.EnabledFeatures = slices.Clone(s.Analysis.EnabledFeatures)

	if opts.ConfidenceThreshold != nil {
		t := *opts.ConfidenceThreshold
		if t < 0 || t > 1 || t != t {
			return s, errors.Validation("Analysis", "Options", "confidenceThreshold must be within [0, 1], got %v", t)
		}
		out.Analysis.ConfidenceThreshold = t
	}
	if len(opts.EnabledFeatures) > 0 {
		for _, f := range opts.EnabledFeatures {
			if !slices.Contains(config.Features, f) {
				return s, errors.Validation("Analysis", "Options", "unknown feature %q", f)
			}
		}
		out.Analysis.EnabledFeatures = slices.Clone(opts.EnabledFeatures)
	}
	if opts.RiskTolerance != "" {
		switch opts.RiskTolerance {
		case "low", "medium", "high":
			out.Analysis.RiskTolerance = opts.RiskTolerance
		default:
			return s, errors.Validation("Analysis", "Options", "riskTolerance must be one of low, medium, high, got %q", opts.RiskTolerance)
		}
	}
	return out, nil
}

// Enabled reports whether a feature is enabled.
func (s Settings) Enabled(feature string) bool {
	return slices.Contains(s.Analysis.EnabledFeatures, feature)
}

func (s Settings) categoryEnabled(category string) bool {
	return len(s.Extraction.Categories) == 0 || slices.Contains(s.Extraction.Categories, category)
}
