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

package errors

import (
	"fmt"
	"strings"
)

// TierFailure records why a single fallback tier could not produce a result.
type TierFailure struct {
	Tier     string `json:"tier"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

// AnalysisError is the terminal error returned when every fallback tier
// failed. Cause is the last underlying error.
type AnalysisError struct {
	Reason   string
	Failures []TierFailure
	Cause    error
}

// NewAnalysisError builds a terminal analysis error.
func NewAnalysisError(reason string, failures []TierFailure, cause error) *AnalysisError {
	return &AnalysisError{Reason: reason, Failures: failures, Cause: cause}
}

func (e *AnalysisError) Error() string {
	var sb strings.Builder
	sb.WriteString("analysis failed: ")
	sb.WriteString(e.Reason)
	if len(e.Failures) > 0 {
		tiers := make([]string, 0, len(e.Failures))
		for _, f := range e.Failures {
			tiers = append(tiers, fmt.Sprintf("%s(%d)", f.Tier, f.Attempts))
		}
		sb.WriteString(" [tried: ")
		sb.WriteString(strings.Join(tiers, ", "))
		sb.WriteString("]")
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the last underlying cause.
func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// Is matches ErrAnalysis.
func (e *AnalysisError) Is(target error) bool {
	return target == ErrAnalysis
}
