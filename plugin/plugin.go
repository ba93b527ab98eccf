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

// Package plugin defines the contract analysis plugin contract and a
// Registry of hot-swappable plugins.
//
// A plugin must implement every Plugin method and advertise the required
// capabilities. Registration runs CheckContract and rejects incomplete
// plugins before they are initialized:
//
//	registry := plugin.NewRegistry(plugin.RegistryConfig{Logger: logger})
//	if err := registry.Register(ctx, "rules", rulebased.New(rulebased.Config{})); err != nil {
//	    return err
//	}
//	result, err := registry.Process(ctx, text, analysis.Options{})
package plugin

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/achetronic/lexguard/analysis"
	"github.com/achetronic/lexguard/errors"
)

// Capability names a plugin operation.
type Capability string

const (
	CapabilityProcessContract Capability = "process_contract"
	CapabilityExtractClauses  Capability = "extract_clauses"
	CapabilityAnalyzeRisks    Capability = "analyze_risks"

	// Optional capabilities.
	CapabilitySummarize      Capability = "summarize"
	CapabilityModelInference Capability = "model_inference"
)

// RequiredCapabilities must all be advertised by a plugin.
var RequiredCapabilities = []Capability{
	CapabilityProcessContract,
	CapabilityExtractClauses,
	CapabilityAnalyzeRisks,
}

// Metadata identifies a plugin implementation.
type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
}

// Plugin is a swappable contract analysis implementation.
type Plugin interface {
	// Initialize prepares the plugin. It is called once on registration.
	Initialize(ctx context.Context) error

	ProcessContract(ctx context.Context, text string, opts analysis.Options) (*analysis.Result, error)
	ExtractClauses(ctx context.Context, text string, opts analysis.Options) ([]analysis.Clause, error)

	// AnalyzeRisks must reject a nil slice with a Validation error.
	AnalyzeRisks(ctx context.Context, clauses []analysis.Clause, opts analysis.Options) (*analysis.RiskReport, error)

	Capabilities() []Capability
	Metadata() Metadata

	// Cleanup releases resources. It is called once on unregistration.
	Cleanup(ctx context.Context) error
}

// ContractReport is the outcome of CheckContract.
type ContractReport struct {
	Valid    bool         `json:"valid"`
	Missing  []Capability `json:"missing,omitempty"`
	Problems []string     `json:"problems,omitempty"`
}

// CheckContract verifies that p is usable: not nil, advertising every
// required capability and carrying a name and version.
func CheckContract(p Plugin) ContractReport {
	if isNil(p) {
		return ContractReport{Problems: []string{"plugin is nil"}}
	}

	var report ContractReport
	caps := p.Capabilities()
	for _, c := range RequiredCapabilities {
		if !slices.Contains(caps, c) {
			report.Missing = append(report.Missing, c)
		}
	}
	if len(report.Missing) > 0 {
		names := make([]string, len(report.Missing))
		for i, c := range report.Missing {
			names[i] = string(c)
		}
		report.Problems = append(report.Problems, "missing capabilities: "+strings.Join(names, ", "))
	}

	meta := p.Metadata()
	if strings.TrimSpace(meta.Name) == "" {
		report.Problems = append(report.Problems, "metadata name is empty")
	}
	if strings.TrimSpace(meta.Version) == "" {
		report.Problems = append(report.Problems, "metadata version is empty")
	}

	report.Valid = len(report.Problems) == 0
	return report
}

// isNil also catches a nil pointer stored in the interface.
func isNil(p Plugin) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Err returns a PluginContract error describing the report, or nil when the
// report is valid.
func (r ContractReport) Err(name string) error {
	if r.Valid {
		return nil
	}
	return errors.PluginContract("Registry", "Register", "plugin %q rejected: %s", name, strings.Join(r.Problems, "; "))
}

// String is used in log lines.
func (r ContractReport) String() string {
	if r.Valid {
		return "valid"
	}
	return fmt.Sprintf("invalid (%s)", strings.Join(r.Problems, "; "))
}
