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

// Package analysis exposes contract analysis to ADK agents as a toolset.
package analysis

import (
	"context"
	"fmt"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/achetronic/lexguard/analysis"
	"github.com/achetronic/lexguard/inference"
	"github.com/achetronic/lexguard/plugin"
)

// Service is what the toolset needs from the orchestrator.
// *orchestrator.Orchestrator implements it.
type Service interface {
	ProcessContract(ctx context.Context, text string, opts analysis.Options) (*analysis.Result, error)
	ModelStatus() inference.Status
	ListPlugins() []plugin.Info
}

// Toolset provides tools for an agent to analyze contracts.
type Toolset struct {
	service Service
	tools   []tool.Tool
}

// ToolsetConfig holds configuration for the analysis toolset.
type ToolsetConfig struct {
	Service Service
}

// NewToolset creates a new toolset for contract analysis.
func NewToolset(cfg ToolsetConfig) (*Toolset, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("Service is required")
	}

	ts := &Toolset{service: cfg.Service}

	analyzeTool, err := functiontool.New(
		functiontool.Config{
			Name:        "analyze_contract",
			Description: "Analyze the full text of a contract. Returns the extracted clauses, the identified legal and business risks ordered by priority, recommendations and a summary. Use this whenever the user shares a contract or asks about its risks.",
		},
		ts.analyzeContract,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyze_contract tool: %w", err)
	}

	statusTool, err := functiontool.New(
		functiontool.Config{
			Name:        "analysis_status",
			Description: "Report whether the analysis model is loaded and healthy and which analysis plugins are registered.",
		},
		ts.analysisStatus,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis_status tool: %w", err)
	}

	ts.tools = []tool.Tool{analyzeTool, statusTool}
	return ts, nil
}

// Name returns the name of the toolset.
func (ts *Toolset) Name() string {
	return "contract_analysis_toolset"
}

// Tools returns the list of analysis tools.
func (ts *Toolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	return ts.tools, nil
}

// AnalyzeArgs are the arguments for the analyze_contract tool.
type AnalyzeArgs struct {
	// Text is the full contract text
	Text string `json:"text"`
	// ConfidenceThreshold drops clauses below it, between 0 and 1
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	// RiskTolerance is low, medium or high
	RiskTolerance string `json:"risk_tolerance,omitempty"`
}

// AnalyzeResult is the result of the analyze_contract tool.
type AnalyzeResult struct {
	Summary         string        `json:"summary"`
	OverallRisk     string        `json:"overall_risk"`
	Method          string        `json:"method"`
	FallbackReason  string        `json:"fallback_reason,omitempty"`
	Clauses         []ClauseEntry `json:"clauses"`
	Risks           []RiskEntry   `json:"risks"`
	Recommendations []string      `json:"recommendations"`
}

// ClauseEntry is a clause as seen by the agent.
type ClauseEntry struct {
	Category   string  `json:"category"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// RiskEntry is a risk as seen by the agent.
type RiskEntry struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Severity    string  `json:"severity"`
	Priority    float64 `json:"priority"`
}

func (ts *Toolset) analyzeContract(ctx tool.Context, args AnalyzeArgs) (AnalyzeResult, error) {
	return ts.analyze(ctx, args)
}

func (ts *Toolset) analyze(ctx context.Context, args AnalyzeArgs) (AnalyzeResult, error) {
	if args.Text == "" {
		return AnalyzeResult{}, fmt.Errorf("text cannot be empty")
	}

	res, err := ts.service.ProcessContract(ctx, args.Text, analysis.Options{
		ConfidenceThreshold: args.ConfidenceThreshold,
		RiskTolerance:       args.RiskTolerance,
	})
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("failed to analyze contract: %w", err)
	}

	out := AnalyzeResult{
		Summary:         res.Summary.Text,
		OverallRisk:     res.Summary.OverallRisk,
		Method:          res.Metadata.ProcessingMethod,
		FallbackReason:  res.Metadata.FallbackReason,
		Clauses:         make([]ClauseEntry, 0, len(res.Clauses)),
		Risks:           make([]RiskEntry, 0, len(res.Risks)),
		Recommendations: make([]string, 0, len(res.Recommendations)),
	}
	for _, c := range res.Clauses {
		out.Clauses = append(out.Clauses, ClauseEntry{Category: c.Category, Text: c.Text, Confidence: c.Confidence})
	}
	for _, r := range res.Risks {
		out.Risks = append(out.Risks, RiskEntry{
			Title:       r.Title,
			Description: r.Description,
			Severity:    r.Severity,
			Priority:    r.PriorityScore,
		})
	}
	for _, rec := range res.Recommendations {
		out.Recommendations = append(out.Recommendations, fmt.Sprintf("[%s] %s: %s", rec.Priority, rec.Title, rec.Mitigation))
	}
	return out, nil
}

// StatusArgs are the arguments for the analysis_status tool.
type StatusArgs struct{}

// StatusResult is the result of the analysis_status tool.
type StatusResult struct {
	ModelState   string   `json:"model_state"`
	Model        string   `json:"model,omitempty"`
	Backend      string   `json:"backend,omitempty"`
	ActivePlugin string   `json:"active_plugin,omitempty"`
	Plugins      []string `json:"plugins"`
}

func (ts *Toolset) analysisStatus(ctx tool.Context, _ StatusArgs) (StatusResult, error) {
	return ts.status(), nil
}

func (ts *Toolset) status() StatusResult {
	st := ts.service.ModelStatus()
	out := StatusResult{
		ModelState: st.HealthStatus,
		Model:      st.Model,
		Backend:    st.Backend,
		Plugins:    []string{},
	}
	for _, p := range ts.service.ListPlugins() {
		out.Plugins = append(out.Plugins, p.Name)
		if p.IsActive {
			out.ActivePlugin = p.Name
		}
	}
	return out
}

// Ensure interface is implemented
var _ tool.Toolset = (*Toolset)(nil)
