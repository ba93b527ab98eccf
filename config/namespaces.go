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

package config

// Built-in namespace names.
const (
	NamespaceModel       = "model"
	NamespaceAnalysis    = "analysis"
	NamespaceExtraction  = "extraction"
	NamespaceRisk        = "risk"
	NamespacePerformance = "performance"
)

// Namespace binds a name to its schema and compiled defaults.
type Namespace struct {
	Name   string
	Schema Schema

	// Defaults builds a fresh default value on every call.
	Defaults func() Values
}

// Model holds the inference model settings.
type Model struct {
	ModelName          string  `json:"modelName"`
	Temperature        float64 `json:"temperature"`
	MaxTokens          int     `json:"maxTokens"`
	ContextWindow      int     `json:"contextWindow"`
	Timeout            int     `json:"timeout"`
	RetryAttempts      int     `json:"retryAttempts"`
	BatchSize          int     `json:"batchSize"`
	MemoryOptimization bool    `json:"memoryOptimization"`
}

// Analysis holds request level analysis defaults.
type Analysis struct {
	ConfidenceThreshold float64  `json:"confidenceThreshold"`
	EnabledFeatures     []string `json:"enabledFeatures"`
	RiskTolerance       string   `json:"riskTolerance"`
	MaxDocumentLength   int      `json:"maxDocumentLength"`
}

// Extraction holds clause extraction settings. CustomPatterns maps a clause
// category to extra keywords the rule engine matches for it.
type Extraction struct {
	MinClauseLength int                 `json:"minClauseLength"`
	MaxClauses      int                 `json:"maxClauses"`
	Categories      []string            `json:"categories"`
	CustomPatterns  map[string][]string `json:"customPatterns"`
}

// Risk holds risk filtering and recommendation settings.
type Risk struct {
	MinSeverity              string   `json:"minSeverity"`
	RecommendationSeverities []string `json:"recommendationSeverities"`
	MaxRisks                 int      `json:"maxRisks"`
}

// Performance holds resource and latency ceilings.
type Performance struct {
	// MaxMemoryMB of 0 means 80% of host memory.
	MaxMemoryMB          int `json:"maxMemoryMB"`
	MaxProcessingTimeMs  int `json:"maxProcessingTimeMs"`
	HealthCheckLatencyMs int `json:"healthCheckLatencyMs"`
	BackoffInitialMs     int `json:"backoffInitialMs"`
	BackoffMaxMs         int `json:"backoffMaxMs"`
}

// ContextWindows lists the accepted model context window sizes.
var ContextWindows = []any{4096, 8192, 16384, 32768, 65536, 128000}

// Features lists the analysis features a request can enable.
var Features = []string{"clauses", "risks", "recommendations", "summary"}

// Severities lists risk severities from lowest to highest.
var Severities = []string{"Low", "Medium", "High", "Critical"}

// ClauseCategories lists the clause categories known to the analyzers.
var ClauseCategories = []string{
	"payment",
	"termination",
	"liability",
	"indemnification",
	"confidentiality",
	"intellectual_property",
	"dispute_resolution",
	"governing_law",
	"warranty",
	"force_majeure",
	"non_compete",
	"data_protection",
	"renewal",
	"general",
}

// ModelSchema validates the model namespace. It is also used by the
// inference manager for partial updates.
var ModelSchema = Schema{
	"modelName":          {Type: TypeString, Required: true},
	"temperature":        {Type: TypeNumber, Min: Bound(0), Max: Bound(2), Required: true},
	"maxTokens":          {Type: TypeInteger, Min: Bound(0), ExclusiveMin: true, Max: Bound(8192), Required: true},
	"contextWindow":      {Type: TypeInteger, Enum: ContextWindows, Required: true},
	"timeout":            {Type: TypeInteger, Min: Bound(0), ExclusiveMin: true, Max: Bound(300000), Required: true},
	"retryAttempts":      {Type: TypeInteger, Min: Bound(1), Max: Bound(10), Required: true},
	"batchSize":          {Type: TypeInteger, Min: Bound(1), Max: Bound(20), Required: true},
	"memoryOptimization": {Type: TypeBool, Required: true},
}

// DefaultModel returns the compiled model defaults.
func DefaultModel() Values {
	return Values{
		"modelName":          "llama3.1:8b",
		"temperature":        0.1,
		"maxTokens":          2048,
		"contextWindow":      128000,
		"timeout":            60000,
		"retryAttempts":      3,
		"batchSize":          5,
		"memoryOptimization": true,
	}
}

var analysisSchema = Schema{
	"confidenceThreshold": {Type: TypeNumber, Min: Bound(0), Max: Bound(1), Required: true},
	"enabledFeatures":     {Type: TypeStringArray, Items: Features, Required: true},
	"riskTolerance":       {Type: TypeString, Enum: []any{"low", "medium", "high"}, Required: true},
	"maxDocumentLength":   {Type: TypeInteger, Min: Bound(1000), Max: Bound(2000000), Required: true},
}

func defaultAnalysis() Values {
	return Values{
		"confidenceThreshold": 0.6,
		"enabledFeatures":     append([]string(nil), Features...),
		"riskTolerance":       "medium",
		"maxDocumentLength":   500000,
	}
}

var extractionSchema = Schema{
	"minClauseLength": {Type: TypeInteger, Min: Bound(10), Max: Bound(1000), Required: true},
	"maxClauses":      {Type: TypeInteger, Min: Bound(1), Max: Bound(1000), Required: true},
	"categories":      {Type: TypeStringArray, Items: ClauseCategories, Required: true},
	"customPatterns":  {Type: TypeObject, Additional: &Rule{Type: TypeStringArray}},
}

func defaultExtraction() Values {
	return Values{
		"minClauseLength": 40,
		"maxClauses":      200,
		"categories":      append([]string(nil), ClauseCategories...),
		"customPatterns":  map[string]any{},
	}
}

var riskSchema = Schema{
	"minSeverity":              {Type: TypeString, Enum: []any{"Low", "Medium", "High", "Critical"}, Required: true},
	"recommendationSeverities": {Type: TypeStringArray, Items: Severities, Required: true},
	"maxRisks":                 {Type: TypeInteger, Min: Bound(1), Max: Bound(500), Required: true},
}

func defaultRisk() Values {
	return Values{
		"minSeverity":              "Low",
		"recommendationSeverities": []string{"High", "Critical"},
		"maxRisks":                 100,
	}
}

var performanceSchema = Schema{
	"maxMemoryMB":          {Type: TypeInteger, Min: Bound(0), Max: Bound(1048576), Required: true},
	"maxProcessingTimeMs":  {Type: TypeInteger, Min: Bound(1), Max: Bound(600000), Required: true},
	"healthCheckLatencyMs": {Type: TypeInteger, Min: Bound(1), Max: Bound(60000), Required: true},
	"backoffInitialMs":     {Type: TypeInteger, Min: Bound(1), Max: Bound(10000), Required: true},
	"backoffMaxMs":         {Type: TypeInteger, Min: Bound(1), Max: Bound(60000), Required: true},
}

func defaultPerformance() Values {
	return Values{
		"maxMemoryMB":          0,
		"maxProcessingTimeMs":  30000,
		"healthCheckLatencyMs": 5000,
		"backoffInitialMs":     200,
		"backoffMaxMs":         2000,
	}
}

// BuiltinNamespaces returns the namespaces every Store registers.
func BuiltinNamespaces() []Namespace {
	return []Namespace{
		{Name: NamespaceModel, Schema: ModelSchema, Defaults: DefaultModel},
		{Name: NamespaceAnalysis, Schema: analysisSchema, Defaults: defaultAnalysis},
		{Name: NamespaceExtraction, Schema: extractionSchema, Defaults: defaultExtraction},
		{Name: NamespaceRisk, Schema: riskSchema, Defaults: defaultRisk},
		{Name: NamespacePerformance, Schema: performanceSchema, Defaults: defaultPerformance},
	}
}
