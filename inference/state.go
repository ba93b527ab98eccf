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

package inference

import (
	"time"
)

// State is the lifecycle state of the managed model.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateHealthy
	StateDegraded
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// HealthStatus maps the state to the health vocabulary used by status
// endpoints: unloaded, loading, healthy, degraded or unhealthy.
func (s State) HealthStatus() string {
	if s == StateError {
		return "unhealthy"
	}
	return s.String()
}

// Serving reports whether inference calls are accepted in this state.
func (s State) Serving() bool {
	return s == StateHealthy || s == StateDegraded
}

// Performance holds the inference counters of the current load.
type Performance struct {
	InferenceCount     int64         `json:"inferenceCount"`
	SuccessCount       int64         `json:"successCount"`
	FailureCount       int64         `json:"failureCount"`
	TotalTime          time.Duration `json:"totalTime"`
	AverageTime        time.Duration `json:"averageTime"`
	SuccessRate        float64       `json:"successRate"`
	SlowCount          int64         `json:"slowCount"`
	OptimizationPasses int64         `json:"optimizationPasses"`
}

func (p *Performance) record(d time.Duration, ok, slow bool) {
	p.InferenceCount++
	if ok {
		p.SuccessCount++
	} else {
		p.FailureCount++
	}
	if slow {
		p.SlowCount++
	}
	p.TotalTime += d
	p.AverageTime = p.TotalTime / time.Duration(p.InferenceCount)
	p.SuccessRate = float64(p.SuccessCount) / float64(p.InferenceCount)
}

// Status is a point-in-time snapshot of the Manager.
type Status struct {
	State        State  `json:"-"`
	StateName    string `json:"state"`
	HealthStatus string `json:"healthStatus"`
	Backend      string `json:"backend"`
	Model        string `json:"model,omitempty"`

	LoadedAt time.Time     `json:"loadedAt,omitempty"`
	LoadTime time.Duration `json:"loadTime"`

	EstimatedMemoryMB      float64 `json:"estimatedMemoryMB"`
	MemoryCeilingMB        float64 `json:"memoryCeilingMB"`
	Optimized              bool    `json:"optimized"`
	EffectiveContextWindow int     `json:"effectiveContextWindow"`

	Descriptor      *ModelDescriptor `json:"descriptor,omitempty"`
	LastError       string           `json:"lastError,omitempty"`
	LastHealthCheck time.Time        `json:"lastHealthCheck,omitempty"`

	Performance Performance `json:"performance"`
}
