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
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

const (
	bytesPerMB = 1024 * 1024

	// fp16 weights; optimized models are estimated at 8-bit.
	bytesPerParameter  = 2.0
	optimizedWeightCut = 0.5

	// KV cache per context token, in MB.
	kvCacheMBPerToken = 0.03125

	// Share of host memory used as the ceiling when none is configured.
	hostMemoryRatio = 0.80

	minEffectiveContext = 4096
)

// MemoryProbe returns the total host memory in bytes.
type MemoryProbe func() (uint64, error)

// HostMemory reads total physical memory through gopsutil.
func HostMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("failed to read host memory: %w", err)
	}
	return vm.Total, nil
}

// EstimateMemoryMB estimates the resident size of a model: its weights plus
// the KV cache for the context window. params is in billions.
func EstimateMemoryMB(params float64, contextWindow int, optimized bool) float64 {
	weights := params * 1e9 * bytesPerParameter / bytesPerMB
	if optimized {
		weights *= optimizedWeightCut
	}
	return weights + float64(contextWindow)*kvCacheMBPerToken
}

// memoryCeilingMB resolves the configured ceiling, falling back to a share
// of host memory. Zero means unbounded (probe failed and nothing set).
func memoryCeilingMB(configuredMB int, probe MemoryProbe) (float64, error) {
	if configuredMB > 0 {
		return float64(configuredMB), nil
	}
	if probe == nil {
		return 0, nil
	}
	total, err := probe()
	if err != nil {
		return 0, err
	}
	return float64(total) / bytesPerMB * hostMemoryRatio, nil
}
