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

package orchestrator

import (
	"context"
	"maps"

	"github.com/achetronic/lexguard/config"
	"github.com/achetronic/lexguard/errors"
	"github.com/achetronic/lexguard/inference"
	"github.com/achetronic/lexguard/plugin"
)

// Stats counts ProcessContract calls since the Orchestrator was created.
type Stats struct {
	Requests  int64            `json:"requests"`
	Failures  int64            `json:"failures"`
	Fallbacks int64            `json:"fallbacks"`
	ByMethod  map[string]int64 `json:"byMethod"`
}

// PerformanceReport combines the model counters with the request counters.
type PerformanceReport struct {
	Model    inference.Performance `json:"model"`
	Requests Stats                 `json:"requests"`
}

func (o *Orchestrator) count(method string, ok, fellBack bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stats.Requests++
	if !ok {
		o.stats.Failures++
		return
	}
	if fellBack {
		o.stats.Fallbacks++
	}
	o.stats.ByMethod[method]++
}

// PerformanceMetrics returns a snapshot of the model and request counters.
func (o *Orchestrator) PerformanceMetrics() PerformanceReport {
	o.mu.Lock()
	stats := o.stats
	stats.ByMethod = maps.Clone(o.stats.ByMethod)
	o.mu.Unlock()

	report := PerformanceReport{Requests: stats}
	if o.manager != nil {
		report.Model = o.manager.Performance()
	}
	return report
}

// ModelStatus returns the manager status, or an unloaded status when no
// manager is configured.
func (o *Orchestrator) ModelStatus() inference.Status {
	if o.manager == nil {
		return inference.Status{
			State:        inference.StateUnloaded,
			StateName:    inference.StateUnloaded.String(),
			HealthStatus: inference.StateUnloaded.HealthStatus(),
		}
	}
	return o.manager.Status()
}

// LoadModel loads the model with overrides merged over the model namespace.
func (o *Orchestrator) LoadModel(ctx context.Context, overrides config.Values) error {
	if o.manager == nil {
		return errors.Validation("Orchestrator", "LoadModel", "no model manager configured")
	}
	return o.manager.Load(ctx, overrides)
}

// UnloadModel releases the loaded model. It is a no-op without a manager.
func (o *Orchestrator) UnloadModel() {
	if o.manager != nil {
		o.manager.Unload()
	}
}

// HealthCheck probes the model and returns its state.
func (o *Orchestrator) HealthCheck(ctx context.Context) inference.State {
	if o.manager == nil {
		return inference.StateUnloaded
	}
	return o.manager.HealthCheck(ctx)
}

// Configuration returns a copy of a namespace.
func (o *Orchestrator) Configuration(name string) (config.Values, error) {
	return o.store.Get(name)
}

// UpdateConfiguration deep-merges partial into a namespace. Model changes
// go through the manager first, so a failed reload leaves both the store
// and the loaded model as they were.
func (o *Orchestrator) UpdateConfiguration(ctx context.Context, name string, partial config.Values) error {
	if name == config.NamespaceModel && o.manager != nil {
		return o.manager.UpdateConfiguration(ctx, partial)
	}
	return o.store.Update(ctx, name, partial)
}

// SetConfiguration replaces a namespace with v.
func (o *Orchestrator) SetConfiguration(ctx context.Context, name string, v config.Values) error {
	if name == config.NamespaceModel && o.manager != nil {
		if err := config.ModelSchema.Validate(v); err != nil {
			return err
		}
		return o.manager.UpdateConfiguration(ctx, v)
	}
	return o.store.Set(ctx, name, v, true)
}

// ResetConfiguration restores a namespace to its defaults.
func (o *Orchestrator) ResetConfiguration(ctx context.Context, name string) error {
	if name == config.NamespaceModel && o.manager != nil {
		defaults, err := o.store.Defaults(name)
		if err != nil {
			return err
		}
		return o.manager.UpdateConfiguration(ctx, defaults)
	}
	return o.store.Reset(ctx, name)
}

// RegisterPlugin initializes and registers p under name.
func (o *Orchestrator) RegisterPlugin(ctx context.Context, name string, p plugin.Plugin) error {
	return o.plugins.Register(ctx, name, p)
}

// UnregisterPlugin cleans up and removes a plugin.
func (o *Orchestrator) UnregisterPlugin(ctx context.Context, name string) error {
	return o.plugins.Unregister(ctx, name)
}

// SwitchPlugin makes a registered plugin the active one.
func (o *Orchestrator) SwitchPlugin(name string) error {
	return o.plugins.Switch(name)
}

// ListPlugins describes every registered plugin in registration order.
func (o *Orchestrator) ListPlugins() []plugin.Info {
	return o.plugins.List()
}

// PluginHistory returns the recorded plugin switches, oldest first.
func (o *Orchestrator) PluginHistory() []plugin.SwitchEvent {
	return o.plugins.History()
}

// Plugins returns the plugin registry.
func (o *Orchestrator) Plugins() *plugin.Registry {
	return o.plugins
}
