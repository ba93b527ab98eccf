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

package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/achetronic/lexguard/analysis"
	"github.com/achetronic/lexguard/errors"
	"github.com/achetronic/lexguard/metrics"
)

// ErrNoActivePlugin is returned by Process when no plugin is active.
var ErrNoActivePlugin = errors.New("no active plugin")

// Info describes a registered plugin.
type Info struct {
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Description  string       `json:"description,omitempty"`
	Capabilities []Capability `json:"capabilities"`
	Initialized  bool         `json:"initialized"`
	IsActive     bool         `json:"isActive"`
	IsDefault    bool         `json:"isDefault"`
	RegisteredAt time.Time    `json:"registeredAt"`
}

// SwitchEvent records a change of the active plugin. From is empty when no
// plugin was active.
type SwitchEvent struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// RegistryConfig holds configuration for Registry.
type RegistryConfig struct {
	Logger  *slog.Logger
	Metrics *metrics.Registry
}

type entry struct {
	plugin       Plugin
	meta         Metadata
	caps         []Capability
	initialized  bool
	registeredAt time.Time
}

// Registry holds the registered plugins, the active one and the default
// one. The default is the earliest registered plugin still present.
// All methods are safe for concurrent use.
type Registry struct {
	// lifecycle serializes Register and Unregister so plugin Initialize and
	// Cleanup run without holding mu.
	lifecycle sync.Mutex

	mu      sync.RWMutex
	plugins map[string]*entry
	order   []string
	active  string
	history []SwitchEvent

	logger  *slog.Logger
	metrics *metrics.Registry
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		plugins: make(map[string]*entry),
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// Register validates p against the plugin contract, initializes it and adds
// it under name. The first registered plugin becomes default and active.
// Nothing is stored when validation or Initialize fails.
func (r *Registry) Register(ctx context.Context, name string, p Plugin) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Validation("Registry", "Register", "plugin name is empty")
	}

	report := CheckContract(p)
	if err := report.Err(name); err != nil {
		r.logger.Warn("PluginRegistry: plugin rejected", "plugin", name, "report", report.String())
		return err
	}

	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.RLock()
	_, exists := r.plugins[name]
	r.mu.RUnlock()
	if exists {
		return errors.Validation("Registry", "Register", "plugin %q is already registered", name)
	}

	if err := p.Initialize(ctx); err != nil {
		return errors.Wrap(err, "Registry", "Register", fmt.Sprintf("initialize plugin %q", name))
	}

	r.mu.Lock()
	r.plugins[name] = &entry{
		plugin:       p,
		meta:         p.Metadata(),
		caps:         slices.Clone(p.Capabilities()),
		initialized:  true,
		registeredAt: time.Now(),
	}
	r.order = append(r.order, name)
	activated := false
	if r.active == "" {
		r.switchLocked(name)
		activated = true
	}
	count := len(r.order)
	r.mu.Unlock()

	r.metrics.SetPluginsRegistered(count)
	r.logger.Info("PluginRegistry: plugin registered",
		"plugin", name,
		"version", p.Metadata().Version,
		"active", activated,
	)
	return nil
}

// Unregister removes name and then calls its Cleanup. A Cleanup failure is
// logged, not returned. When name was active the default takes over, or no
// plugin stays active when none is left.
func (r *Registry) Unregister(ctx context.Context, name string) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	e, ok := r.plugins[name]
	if !ok {
		r.mu.Unlock()
		return errors.Validation("Registry", "Unregister", "plugin %q is not registered", name)
	}
	delete(r.plugins, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })

	wasActive := r.active == name
	if wasActive {
		if def := r.defaultLocked(); def != "" {
			r.switchLocked(def)
		} else {
			r.active = ""
		}
	}
	next := r.active
	count := len(r.order)
	r.mu.Unlock()

	r.metrics.SetPluginsRegistered(count)

	if err := e.plugin.Cleanup(ctx); err != nil {
		r.logger.Warn("PluginRegistry: plugin cleanup failed", "plugin", name, "error", err)
	}

	r.logger.Info("PluginRegistry: plugin unregistered",
		"plugin", name,
		"wasActive", wasActive,
		"active", next,
	)
	return nil
}

// Switch makes name the active plugin. An unknown name is an error and
// changes nothing. Switching to the plugin already active is a no-op.
func (r *Registry) Switch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plugins[name]; !ok {
		return errors.Validation("Registry", "Switch", "plugin %q is not registered", name)
	}
	if r.active == name {
		return nil
	}
	from := r.active
	r.switchLocked(name)

	r.logger.Info("PluginRegistry: active plugin switched", "from", from, "to", name)
	return nil
}

// SwitchToDefault makes the default plugin active.
func (r *Registry) SwitchToDefault() error {
	r.mu.RLock()
	def := r.defaultLocked()
	r.mu.RUnlock()

	if def == "" {
		return errors.Validation("Registry", "SwitchToDefault", "no plugin is registered")
	}
	return r.Switch(def)
}

func (r *Registry) switchLocked(name string) {
	r.history = append(r.history, SwitchEvent{From: r.active, To: name, Timestamp: time.Now()})
	r.active = name
	r.metrics.IncPluginSwitch()
}

func (r *Registry) defaultLocked() string {
	if len(r.order) == 0 {
		return ""
	}
	return r.order[0]
}

// Default returns the default plugin name, or "" when none is registered.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultLocked()
}

// Active returns a snapshot of the active plugin. ok is false when no
// plugin is active.
func (r *Registry) Active() (p Plugin, info Info, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == "" {
		return nil, Info{}, false
	}
	e := r.plugins[r.active]
	return e.plugin, r.infoLocked(r.active, e), true
}

// Get returns the plugin registered under name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.plugins[name]
	if !ok {
		return nil, false
	}
	return e.plugin, true
}

// FindByCapability describes the plugins advertising c, in registration
// order, with their active and default flags set.
func (r *Registry) FindByCapability(c Capability) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0)
	for _, name := range r.order {
		if e := r.plugins[name]; slices.Contains(e.caps, c) {
			out = append(out, r.infoLocked(name, e))
		}
	}
	return out
}

// List describes every registered plugin in registration order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.infoLocked(name, r.plugins[name]))
	}
	return out
}

func (r *Registry) infoLocked(name string, e *entry) Info {
	return Info{
		Name:         name,
		Version:      e.meta.Version,
		Description:  e.meta.Description,
		Capabilities: slices.Clone(e.caps),
		Initialized:  e.initialized,
		IsActive:     name == r.active,
		IsDefault:    name == r.defaultLocked(),
		RegisteredAt: e.registeredAt,
	}
}

// History returns the switch events, oldest first.
func (r *Registry) History() []SwitchEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.history)
}

// Process delegates to the active plugin captured at call time and
// decorates the result metadata with the plugin name and version. Plugin
// errors are returned with added context.
func (r *Registry) Process(ctx context.Context, text string, opts analysis.Options) (*analysis.Result, error) {
	p, info, ok := r.Active()
	if !ok {
		return nil, errors.Wrap(ErrNoActivePlugin, "Registry", "Process", "select plugin")
	}
	return ProcessWith(ctx, p, info, text, opts)
}

// ProcessWith runs one plugin snapshot taken from Active.
func ProcessWith(ctx context.Context, p Plugin, info Info, text string, opts analysis.Options) (*analysis.Result, error) {
	res, err := p.ProcessContract(ctx, text, opts)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Process", fmt.Sprintf("plugin %q", info.Name))
	}
	if res == nil {
		return nil, errors.PluginContract("Registry", "Process", "plugin %q returned no result", info.Name)
	}

	res.Metadata.ProcessingMethod = analysis.MethodPlugin
	res.Metadata.Plugin = info.Name
	res.Metadata.PluginVersion = info.Version
	return res, nil
}
