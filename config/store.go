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

// Package config provides the validated, per-namespace configuration store
// shared by the lexguard components.
//
// Every namespace has a schema and compiled defaults. Mutations are validated
// before anything is applied, keep a single-slot backup of the previous value,
// optionally write through to a Persistence, and notify change listeners.
//
// Usage:
//
//	store := config.NewStore(config.StoreConfig{Persistence: redisPersistence})
//	_ = store.Update(ctx, config.NamespaceAnalysis, config.Values{"confidenceThreshold": 0.8})
//	settings, _ := store.AnalysisSettings()
package config

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"

	"github.com/achetronic/lexguard/errors"
	"github.com/achetronic/lexguard/metrics"
)

// Operation names reported in Change and metrics.
const (
	OpSet     = "set"
	OpUpdate  = "update"
	OpReset   = "reset"
	OpRestore = "restore"
)

// Change describes an accepted mutation of a namespace.
type Change struct {
	Namespace string
	Operation string
	Previous  Values
	Current   Values
	Version   int64
}

// Listener is notified after a namespace changes. A returned error (or a
// panic) is logged and does not affect other listeners or the caller.
type Listener func(ctx context.Context, change Change) error

// Backup is the single-slot snapshot kept before each mutation.
type Backup struct {
	Value     Values
	Timestamp time.Time
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// Persistence is optional. Without it, persist requests are ignored.
	Persistence Persistence
	Logger      *slog.Logger
	Metrics     *metrics.Registry

	// Namespaces registered in addition to the built-in ones. A namespace
	// with a built-in name replaces it.
	Namespaces []Namespace
}

type listenerEntry struct {
	id string
	fn Listener
}

type record struct {
	mu sync.Mutex

	ns        Namespace
	current   Values
	backup    *Backup
	version   int64
	listeners []listenerEntry
}

// Store is the ConfigurationStore. All methods are safe for concurrent use;
// mutations are atomic per namespace.
type Store struct {
	records     map[string]*record
	persistence Persistence
	logger      *slog.Logger
	metrics     *metrics.Registry
}

// NewStore creates a Store with the built-in namespaces plus any extra ones
// from cfg.
func NewStore(cfg StoreConfig) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		records:     make(map[string]*record),
		persistence: cfg.Persistence,
		logger:      logger,
		metrics:     cfg.Metrics,
	}
	for _, ns := range BuiltinNamespaces() {
		s.records[ns.Name] = &record{ns: ns}
	}
	for _, ns := range cfg.Namespaces {
		s.records[ns.Name] = &record{ns: ns}
	}
	return s
}

func (s *Store) record(operation, name string) (*record, error) {
	rec, ok := s.records[name]
	if !ok {
		return nil, errors.Validation("Store", operation, "unknown namespace %q", name)
	}
	return rec, nil
}

// currentLocked returns the live value without copying. Callers hold rec.mu.
func (rec *record) currentLocked() Values {
	if rec.current != nil {
		return rec.current
	}
	return rec.ns.Defaults()
}

// Namespaces returns the registered namespace names, sorted.
func (s *Store) Namespaces() []string {
	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema returns the schema of a namespace.
func (s *Store) Schema(name string) (Schema, error) {
	rec, err := s.record("Schema", name)
	if err != nil {
		return nil, err
	}
	return rec.ns.Schema, nil
}

// Defaults returns the compiled defaults of a namespace.
func (s *Store) Defaults(name string) (Values, error) {
	rec, err := s.record("Defaults", name)
	if err != nil {
		return nil, err
	}
	return rec.ns.Defaults(), nil
}

// Get returns a copy of the current value of a namespace, or its compiled
// defaults when it was never set.
func (s *Store) Get(name string) (Values, error) {
	rec, err := s.record("Get", name)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return Clone(rec.currentLocked()), nil
}

// Version returns how many accepted mutations a namespace has seen.
func (s *Store) Version(name string) (int64, error) {
	rec, err := s.record("Version", name)
	if err != nil {
		return 0, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.version, nil
}

// Backup returns a copy of the backup slot of a namespace, if any.
func (s *Store) Backup(name string) (Backup, bool, error) {
	rec, err := s.record("Backup", name)
	if err != nil {
		return Backup{}, false, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.backup == nil {
		return Backup{}, false, nil
	}
	return Backup{Value: Clone(rec.backup.Value), Timestamp: rec.backup.Timestamp}, true, nil
}

// Set validates v against the namespace schema and replaces the current
// value with it. The previous value becomes the backup. When persist is true
// the new value is written through to the Persistence; a write failure is
// logged and never returned.
func (s *Store) Set(ctx context.Context, name string, v Values, persist bool) error {
	return s.mutate(ctx, OpSet, name, persist, func(Values) (Values, error) {
		return Clone(v), nil
	})
}

// Update deep-merges partial into the current value, validates the result
// and stores it with persistence enabled.
func (s *Store) Update(ctx context.Context, name string, partial Values) error {
	if partial == nil {
		return errors.Validation("Store", "Update", "partial value is required")
	}
	return s.mutate(ctx, OpUpdate, name, true, func(current Values) (Values, error) {
		return Merge(current, partial), nil
	})
}

// Reset replaces the current value with the compiled defaults.
func (s *Store) Reset(ctx context.Context, name string) error {
	return s.mutate(ctx, OpReset, name, true, func(Values) (Values, error) {
		rec := s.records[name]
		return rec.ns.Defaults(), nil
	})
}

// Restore replaces the current value with the backup. It fails when no
// backup exists. The replaced value becomes the new backup, so a second
// Restore undoes the first.
func (s *Store) Restore(ctx context.Context, name string) error {
	return s.mutate(ctx, OpRestore, name, true, func(Values) (Values, error) {
		rec := s.records[name]
		if rec.backup == nil {
			return nil, errors.Validation("Store", "Restore", "namespace %q has no backup", name)
		}
		return Clone(rec.backup.Value), nil
	})
}

// mutate runs next under the namespace lock, validates its output and swaps
// it in. Persistence and listeners run after the lock is released.
func (s *Store) mutate(ctx context.Context, operation, name string, persist bool, next func(current Values) (Values, error)) error {
	rec, err := s.record(operation, name)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	previous := rec.currentLocked()
	value, err := next(previous)
	if err == nil {
		err = rec.ns.Schema.Validate(value)
	}
	if err != nil {
		rec.mu.Unlock()
		s.logger.Debug("Store: mutation rejected",
			"namespace", name,
			"operation", operation,
			"error", err,
		)
		return err
	}

	rec.backup = &Backup{Value: Clone(previous), Timestamp: time.Now()}
	rec.current = value
	rec.version++

	change := Change{
		Namespace: name,
		Operation: operation,
		Previous:  Clone(previous),
		Current:   Clone(value),
		Version:   rec.version,
	}
	listeners := append([]listenerEntry(nil), rec.listeners...)
	rec.mu.Unlock()

	s.metrics.IncConfigChange(name, operation)
	s.logger.Info("Store: namespace updated",
		"namespace", name,
		"operation", operation,
		"version", change.Version,
	)

	if persist {
		s.persist(ctx, name, change.Current)
	}

	s.notify(ctx, listeners, change)
	return nil
}

func (s *Store) persist(ctx context.Context, name string, v Values) {
	if s.persistence == nil {
		return
	}
	if err := s.persistence.Write(ctx, name, v); err != nil {
		perr := errors.Persistence("Store", "persist", err)
		s.metrics.IncPersistenceFailure(name)
		s.logger.Warn("Store: failed to persist configuration, keeping in-memory value",
			"namespace", name,
			"error", perr,
		)
	}
}

func (s *Store) notify(ctx context.Context, listeners []listenerEntry, change Change) {
	for _, l := range listeners {
		if err := callListener(ctx, l.fn, change); err != nil {
			s.logger.Warn("Store: change listener failed",
				"namespace", change.Namespace,
				"listener", l.id,
				"error", err,
			)
		}
	}
}

func callListener(ctx context.Context, fn Listener, change Change) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return fn(ctx, change)
}

// AddChangeListener registers fn for a namespace and returns its id.
func (s *Store) AddChangeListener(name string, fn Listener) (string, error) {
	rec, err := s.record("AddChangeListener", name)
	if err != nil {
		return "", err
	}
	if fn == nil {
		return "", errors.Validation("Store", "AddChangeListener", "listener is required")
	}

	id := uuid.NewString()
	rec.mu.Lock()
	rec.listeners = append(rec.listeners, listenerEntry{id: id, fn: fn})
	rec.mu.Unlock()
	return id, nil
}

// RemoveChangeListener removes a listener and reports whether it existed.
func (s *Store) RemoveChangeListener(name, id string) bool {
	rec, ok := s.records[name]
	if !ok {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, l := range rec.listeners {
		if l.id == id {
			rec.listeners = append(rec.listeners[:i], rec.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// LoadPersisted reads every namespace from the Persistence and installs the
// values that pass validation. Missing or invalid blobs are skipped. No
// backup is taken and no listener is notified.
func (s *Store) LoadPersisted(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}

	for _, name := range s.Namespaces() {
		rec := s.records[name]

		v, err := s.persistence.Read(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return errors.Wrap(ctx.Err(), "Store", "LoadPersisted", "read")
			}
			s.logger.Warn("Store: failed to read persisted configuration",
				"namespace", name,
				"error", err,
			)
			continue
		}
		if err := rec.ns.Schema.Validate(v); err != nil {
			s.logger.Warn("Store: ignoring invalid persisted configuration",
				"namespace", name,
				"error", err,
			)
			continue
		}

		rec.mu.Lock()
		rec.current = v
		rec.mu.Unlock()

		s.logger.Info("Store: loaded persisted configuration", "namespace", name)
	}
	return nil
}

// Decode decodes the current value of a namespace into out, which must be a
// pointer to a struct tagged with json field names.
func (s *Store) Decode(name string, out any) error {
	v, err := s.Get(name)
	if err != nil {
		return err
	}
	return DecodeValues(v, out)
}

// DecodeValues decodes v into out using json tags.
func DecodeValues(v Values, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("config: failed to build decoder: %w", err)
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("config: failed to decode values: %w", err)
	}
	return nil
}

// ModelSettings returns the model namespace as a typed struct.
func (s *Store) ModelSettings() (Model, error) {
	var m Model
	err := s.Decode(NamespaceModel, &m)
	return m, err
}

// AnalysisSettings returns the analysis namespace as a typed struct.
func (s *Store) AnalysisSettings() (Analysis, error) {
	var a Analysis
	err := s.Decode(NamespaceAnalysis, &a)
	return a, err
}

// ExtractionSettings returns the extraction namespace as a typed struct.
func (s *Store) ExtractionSettings() (Extraction, error) {
	var e Extraction
	err := s.Decode(NamespaceExtraction, &e)
	return e, err
}

// RiskSettings returns the risk namespace as a typed struct.
func (s *Store) RiskSettings() (Risk, error) {
	var r Risk
	err := s.Decode(NamespaceRisk, &r)
	return r, err
}

// PerformanceSettings returns the performance namespace as a typed struct.
func (s *Store) PerformanceSettings() (Performance, error) {
	var p Performance
	err := s.Decode(NamespacePerformance, &p)
	return p, err
}
