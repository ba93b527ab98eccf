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

package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/achetronic/lexguard/config"
)

// Persistence implements config.Persistence using the local filesystem.
//
// Every write creates a new version file under:
//
//	{BasePath}/{namespace}/{version}.json
//
// Reads return the latest version. Older versions are kept up to
// MaxVersions and can be read back with ReadVersion.
type Persistence struct {
	basePath    string
	maxVersions int
	mu          sync.RWMutex
}

// Config holds configuration for Persistence.
type Config struct {
	// BasePath is the root directory for configuration files.
	BasePath string
	// MaxVersions is the number of versions kept per namespace (default: 10).
	MaxVersions int
}

type document struct {
	Namespace string        `json:"namespace"`
	Version   int64         `json:"version"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Value     config.Values `json:"value"`
}

// New creates a filesystem-backed persistence. The base directory is created
// if it does not exist.
func New(cfg Config) (*Persistence, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("BasePath is required")
	}

	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	maxVersions := cfg.MaxVersions
	if maxVersions <= 0 {
		maxVersions = 10
	}

	return &Persistence{
		basePath:    cfg.BasePath,
		maxVersions: maxVersions,
	}, nil
}

func (p *Persistence) namespaceDir(name string) string {
	return filepath.Join(p.basePath, name)
}

func (p *Persistence) versionPath(name string, version int64) string {
	return filepath.Join(p.namespaceDir(name), fmt.Sprintf("%d.json", version))
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid namespace name %q", name)
	}
	return nil
}

// Write stores v as the next version of the namespace.
func (p *Persistence) Write(_ context.Context, name string, v config.Values) error {
	if err := validName(name); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	dir := p.namespaceDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create namespace directory: %w", err)
	}

	nextVersion := int64(1)
	if latest, err := p.latestVersion(dir); err == nil {
		nextVersion = latest + 1
	}

	data, err := json.Marshal(document{
		Namespace: name,
		Version:   nextVersion,
		UpdatedAt: time.Now().UTC(),
		Value:     v,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	path := p.versionPath(name, nextVersion)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit configuration: %w", err)
	}

	p.prune(dir)
	return nil
}

// Read returns the latest stored version, or config.ErrNotFound.
func (p *Persistence) Read(_ context.Context, name string) (config.Values, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	latest, err := p.latestVersion(p.namespaceDir(name))
	if err != nil {
		return nil, config.ErrNotFound
	}
	return p.readVersion(name, latest)
}

// ReadVersion returns a specific stored version.
func (p *Persistence) ReadVersion(_ context.Context, name string, version int64) (config.Values, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.readVersion(name, version)
}

// Versions lists stored versions of a namespace, newest first.
func (p *Persistence) Versions(_ context.Context, name string) ([]int64, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	versions, err := p.listVersions(p.namespaceDir(name))
	if err != nil || len(versions) == 0 {
		return nil, config.ErrNotFound
	}
	return versions, nil
}

func (p *Persistence) readVersion(name string, version int64) (config.Values, error) {
	data, err := os.ReadFile(p.versionPath(name, version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, config.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return doc.Value, nil
}

func (p *Persistence) latestVersion(dir string) (int64, error) {
	versions, err := p.listVersions(dir)
	if err != nil || len(versions) == 0 {
		return 0, fmt.Errorf("no versions found")
	}
	return versions[0], nil
}

func (p *Persistence) listVersions(dir string) ([]int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var versions []int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i] > versions[j]
	})

	return versions, nil
}

// prune removes versions beyond maxVersions. Callers hold p.mu.
func (p *Persistence) prune(dir string) {
	versions, err := p.listVersions(dir)
	if err != nil || len(versions) <= p.maxVersions {
		return
	}
	for _, v := range versions[p.maxVersions:] {
		os.Remove(filepath.Join(dir, fmt.Sprintf("%d.json", v)))
	}
}

var _ config.Persistence = (*Persistence)(nil)
