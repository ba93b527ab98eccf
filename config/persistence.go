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

import (
	"context"
	"sync"

	"github.com/achetronic/lexguard/errors"
)

// ErrNotFound is returned by Persistence.Read when nothing was stored under
// the requested name.
var ErrNotFound = errors.New("configuration not found")

// Persistence is the durable read/write contract used by the Store.
// Implementations live under persistence/.
type Persistence interface {
	Read(ctx context.Context, name string) (Values, error)
	Write(ctx context.Context, name string, v Values) error
}

// MemoryPersistence keeps blobs in process memory. Useful for tests and for
// deployments that do not need durability.
type MemoryPersistence struct {
	mu    sync.RWMutex
	blobs map[string]Values
}

// NewMemoryPersistence creates an empty MemoryPersistence.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{blobs: make(map[string]Values)}
}

func (m *MemoryPersistence) Read(_ context.Context, name string) (Values, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.blobs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return Clone(v), nil
}

func (m *MemoryPersistence) Write(_ context.Context, name string, v Values) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[name] = Clone(v)
	return nil
}
