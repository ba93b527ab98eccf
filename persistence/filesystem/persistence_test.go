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
	"errors"
	"testing"

	"github.com/achetronic/lexguard/config"
)

func setupTestPersistence(t *testing.T, maxVersions int) *Persistence {
	t.Helper()
	p, err := New(Config{BasePath: t.TempDir(), MaxVersions: maxVersions})
	if err != nil {
		t.Fatalf("Failed to create filesystem persistence: %v", err)
	}
	return p
}

func TestNewRequiresBasePath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty BasePath")
	}
}

func TestReadMissing(t *testing.T) {
	p := setupTestPersistence(t, 0)
	if _, err := p.Read(context.Background(), "model"); !errors.Is(err, config.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteAndRead(t *testing.T) {
	p := setupTestPersistence(t, 0)
	ctx := context.Background()

	if err := p.Write(ctx, "model", config.Values{"modelName": "a", "maxTokens": 1024}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := p.Write(ctx, "model", config.Values{"modelName": "b", "maxTokens": 2048}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := p.Read(ctx, "model")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got["modelName"] != "b" || got["maxTokens"] != float64(2048) {
		t.Errorf("expected latest version, got %v", got)
	}

	first, err := p.ReadVersion(ctx, "model", 1)
	if err != nil {
		t.Fatalf("ReadVersion failed: %v", err)
	}
	if first["modelName"] != "a" {
		t.Errorf("expected version 1 value, got %v", first)
	}
	t.Logf("✓ versioned write/read")
}

func TestPruneKeepsNewest(t *testing.T) {
	p := setupTestPersistence(t, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := p.Write(ctx, "risk", config.Values{"maxRisks": i}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	versions, err := p.Versions(ctx, "risk")
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(versions) != 2 || versions[0] != 5 || versions[1] != 4 {
		t.Errorf("expected [5 4], got %v", versions)
	}
}

func TestRejectsPathTraversal(t *testing.T) {
	p := setupTestPersistence(t, 0)
	if err := p.Write(context.Background(), "../escape", config.Values{}); err == nil {
		t.Fatal("expected error for invalid namespace name")
	}
}

func TestStoreIntegration(t *testing.T) {
	p := setupTestPersistence(t, 0)
	ctx := context.Background()

	store := config.NewStore(config.StoreConfig{Persistence: p})
	if err := store.Update(ctx, config.NamespaceAnalysis, config.Values{"riskTolerance": "low"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reloaded := config.NewStore(config.StoreConfig{Persistence: p})
	if err := reloaded.LoadPersisted(ctx); err != nil {
		t.Fatalf("LoadPersisted failed: %v", err)
	}
	a, err := reloaded.AnalysisSettings()
	if err != nil {
		t.Fatalf("AnalysisSettings failed: %v", err)
	}
	if a.RiskTolerance != "low" || a.MaxDocumentLength != 500000 {
		t.Errorf("unexpected reloaded settings: %+v", a)
	}
	t.Logf("✓ store survives a restart through the filesystem")
}
