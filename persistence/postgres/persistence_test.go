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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/achetronic/lexguard/config"
)

func setupTestPersistence(t *testing.T) *Persistence {
	t.Helper()
	dsn := os.Getenv("LEXGUARD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEXGUARD_TEST_POSTGRES_DSN not set")
	}

	table := fmt.Sprintf("lexguard_config_test_%d", time.Now().UnixNano())
	p, err := New(context.Background(), Config{ConnString: dsn, Table: table})
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(func() {
		p.db.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+p.table)
		p.Close()
	})
	return p
}

func TestNewRequiresConnString(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty ConnString")
	}
}

func TestWriteReadVersion(t *testing.T) {
	p := setupTestPersistence(t)
	ctx := context.Background()

	if _, err := p.Read(ctx, "model"); !errors.Is(err, config.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, name := range []string{"llama3.1:8b", "qwen2.5:14b"} {
		if err := p.Write(ctx, "model", config.Values{"modelName": name}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	got, err := p.Read(ctx, "model")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got["modelName"] != "qwen2.5:14b" {
		t.Errorf("expected upserted value, got %v", got)
	}

	version, err := p.Version(ctx, "model")
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
	t.Logf("✓ upsert bumps version")
}
