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

package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/achetronic/lexguard/config"
)

const testRedisAddr = "localhost:6379"

func setupTestPersistence(t *testing.T) *Persistence {
	t.Helper()
	p, err := New(Config{
		Addr:         testRedisAddr,
		Prefix:       fmt.Sprintf("test_%d", time.Now().UnixNano()),
		HistoryLimit: 3,
	})
	if err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestReadMissing(t *testing.T) {
	p := setupTestPersistence(t)
	if _, err := p.Read(context.Background(), "model"); !errors.Is(err, config.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteReadAndHistory(t *testing.T) {
	p := setupTestPersistence(t)
	ctx := context.Background()
	t.Cleanup(func() { p.Delete(context.Background(), "risk") })

	for i := 1; i <= 5; i++ {
		if err := p.Write(ctx, "risk", config.Values{"maxRisks": i}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	got, err := p.Read(ctx, "risk")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got["maxRisks"] != float64(5) {
		t.Errorf("expected latest write, got %v", got)
	}

	history, err := p.History(ctx, "risk")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected capped history of 3, got %d", len(history))
	}
	if history[0].Value["maxRisks"] != float64(5) {
		t.Errorf("expected newest first, got %v", history[0].Value)
	}
	t.Logf("✓ write/read with capped history")
}
