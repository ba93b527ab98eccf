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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/achetronic/lexguard/config"
)

// Persistence implements config.Persistence using Redis as the backend.
//
// The current value of a namespace lives under "{prefix}:config:{name}" and
// every write is also pushed onto a capped history list.
type Persistence struct {
	client       *redis.Client
	prefix       string
	historyLimit int64
}

// Config holds configuration for Persistence.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string
	// Password for Redis authentication (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix namespaces every key (default: "lexguard")
	Prefix string
	// HistoryLimit is the number of past writes kept per namespace (default: 20)
	HistoryLimit int64
}

type document struct {
	Namespace string        `json:"namespace"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Value     config.Values `json:"value"`
}

// Entry is one past write returned by History.
type Entry struct {
	UpdatedAt time.Time
	Value     config.Values
}

// New creates a Redis-backed persistence and checks connectivity.
func New(cfg Config) (*Persistence, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "lexguard"
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 20
	}

	return &Persistence{
		client:       client,
		prefix:       prefix,
		historyLimit: limit,
	}, nil
}

// Key helpers
func (p *Persistence) configKey(name string) string {
	return fmt.Sprintf("%s:config:%s", p.prefix, name)
}

func (p *Persistence) historyKey(name string) string {
	return fmt.Sprintf("%s:config:%s:history", p.prefix, name)
}

// Write stores v as the current value and appends it to the history.
func (p *Persistence) Write(ctx context.Context, name string, v config.Values) error {
	data, err := json.Marshal(document{
		Namespace: name,
		UpdatedAt: time.Now().UTC(),
		Value:     v,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.configKey(name), data, 0)
	pipe.LPush(ctx, p.historyKey(name), data)
	pipe.LTrim(ctx, p.historyKey(name), 0, p.historyLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store configuration: %w", err)
	}
	return nil
}

// Read returns the current value, or config.ErrNotFound.
func (p *Persistence) Read(ctx context.Context, name string) (config.Values, error) {
	data, err := p.client.Get(ctx, p.configKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, config.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return doc.Value, nil
}

// History returns past writes of a namespace, newest first.
func (p *Persistence) History(ctx context.Context, name string) ([]Entry, error) {
	items, err := p.client.LRange(ctx, p.historyKey(name), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get configuration history: %w", err)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		var doc document
		if err := json.Unmarshal([]byte(item), &doc); err != nil {
			continue
		}
		entries = append(entries, Entry{UpdatedAt: doc.UpdatedAt, Value: doc.Value})
	}
	return entries, nil
}

// Delete removes the current value and the history of a namespace.
func (p *Persistence) Delete(ctx context.Context, name string) error {
	if err := p.client.Del(ctx, p.configKey(name), p.historyKey(name)).Err(); err != nil {
		return fmt.Errorf("failed to delete configuration: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *Persistence) Close() error {
	return p.client.Close()
}

var _ config.Persistence = (*Persistence)(nil)
