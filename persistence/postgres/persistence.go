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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/achetronic/lexguard/config"
)

// Persistence implements config.Persistence on a PostgreSQL table with one
// row per namespace.
type Persistence struct {
	db    *sql.DB
	table string
}

// Config holds configuration for Persistence.
type Config struct {
	// ConnString is the PostgreSQL connection string
	ConnString string
	// Table is the table name (default: "lexguard_config")
	Table string
	// DB is an already opened handle. When set, ConnString is ignored.
	DB *sql.DB
}

// New opens the database, checks connectivity and creates the table if it
// does not exist.
func New(ctx context.Context, cfg Config) (*Persistence, error) {
	db := cfg.DB
	if db == nil {
		if cfg.ConnString == "" {
			return nil, fmt.Errorf("ConnString is required")
		}
		var err error
		db, err = sql.Open("postgres", cfg.ConnString)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "lexguard_config"
	}

	p := &Persistence{db: db, table: pq.QuoteIdentifier(table)}
	if err := p.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Persistence) init(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		value JSONB NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, p.table)

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Write upserts the namespace row and bumps its version.
func (p *Persistence) Write(ctx context.Context, name string, v config.Values) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %[1]s (name, value, version, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (name) DO UPDATE
		SET value = EXCLUDED.value, version = %[1]s.version + 1, updated_at = NOW()`, p.table)

	if _, err := p.db.ExecContext(ctx, query, name, data); err != nil {
		return fmt.Errorf("failed to store configuration: %w", describe(err))
	}
	return nil
}

// Read returns the stored value, or config.ErrNotFound.
func (p *Persistence) Read(ctx context.Context, name string) (config.Values, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE name = $1`, p.table)

	var data []byte
	err := p.db.QueryRowContext(ctx, query, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, config.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", describe(err))
	}

	var v config.Values
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return v, nil
}

// Version returns the stored version counter of a namespace.
func (p *Persistence) Version(ctx context.Context, name string) (int64, error) {
	query := fmt.Sprintf(`SELECT version FROM %s WHERE name = $1`, p.table)

	var version int64
	err := p.db.QueryRowContext(ctx, query, name).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, config.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get configuration version: %w", describe(err))
	}
	return version, nil
}

// Delete removes a namespace row.
func (p *Persistence) Delete(ctx context.Context, name string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, p.table)
	if _, err := p.db.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("failed to delete configuration: %w", describe(err))
	}
	return nil
}

// Close closes the database handle.
func (p *Persistence) Close() error {
	return p.db.Close()
}

// describe adds the SQLSTATE code to PostgreSQL errors.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s (sqlstate %s): %w", pqErr.Message, pqErr.Code, err)
	}
	return err
}

var _ config.Persistence = (*Persistence)(nil)
