// Copyright 2024 GearnsC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metricscache persists per-clip analysis results (range class, HDR
// class, verification deltas) in a small sqlite database so repeated runs
// against the same sources skip re-detection. The cache is strictly
// advisory: a miss or an open failure only costs a re-analysis.
package metricscache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/verify"
)

const schema = `
CREATE TABLE IF NOT EXISTS detection (
	source   TEXT NOT NULL,
	kind     TEXT NOT NULL,
	value    TEXT NOT NULL,
	run_id   TEXT,
	updated  INTEGER,
	PRIMARY KEY (source, kind)
);
CREATE TABLE IF NOT EXISTS verification (
	source      TEXT PRIMARY KEY,
	frame_index INTEGER,
	avg_delta   REAL,
	max_delta   REAL,
	reason      TEXT,
	run_id      TEXT,
	updated     INTEGER
);
`

const (
	kindRange = "range"
	kindHDR   = "hdr"
)

// Cache wraps the sqlite handle. A nil *Cache is valid and behaves as an
// always-miss cache, so callers need no enabled/disabled branches.
type Cache struct {
	db    *sql.DB
	runID string
}

// Open creates or opens the cache database at path and ensures the schema
// exists. runID tags every row written during this run.
func Open(path, runID string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics cache %q: %v", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metrics cache schema: %v", err)
	}
	return &Cache{db: db, runID: runID}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Range returns the cached range classification for source, or unknown on a
// miss.
func (c *Cache) Range(source string) (colorprops.Range, bool) {
	v, ok := c.detection(source, kindRange)
	if !ok {
		return colorprops.RangeUnknown, false
	}
	r := colorprops.ParseRange(v)
	return r, r != colorprops.RangeUnknown
}

// PutRange stores the range classification for source.
func (c *Cache) PutRange(source string, r colorprops.Range) error {
	return c.putDetection(source, kindRange, r.String())
}

// HDR returns the cached HDR classification for source, or a miss.
func (c *Cache) HDR(source string) (bool, bool) {
	v, ok := c.detection(source, kindHDR)
	if !ok {
		return false, false
	}
	return v == "hdr", true
}

// PutHDR stores the HDR classification for source.
func (c *Cache) PutHDR(source string, hdr bool) error {
	v := "sdr"
	if hdr {
		v = "hdr"
	}
	return c.putDetection(source, kindHDR, v)
}

func (c *Cache) detection(source, kind string) (string, bool) {
	if c == nil || c.db == nil {
		return "", false
	}
	var v string
	err := c.db.QueryRow(`SELECT value FROM detection WHERE source = ? AND kind = ?`, source, kind).Scan(&v)
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *Cache) putDetection(source, kind, value string) error {
	if c == nil || c.db == nil {
		return nil
	}
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %q", err)
	}
	stmt, err := tx.Prepare(`
	INSERT INTO detection (source, kind, value, run_id, updated)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (source, kind) DO UPDATE SET value = excluded.value, run_id = excluded.run_id, updated = excluded.updated
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sql statement: %q, rollback result: %q", err, tx.Rollback())
	}
	defer stmt.Close()

	if _, err := stmt.Exec(source, kind, value, c.runID, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to store detection result: %q, rollback result: %q", err, tx.Rollback())
	}
	return tx.Commit()
}

// PutVerification stores a verification outcome for source.
func (c *Cache) PutVerification(source string, r *verify.Result) error {
	if c == nil || c.db == nil || r == nil {
		return nil
	}
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %q", err)
	}
	stmt, err := tx.Prepare(`
	INSERT INTO verification (source, frame_index, avg_delta, max_delta, reason, run_id, updated)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (source) DO UPDATE SET
		frame_index = excluded.frame_index,
		avg_delta = excluded.avg_delta,
		max_delta = excluded.max_delta,
		reason = excluded.reason,
		run_id = excluded.run_id,
		updated = excluded.updated
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sql statement: %q, rollback result: %q", err, tx.Rollback())
	}
	defer stmt.Close()

	if _, err := stmt.Exec(source, r.FrameIndex, r.AvgDelta, r.MaxDelta, r.SelectionReason, c.runID, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to store verification result: %q, rollback result: %q", err, tx.Rollback())
	}
	return tx.Commit()
}

// Verification returns the cached verification outcome for source, or a
// miss.
func (c *Cache) Verification(source string) (*verify.Result, bool) {
	if c == nil || c.db == nil {
		return nil, false
	}
	var r verify.Result
	err := c.db.QueryRow(`SELECT frame_index, avg_delta, max_delta, reason FROM verification WHERE source = ?`, source).
		Scan(&r.FrameIndex, &r.AvgDelta, &r.MaxDelta, &r.SelectionReason)
	if err != nil {
		return nil, false
	}
	return &r, true
}
