// Package provenance tracks the load history of persisted artifact
// bundles (C11): which schema version and checksum were accepted, and
// when. Adapted from the teacher's SQLite storage layer, repurposed
// from a documents/chunks schema to a single load-history ledger.
package provenance

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store records artifact load attempts for audit and rollback triage.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at dbPath and initializes the
// load-history schema. Parent directories are created if needed.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create provenance directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open provenance database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize provenance schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS artifact_loads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		artifact_name TEXT NOT NULL,
		schema_name TEXT NOT NULL,
		schema_version INTEGER NOT NULL,
		checksum TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		degraded INTEGER NOT NULL,
		warning TEXT,
		loaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_artifact_loads_name ON artifact_loads(artifact_name, loaded_at);
	`)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one load attempt to the ledger.
func (s *Store) Record(ctx context.Context, artifactName, schemaName string, schemaVersion int, checksum string, chunkCount int, degraded bool, warning string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifact_loads (artifact_name, schema_name, schema_version, checksum, chunk_count, degraded, warning)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		artifactName, schemaName, schemaVersion, checksum, chunkCount, boolToInt(degraded), warning,
	)
	return err
}

// LoadRecord is one row of load history.
type LoadRecord struct {
	ArtifactName  string
	SchemaName    string
	SchemaVersion int
	Checksum      string
	ChunkCount    int
	Degraded      bool
	Warning       string
	LoadedAt      time.Time
}

// Recent returns the most recent n load records across all artifacts,
// newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]LoadRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT artifact_name, schema_name, schema_version, checksum, chunk_count, degraded, warning, loaded_at
		 FROM artifact_loads ORDER BY loaded_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent artifact loads: %w", err)
	}
	defer rows.Close()

	var records []LoadRecord
	for rows.Next() {
		var r LoadRecord
		var degraded int
		var warning sql.NullString
		if err := rows.Scan(&r.ArtifactName, &r.SchemaName, &r.SchemaVersion, &r.Checksum, &r.ChunkCount, &degraded, &warning, &r.LoadedAt); err != nil {
			return nil, fmt.Errorf("scan artifact load record: %w", err)
		}
		r.Degraded = degraded != 0
		r.Warning = warning.String
		records = append(records, r)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
