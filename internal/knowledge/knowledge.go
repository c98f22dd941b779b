// Package knowledge implements the knowledge vault: persistent storage for
// documents and their embedded chunks, with ANN (sqlite-vec) or full-scan
// retrieval and composite scoring. SQLite with WAL and busy_timeout, a
// single mutex serializing access, idempotent migrations run at open.
package knowledge

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tripartite-ai/consensus-core/internal/config"
	"github.com/tripartite-ai/consensus-core/internal/embedding"
)

func init() {
	sqlite_vec.Auto()
}

// ClosedError is returned by any operation attempted after Close.
type ClosedError struct{}

func (e *ClosedError) Error() string { return "knowledge vault is closed" }

// DimensionMismatchError is returned when a vector's length does not match
// the vault's fixed dimension, set at open time.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// StorageError wraps a backend failure without leaking its concrete text
// upward past this package's boundary.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("knowledge vault: %s failed", e.Op) }
func (e *StorageError) Unwrap() error { return e.Err }

// Vault persists documents and chunks, and answers similarity queries over
// them. Safe for concurrent use: writes serialize on an internal mutex.
type Vault struct {
	conn         *sql.DB
	mu           sync.Mutex
	dim          int
	maxScan      int
	overFetch    int
	chunkCfg     config.ChunkConfig
	embedder     embedding.Embedder
	annAvailable bool
	closed       bool
}

// Open opens or creates the vault database at path, wiring chunker and
// embedder configuration that AddDocument will use.
func Open(path string, vaultCfg config.VaultConfig, chunkCfg config.ChunkConfig, embedder embedding.Embedder) (*Vault, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create vault dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open knowledge vault: %w", err)
	}
	return newVault(conn, vaultCfg, chunkCfg, embedder)
}

// OpenMemory opens an in-memory vault, for tests and ephemeral use.
func OpenMemory(vaultCfg config.VaultConfig, chunkCfg config.ChunkConfig, embedder embedding.Embedder) (*Vault, error) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return newVault(conn, vaultCfg, chunkCfg, embedder)
}

func newVault(conn *sql.DB, vaultCfg config.VaultConfig, chunkCfg config.ChunkConfig, embedder embedding.Embedder) (*Vault, error) {
	if embedder.Dim() != vaultCfg.EmbeddingDim {
		conn.Close()
		return nil, &DimensionMismatchError{Expected: vaultCfg.EmbeddingDim, Got: embedder.Dim()}
	}
	v := &Vault{
		conn:      conn,
		dim:       vaultCfg.EmbeddingDim,
		maxScan:   vaultCfg.MaxScan,
		overFetch: vaultCfg.OverFetch,
		chunkCfg:  chunkCfg,
		embedder:  embedder,
	}
	if err := v.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate knowledge vault: %w", err)
	}
	v.annAvailable = v.tryCreateANNIndex()
	return v, nil
}

func (v *Vault) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			doc_type TEXT NOT NULL DEFAULT 'other',
			checksum TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL REFERENCES documents(id),
			content TEXT NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			embedding BLOB NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_document ON chunks(document_id)`,
	}
	for _, s := range stmts {
		if _, err := v.conn.Exec(s); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, s)
		}
	}
	return v.migrateTags()
}

// migrateTags adds the documents.tags column (JSON-encoded string array,
// populated from optional frontmatter) to vaults created before it
// existed, via a guarded ALTER TABLE.
func (v *Vault) migrateTags() error {
	if !v.hasColumn("documents", "tags") {
		if _, err := v.conn.Exec(`ALTER TABLE documents ADD COLUMN tags TEXT NOT NULL DEFAULT '[]'`); err != nil {
			return fmt.Errorf("migrate documents.tags: %w", err)
		}
	}
	return nil
}

// hasColumn reports whether table currently has column, via a PRAGMA
// table_info probe.
func (v *Vault) hasColumn(table, column string) bool {
	rows, err := v.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false
		}
		if name == column {
			return true
		}
	}
	return false
}

// tryCreateANNIndex creates the optional vec0 virtual table. Its absence
// (sqlite-vec not compiled in) is not fatal — Search falls back to a
// bounded full scan.
func (v *Vault) tryCreateANNIndex() bool {
	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_vec USING vec0(
		chunk_id INTEGER PRIMARY KEY,
		embedding float[%d]
	)`, v.dim)
	_, err := v.conn.Exec(stmt)
	return err == nil
}

// Close releases the underlying connection. Subsequent operations return
// ClosedError.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return v.conn.Close()
}
