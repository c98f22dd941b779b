// Package tokenvault implements the session-scoped token↔original mapping
// that backs redaction and re-inflation.
//
// Backing store is SQLite: a single *sql.DB guarded by a mutex for writes,
// parameters always bound (never interpolated), schema created via an
// idempotent migration list run at open.
package tokenvault

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Vault is a SQLite-backed token store. Safe for concurrent use: writes
// (Store, ClearSession, PurgeOlderThan) serialize on an internal mutex;
// Retrieve reads through the connection pool without taking it.
type Vault struct {
	conn *sql.DB
	mu   sync.Mutex
}

// Open opens or creates the vault database at path.
func Open(path string) (*Vault, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create vault dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open token vault: %w", err)
	}
	v := &Vault{conn: conn}
	if err := v.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate token vault: %w", err)
	}
	return v, nil
}

// OpenMemory opens an in-memory vault, for tests and short-lived sessions.
// The connection pool is capped at one connection: SQLite's ":memory:"
// gives each new connection its own database, so a pool of more than one
// would silently fragment reads and writes across separate databases.
func OpenMemory() (*Vault, error) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	v := &Vault{conn: conn}
	if err := v.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return v, nil
}

// Close releases the underlying connection.
func (v *Vault) Close() error {
	return v.conn.Close()
}

func (v *Vault) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token TEXT NOT NULL,
			category TEXT NOT NULL,
			original TEXT NOT NULL,
			session_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(session_id, token),
			UNIQUE(session_id, category, original)
		)`,
		`CREATE INDEX IF NOT EXISTS tokens_session ON tokens(session_id)`,
	}
	for _, s := range stmts {
		if _, err := v.conn.Exec(s); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, s)
		}
	}
	return nil
}

var tokenCounterRe = regexp.MustCompile(`_(\d+)\]$`)

// Store returns the existing token for (session, category, original) if one
// already exists (deduplication within session), otherwise
// allocates the next sequential counter for (session, category), persists
// the row, and returns the new token.
func (v *Vault) Store(sessionID, category, original string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var existing string
	err := v.conn.QueryRow(
		`SELECT token FROM tokens WHERE session_id = ? AND category = ? AND original = ?`,
		sessionID, category, original,
	).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("store lookup: %w", err)
	}

	for attempt := 0; attempt < 5; attempt++ {
		next, err := v.nextCounter(sessionID, category)
		if err != nil {
			return "", fmt.Errorf("store counter: %w", err)
		}
		token := formatToken(category, next)

		_, err = v.conn.Exec(
			`INSERT INTO tokens (token, category, original, session_id, created_at) VALUES (?, ?, ?, ?, ?)`,
			token, category, original, sessionID, time.Now().UTC(),
		)
		if err == nil {
			return token, nil
		}
		// A concurrent Store on the same (session,category) counter raced us
		// (or the (session,category,original) triple landed just before we
		// looked it up) — retry from the top rather than surface a spurious
		// constraint violation.
		if isUniqueConstraint(err) {
			var raced string
			if lookupErr := v.conn.QueryRow(
				`SELECT token FROM tokens WHERE session_id = ? AND category = ? AND original = ?`,
				sessionID, category, original,
			).Scan(&raced); lookupErr == nil {
				return raced, nil
			}
			continue
		}
		return "", fmt.Errorf("store insert: %w", err)
	}
	return "", fmt.Errorf("store: exhausted retries allocating a token counter")
}

// nextCounter derives the next per-(session,category) counter by querying
// the highest existing token for that pair, rather than trusting an
// in-memory cache — this is what makes counters recoverable at session
// reopen.
func (v *Vault) nextCounter(sessionID, category string) (int, error) {
	var lastToken string
	err := v.conn.QueryRow(
		`SELECT token FROM tokens WHERE session_id = ? AND category = ? ORDER BY id DESC LIMIT 1`,
		sessionID, category,
	).Scan(&lastToken)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	m := tokenCounterRe.FindStringSubmatch(lastToken)
	if m == nil {
		return 1, nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1, nil
	}
	return n + 1, nil
}

func formatToken(category string, n int) string {
	return fmt.Sprintf("[%s_%04d]", category, n)
}

func isUniqueConstraint(err error) bool {
	// mattn/go-sqlite3 reports this as a *sqlite3.Error with ExtendedCode
	// sqlite3.ErrConstraintUnique, but matching on the message keeps this
	// package free of a direct dependency on the driver's error type.
	return err != nil && containsFold(err.Error(), "UNIQUE constraint failed")
}

func containsFold(s, substr string) bool {
	return len(s) >= len(substr) && indexFold(s, substr) >= 0
}

func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if equalFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Retrieve looks up a token's original value, scoped to sessionID. The
// second return is false if the token is unknown *within that session* —
// the caller leaves unknown tokens verbatim, so this is never an error
// here. Scoping by session matters: per-session-per-category counters
// restart at 1, so the same token string (e.g. "[EMAIL_0001]") is
// routinely issued to more than one session, and an unscoped lookup would
// leak one session's original across into another's.
func (v *Vault) Retrieve(sessionID, token string) (string, bool, error) {
	var original string
	err := v.conn.QueryRow(
		`SELECT original FROM tokens WHERE session_id = ? AND token = ?`,
		sessionID, token,
	).Scan(&original)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("retrieve: %w", err)
	}
	return original, true, nil
}

// ClearSession deletes every row for session, making its tokens permanently
// unresolvable without affecting any other session.
func (v *Vault) ClearSession(sessionID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	res, err := v.conn.Exec(`DELETE FROM tokens WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.Info("token vault session cleared", "session_rows_deleted", n)
	return nil
}

// PurgeOlderThan deletes rows created before cutoff, across all sessions —
// garbage collection for abandoned sessions. Returns the number of rows
// removed.
func (v *Vault) PurgeOlderThan(cutoff time.Time) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	res, err := v.conn.Exec(`DELETE FROM tokens WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return res.RowsAffected()
}
