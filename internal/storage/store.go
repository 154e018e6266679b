package storage

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists server-side session values and petition drafts.
// Session values are encrypted at rest; drafts are stored as-is.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
	now           func() time.Time
}

// NewSQLiteStore creates a new SQLite-based store.
// The dbPath is the path to the SQLite database file.
// The encryptionKey is used to encrypt/decrypt session values.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:            db,
		encryptionKey: encryptionKey,
		now:           time.Now,
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	// The file exists once the schema is created; keep it private since it holds tokens.
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		db.Close()
		return nil, fmt.Errorf("failed to restrict database permissions: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	sessionValuesQuery := `
	CREATE TABLE IF NOT EXISTS session_values (
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		encrypted_value TEXT NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, key)
	);
	`
	if _, err := s.db.Exec(sessionValuesQuery); err != nil {
		return fmt.Errorf("failed to create session_values table: %w", err)
	}

	draftsQuery := `
	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(draftsQuery); err != nil {
		return fmt.Errorf("failed to create drafts table: %w", err)
	}

	draftImagesQuery := `
	CREATE TABLE IF NOT EXISTS draft_images (
		draft_id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL,
		data BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(draftImagesQuery); err != nil {
		return fmt.Errorf("failed to create draft_images table: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
