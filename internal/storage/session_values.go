package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionValues is the keyed value store of a single server-side session.
// It satisfies session.Store.
type SessionValues struct {
	store     *SQLiteStore
	sessionID string
}

// SessionValues returns the value store for the given session ID.
func (s *SQLiteStore) SessionValues(sessionID string) *SessionValues {
	return &SessionValues{store: s, sessionID: sessionID}
}

// SessionID returns the ID of the session these values belong to.
func (v *SessionValues) SessionID() string {
	return v.sessionID
}

// Get returns the decrypted value for key. Expired values are reported as missing.
func (v *SessionValues) Get(ctx context.Context, key string) (string, bool, error) {
	s := v.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var encrypted string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT encrypted_value, expires_at FROM session_values WHERE session_id = ? AND key = ?",
		v.sessionID, key,
	).Scan(&encrypted, &expiresAt)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query session value: %w", err)
	}

	if expiresAt != 0 && expiresAt <= s.now().Unix() {
		return "", false, nil
	}

	plaintext, err := Decrypt(encrypted, s.encryptionKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to decrypt session value: %w", err)
	}

	return string(plaintext), true, nil
}

// Set stores value under key. A zero ttl never expires.
func (v *SessionValues) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s := v.store

	encrypted, err := Encrypt([]byte(value), s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt session value: %w", err)
	}

	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).Unix()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_values (session_id, key, encrypted_value, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET
			encrypted_value = excluded.encrypted_value,
			expires_at = excluded.expires_at
	`, v.sessionID, key, encrypted, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save session value: %w", err)
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (v *SessionValues) Delete(ctx context.Context, key string) error {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM session_values WHERE session_id = ? AND key = ?",
		v.sessionID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session value: %w", err)
	}
	return nil
}

// SessionIDs returns the IDs of all sessions holding at least one unexpired value.
func (s *SQLiteStore) SessionIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT session_id FROM session_values WHERE expires_at = 0 OR expires_at > ? ORDER BY session_id",
		s.now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// HasSession reports whether id holds at least one unexpired value.
func (s *SQLiteStore) HasSession(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM session_values WHERE session_id = ? AND (expires_at = 0 OR expires_at > ?) LIMIT 1",
		id, s.now().Unix(),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query session: %w", err)
	}
	return true, nil
}

// DeleteSession removes every value of the session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM session_values WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PruneExpiredSessionValues deletes values whose TTL has passed.
func (s *SQLiteStore) PruneExpiredSessionValues(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM session_values WHERE expires_at != 0 AND expires_at <= ?",
		s.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune session values: %w", err)
	}
	return res.RowsAffected()
}
