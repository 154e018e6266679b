package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Draft is a persisted, in-progress petition form. Data is opaque to the store.
type Draft struct {
	ID        string
	Data      []byte
	UpdatedAt time.Time
}

// DraftImage is the image blob attached to a draft.
type DraftImage struct {
	DraftID     string
	Filename    string
	ContentType string
	Data        []byte
	UpdatedAt   time.Time
}

// GetDraft retrieves a draft by ID.
// Returns nil, nil if the draft doesn't exist.
func (s *SQLiteStore) GetDraft(id string) (*Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	var updatedAt int64
	err := s.db.QueryRow(
		"SELECT data, updated_at FROM drafts WHERE id = ?",
		id,
	).Scan(&data, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query draft: %w", err)
	}

	return &Draft{
		ID:        id,
		Data:      []byte(data),
		UpdatedAt: time.Unix(updatedAt, 0),
	}, nil
}

// SaveDraft stores or replaces a draft.
func (s *SQLiteStore) SaveDraft(draft *Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft.UpdatedAt = s.now()

	_, err := s.db.Exec(`
		INSERT INTO drafts (id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, draft.ID, string(draft.Data), draft.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}

	return nil
}

// DeleteDraft removes a draft and its image.
func (s *SQLiteStore) DeleteDraft(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM draft_images WHERE draft_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete draft image: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM drafts WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}

	return nil
}

// GetDraftImage retrieves the image attached to a draft.
// Returns nil, nil if there is none.
func (s *SQLiteStore) GetDraftImage(draftID string) (*DraftImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img := DraftImage{DraftID: draftID}
	var updatedAt int64
	err := s.db.QueryRow(
		"SELECT filename, content_type, data, updated_at FROM draft_images WHERE draft_id = ?",
		draftID,
	).Scan(&img.Filename, &img.ContentType, &img.Data, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query draft image: %w", err)
	}

	img.UpdatedAt = time.Unix(updatedAt, 0)
	return &img, nil
}

// SaveDraftImage stores or replaces the image attached to a draft.
func (s *SQLiteStore) SaveDraftImage(img *DraftImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img.UpdatedAt = s.now()

	_, err := s.db.Exec(`
		INSERT INTO draft_images (draft_id, filename, content_type, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(draft_id) DO UPDATE SET
			filename = excluded.filename,
			content_type = excluded.content_type,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, img.DraftID, img.Filename, img.ContentType, img.Data, img.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save draft image: %w", err)
	}

	return nil
}

// PruneDrafts removes drafts (and their images) not updated within maxAge.
func (s *SQLiteStore) PruneDrafts(maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge).Unix()

	if _, err := s.db.Exec(
		"DELETE FROM draft_images WHERE updated_at < ? OR draft_id IN (SELECT id FROM drafts WHERE updated_at < ?)",
		cutoff, cutoff,
	); err != nil {
		return 0, fmt.Errorf("failed to prune draft images: %w", err)
	}

	res, err := s.db.Exec("DELETE FROM drafts WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune drafts: %w", err)
	}
	return res.RowsAffected()
}
