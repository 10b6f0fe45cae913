// Package store persists per-user tracking documents. A document is the last
// accepted portal state for one (user, collection, section) triple; trackers
// own its shape, the store only keeps bytes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Get loads one document. The second return reports whether it exists.
func (s *Store) Get(ctx context.Context, userID int64, collection, section string) ([]byte, bool, error) {
	var doc []byte
	err := s.db.GetContext(ctx, &doc, `
		SELECT document FROM tracking_data
		WHERE user_telegram_id = ? AND collection = ? AND section = ?`,
		userID, collection, section)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s/%s for %d: %w", collection, section, userID, err)
	}
	return doc, true, nil
}

// Put stores or replaces one document.
func (s *Store) Put(ctx context.Context, userID int64, collection, section string, doc []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracking_data (user_telegram_id, collection, section, document, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_telegram_id, collection, section)
		DO UPDATE SET document = excluded.document, updated_at = CURRENT_TIMESTAMP`,
		userID, collection, section, doc)
	if err != nil {
		return fmt.Errorf("store %s/%s for %d: %w", collection, section, userID, err)
	}
	return nil
}

// Delete removes one document. Missing documents are not an error.
func (s *Store) Delete(ctx context.Context, userID int64, collection, section string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM tracking_data
		WHERE user_telegram_id = ? AND collection = ? AND section = ?`,
		userID, collection, section)
	if err != nil {
		return fmt.Errorf("delete %s/%s for %d: %w", collection, section, userID, err)
	}
	return nil
}

// DeleteCollection removes every section of one collection for a user.
func (s *Store) DeleteCollection(ctx context.Context, userID int64, collection string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM tracking_data
		WHERE user_telegram_id = ? AND collection = ?`,
		userID, collection)
	if err != nil {
		return fmt.Errorf("delete %s for %d: %w", collection, userID, err)
	}
	return nil
}
