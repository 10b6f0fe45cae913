// Package userdir reads and maintains per-user account state: authentication,
// notification toggles, and the consecutive failed-request counter.
package userdir

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Settings holds the per-resource notification toggles of one user.
type Settings struct {
	UserID    int64 `db:"user_telegram_id"`
	Marks     bool  `db:"marks"`
	Homeworks bool  `db:"homeworks"`
	News      bool  `db:"news"`
	Requests  bool  `db:"requests"`
}

type Directory struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Directory {
	return &Directory{db: db}
}

// AuthenticatedIDs lists every user eligible for a tracking pass this cycle.
func (d *Directory) AuthenticatedIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := d.db.SelectContext(ctx, &ids, `
		SELECT user_telegram_id FROM user_status
		WHERE authenticated_in = 1 AND agree_with_terms = 1
		ORDER BY user_telegram_id`)
	if err != nil {
		return nil, fmt.Errorf("list authenticated users: %w", err)
	}
	return ids, nil
}

// NewsSubscriberIDs lists every user with news notifications on. The
// authenticated flag is deliberately ignored: news delivery rides a shared
// probe result, so a user whose session expired still receives it.
func (d *Directory) NewsSubscriberIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := d.db.SelectContext(ctx, &ids, `
		SELECT s.user_telegram_id FROM user_status s
		JOIN user_notify_settings n ON n.user_telegram_id = s.user_telegram_id
		WHERE s.agree_with_terms = 1 AND n.news = 1
		ORDER BY s.user_telegram_id`)
	if err != nil {
		return nil, fmt.Errorf("list news subscribers: %w", err)
	}
	return ids, nil
}

// AuthenticatedNewsSubscriberIDs lists news subscribers holding a live portal
// session. Only these are candidates for the shared news probe.
func (d *Directory) AuthenticatedNewsSubscriberIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := d.db.SelectContext(ctx, &ids, `
		SELECT s.user_telegram_id FROM user_status s
		JOIN user_notify_settings n ON n.user_telegram_id = s.user_telegram_id
		WHERE s.authenticated_in = 1 AND s.agree_with_terms = 1 AND n.news = 1
		ORDER BY s.user_telegram_id`)
	if err != nil {
		return nil, fmt.Errorf("list news probe candidates: %w", err)
	}
	return ids, nil
}

// Settings loads one user's notification toggles. Users without a settings
// row get everything enabled.
func (d *Directory) Settings(ctx context.Context, userID int64) (Settings, error) {
	s := Settings{UserID: userID, Marks: true, Homeworks: true, News: true, Requests: true}
	err := d.db.GetContext(ctx, &s, `
		SELECT user_telegram_id, marks, homeworks, news, requests
		FROM user_notify_settings WHERE user_telegram_id = ?`, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Settings{}, fmt.Errorf("load settings for %d: %w", userID, err)
	}
	return s, nil
}

// SetAuthenticated flips the authentication flag of one user.
func (d *Directory) SetAuthenticated(ctx context.Context, userID int64, authenticated bool) error {
	v := 0
	if authenticated {
		v = 1
	}
	_, err := d.db.ExecContext(ctx, `
		UPDATE user_status SET authenticated_in = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_telegram_id = ?`, v, userID)
	if err != nil {
		return fmt.Errorf("set authenticated for %d: %w", userID, err)
	}
	return nil
}

// IncrementFailedRequests bumps the user's consecutive failure counter and
// returns the new value.
func (d *Directory) IncrementFailedRequests(ctx context.Context, userID int64) (int, error) {
	var count int
	err := d.db.GetContext(ctx, &count, `
		UPDATE user_status
		SET failed_request_count = failed_request_count + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE user_telegram_id = ?
		RETURNING failed_request_count`, userID)
	if err != nil {
		return 0, fmt.Errorf("increment failures for %d: %w", userID, err)
	}
	return count, nil
}

// ResetFailedRequests zeroes the user's consecutive failure counter.
func (d *Directory) ResetFailedRequests(ctx context.Context, userID int64) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE user_status SET failed_request_count = 0, updated_at = CURRENT_TIMESTAMP
		WHERE user_telegram_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("reset failures for %d: %w", userID, err)
	}
	return nil
}
