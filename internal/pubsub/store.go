// Package pubsub implements the subscriber side of the PubSubHubbub 0.3
// protocol: it subscribes to feeds at their announced hub, answers the
// hub's verification callback and refreshes the cached feed when the
// hub notifies about an update.
package pubsub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Subscription is the persisted state of one feed's hub subscription.
type Subscription struct {
	URL         string
	Hub         string
	VerifyToken string
	Mode        string
	Verified    bool
}

// Store persists subscriptions in SQLite, keyed by feed URL.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed initializes) the subscription database.
// Use ":memory:" for an ephemeral store.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open subscription db: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS subscriptions (
		url TEXT PRIMARY KEY,
		hub TEXT NOT NULL DEFAULT '',
		verify_token TEXT NOT NULL,
		mode TEXT NOT NULL,
		verified INTEGER NOT NULL DEFAULT 0
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init subscription db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ForURL returns the subscription for a feed URL, or nil when none
// exists.
func (s *Store) ForURL(ctx context.Context, url string) (*Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT url, hub, verify_token, mode, verified FROM subscriptions WHERE url = ?", url)

	var sub Subscription
	err := row.Scan(&sub.URL, &sub.Hub, &sub.VerifyToken, &sub.Mode, &sub.Verified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription %s: %w", url, err)
	}
	return &sub, nil
}

// Save upserts a subscription.
func (s *Store) Save(ctx context.Context, sub *Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (url, hub, verify_token, mode, verified)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
		   hub = excluded.hub,
		   verify_token = excluded.verify_token,
		   mode = excluded.mode,
		   verified = excluded.verified`,
		sub.URL, sub.Hub, sub.VerifyToken, sub.Mode, sub.Verified)
	if err != nil {
		return fmt.Errorf("save subscription %s: %w", sub.URL, err)
	}
	return nil
}

// Delete removes the subscription for a feed URL.
func (s *Store) Delete(ctx context.Context, url string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM subscriptions WHERE url = ?", url); err != nil {
		return fmt.Errorf("delete subscription %s: %w", url, err)
	}
	return nil
}
