package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chuikova-e/nutritioner-bot/internal/apperror"
	"github.com/chuikova-e/nutritioner-bot/internal/model"
)

// RememberContact records the chat a handle last wrote from.
func (s *Store) RememberContact(ctx context.Context, c *model.ChatContact) error {
	if c.LastSeen.IsZero() {
		c.LastSeen = time.Now()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO chat_contacts (handle, user_id, chat_id, last_seen) VALUES (?, ?, ?, ?)
			 ON CONFLICT (handle) DO UPDATE SET user_id = excluded.user_id,
			     chat_id = excluded.chat_id, last_seen = excluded.last_seen`),
			c.Handle, c.UserID, c.ChatID, c.LastSeen.Unix(),
		)
		if err != nil {
			return fmt.Errorf("sqlstore: remembering contact %s: %w", c.Handle, err)
		}
		return nil
	})
}

func (s *Store) GetContact(ctx context.Context, handle string) (*model.ChatContact, error) {
	c := model.ChatContact{Handle: handle}
	var seen int64
	err := s.conn.QueryRowContext(ctx, s.rebind(
		`SELECT user_id, chat_id, last_seen FROM chat_contacts WHERE handle = ?`), handle,
	).Scan(&c.UserID, &c.ChatID, &seen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("chat contact", handle)
		}
		return nil, fmt.Errorf("sqlstore: getting contact %s: %w", handle, err)
	}
	c.LastSeen = time.Unix(seen, 0)
	return &c, nil
}
