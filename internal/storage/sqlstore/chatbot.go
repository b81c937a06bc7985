package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcoot/gaminghub/internal/model"
)

// Chat bot sessions. open_slot is 1 for the open session and NULL otherwise;
// its unique constraint keeps at most one session open.

func (s *Store) CreateBotSession(ctx context.Context, session *model.BotSession) error {
	body, err := json.Marshal(session)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.d.rebind(`
		INSERT INTO bot_sessions (session_id, open_slot, created_at_ms, body)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (open_slot) DO NOTHING
	`), string(session.ID), session.CreatedAt.UnixMilli(), string(body))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrBotSessionActive
	}
	return nil
}

func (s *Store) GetBotSession(ctx context.Context, id model.BotSessionID) (*model.BotSession, error) {
	return s.queryBotSession(ctx, "SELECT body FROM bot_sessions WHERE session_id = ?", string(id))
}

func (s *Store) GetOpenBotSession(ctx context.Context) (*model.BotSession, error) {
	return s.queryBotSession(ctx, "SELECT body FROM bot_sessions WHERE open_slot = 1")
}

func (s *Store) CloseBotSession(ctx context.Context, closed *model.BotSession) (*model.BotSession, bool, error) {
	body, err := json.Marshal(closed)
	if err != nil {
		return nil, false, err
	}

	res, err := s.db.ExecContext(ctx, s.d.rebind(`
		UPDATE bot_sessions SET open_slot = NULL, body = ?
		WHERE session_id = ? AND open_slot = 1
	`), string(body), string(closed.ID))
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	stored, err := s.GetBotSession(ctx, closed.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, n == 1, nil
}

func (s *Store) ListBotSessionsSince(ctx context.Context, since time.Time) ([]*model.BotSession, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(
		"SELECT body FROM bot_sessions WHERE created_at_ms >= ? ORDER BY created_at_ms ASC"), since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*model.BotSession{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		session, err := decodeBotSession(body)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *Store) queryBotSession(ctx context.Context, query string, args ...any) (*model.BotSession, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.d.rebind(query), args...).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrBotSessionNotFound
		}
		return nil, err
	}
	return decodeBotSession(body)
}

func decodeBotSession(body string) (*model.BotSession, error) {
	var session model.BotSession
	if err := json.Unmarshal([]byte(body), &session); err != nil {
		return nil, fmt.Errorf("decode bot session: %w", err)
	}
	return &session, nil
}
