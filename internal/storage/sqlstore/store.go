// Package sqlstore persists accounts and rounds in SQLite or Postgres.
//
// Every balance change runs in one transaction that locks the account row
// (Postgres) or holds the single SQLite connection, so concurrent deltas
// never overwrite each other.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/storage"
	"github.com/mcoot/gaminghub/internal/storage/sqlstore/migrations"
)

const timeFormat = time.RFC3339Nano

// Store is a database/sql implementation of the storage interface
type Store struct {
	db *sql.DB
	d  dialect
}

// Ensure Store implements the interface
var _ storage.Storage = (*Store)(nil)

// Open connects to the configured database and applies migrations
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sql dsn is required")
	}

	var (
		d   dialect
		dsn string
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		d = sqliteDialect
		dsn = filepath.Clean(cfg.DSN) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	case DriverPostgres:
		d = postgresDialect
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unknown sql driver %q", cfg.Driver)
	}

	db, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", d.name, err)
	}

	if d.name == DriverSQLite {
		// One writer at a time; transactions queue on the pool instead of failing busy
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", d.name, err)
	}

	if err := applyMigrations(ctx, db, d, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, d: d}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Account operations

const accountColumns = "player_id, points, experience, level, games_played, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		acct             model.Account
		id               string
		created, updated string
	)
	if err := row.Scan(&id, &acct.Points, &acct.Experience, &acct.Level, &acct.GamesPlayed, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}
	acct.ID = model.PlayerID(id)

	var err error
	if acct.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if acct.UpdatedAt, err = time.Parse(timeFormat, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &acct, nil
}

func (s *Store) GetAccount(ctx context.Context, id model.PlayerID) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, s.d.rebind("SELECT "+accountColumns+" FROM accounts WHERE player_id = ?"), string(id))
	return scanAccount(row)
}

func (s *Store) EnsureAccount(ctx context.Context, id model.PlayerID, now time.Time) (*model.Account, bool, error) {
	ts := now.UTC().Format(timeFormat)
	res, err := s.db.ExecContext(ctx, s.d.rebind(`
		INSERT INTO accounts (player_id, points, experience, level, games_played, created_at, updated_at)
		VALUES (?, 0, 0, ?, 0, ?, ?)
		ON CONFLICT (player_id) DO NOTHING
	`), string(id), model.MinLevel, ts, ts)
	if err != nil {
		return nil, false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	acct, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return acct, inserted > 0, nil
}

func (s *Store) ApplyDelta(ctx context.Context, id model.PlayerID, delta model.Delta) (*model.DeltaResult, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}
	at := delta.At
	if at.IsZero() {
		at = time.Now()
	}
	ts := at.UTC().Format(timeFormat)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.d.rebind(`
		INSERT INTO accounts (player_id, points, experience, level, games_played, created_at, updated_at)
		VALUES (?, 0, 0, ?, 0, ?, ?)
		ON CONFLICT (player_id) DO NOTHING
	`), string(id), model.MinLevel, ts, ts); err != nil {
		return nil, err
	}

	// The row lock also serialises concurrent use of the same key
	current, err := scanAccount(tx.QueryRowContext(ctx,
		s.d.rebind("SELECT "+accountColumns+" FROM accounts WHERE player_id = ?"+s.d.forUpdate), string(id)))
	if err != nil {
		return nil, err
	}

	if delta.Key != "" {
		var stored string
		err := tx.QueryRowContext(ctx, s.d.rebind(`
			SELECT result FROM applied_deltas WHERE player_id = ? AND delta_key = ?
		`), string(id), delta.Key).Scan(&stored)
		switch {
		case err == nil:
			var prev model.DeltaResult
			if err := json.Unmarshal([]byte(stored), &prev); err != nil {
				return nil, fmt.Errorf("decode applied delta: %w", err)
			}
			return &prev, nil
		case !errors.Is(err, sql.ErrNoRows):
			return nil, err
		}
	}

	next, err := current.Apply(delta)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = at

	if _, err := tx.ExecContext(ctx, s.d.rebind(`
		UPDATE accounts
		SET points = ?, experience = ?, level = ?, games_played = ?, updated_at = ?
		WHERE player_id = ?
	`), next.Points, next.Experience, next.Level, next.GamesPlayed, ts, string(id)); err != nil {
		return nil, err
	}

	result := model.DeltaResult{Before: *current, After: next, Memo: delta.Memo, Applied: true}
	if delta.Key != "" {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, s.d.rebind(`
			INSERT INTO applied_deltas (player_id, delta_key, result, applied_at)
			VALUES (?, ?, ?, ?)
		`), string(id), delta.Key, string(data), ts); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) TopAccounts(ctx context.Context, by model.RankBy, limit int) ([]*model.Account, error) {
	column := "points"
	if by == model.RankByExperience {
		column = "experience"
	}

	query := "SELECT " + accountColumns + " FROM accounts ORDER BY " + column + " DESC, player_id ASC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []*model.Account{}
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

// Round operations

func (s *Store) SaveRound(ctx context.Context, round *model.Round) error {
	body, err := json.Marshal(round)
	if err != nil {
		return err
	}

	var deadline sql.NullInt64
	if !round.Deadline.IsZero() {
		deadline = sql.NullInt64{Int64: round.Deadline.UnixMilli(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, s.d.rebind(`
		INSERT INTO rounds (round_id, player_id, state, started_at_ms, deadline_ms, body)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (round_id) DO UPDATE SET
			state = excluded.state,
			deadline_ms = excluded.deadline_ms,
			body = excluded.body
	`), string(round.ID), string(round.PlayerID), string(round.State), round.StartedAt.UnixMilli(), deadline, string(body))
	return err
}

func (s *Store) GetRound(ctx context.Context, id model.RoundID) (*model.Round, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.d.rebind("SELECT body FROM rounds WHERE round_id = ?"), string(id)).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRoundNotFound
		}
		return nil, err
	}
	return decodeRound(body)
}

func (s *Store) ListRecentRounds(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.Round, error) {
	query := "SELECT body FROM rounds WHERE player_id = ? ORDER BY started_at_ms DESC, round_id DESC"
	args := []any{string(playerID)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryRounds(ctx, query, args...)
}

func (s *Store) ListExpiredRounds(ctx context.Context, before time.Time, limit int) ([]*model.Round, error) {
	query := "SELECT body FROM rounds WHERE state = ? AND deadline_ms IS NOT NULL AND deadline_ms < ? ORDER BY deadline_ms ASC"
	args := []any{string(model.RoundInProgress), before.UnixMilli()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryRounds(ctx, query, args...)
}

func (s *Store) queryRounds(ctx context.Context, query string, args ...any) ([]*model.Round, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rounds := []*model.Round{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		round, err := decodeRound(body)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

func decodeRound(body string) (*model.Round, error) {
	var round model.Round
	if err := json.Unmarshal([]byte(body), &round); err != nil {
		return nil, fmt.Errorf("decode round: %w", err)
	}
	return &round, nil
}
