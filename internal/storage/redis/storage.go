package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account hash fields, in snapshot order
var accountFields = []string{"points", "experience", "level", "games_played", "created_at", "updated_at"}

const snapshotLen = 6

// ensureScript creates the account hash if it is missing.
// KEYS: account, points leaderboard, experience leaderboard
// ARGV: player id, timestamp
var ensureScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'points', 0, 'experience', 0, 'level', 1, 'games_played', 0, 'created_at', ARGV[2], 'updated_at', ARGV[2])
redis.call('ZADD', KEYS[2], 0, ARGV[1])
redis.call('ZADD', KEYS[3], 0, ARGV[1])
return 1
`)

// deltaScript applies a Delta as one atomic step.
// KEYS: account, applied record, points leaderboard, experience leaderboard
// ARGV: player id, points, experience, games, min balance, timestamp,
// idempotent flag, applied ttl ms, memo, then the level thresholds from level 1 up
//
// Replies {"replay", before..., after..., memo}, {"ok", before..., after..., memo}
// or {"insufficient"}.
var deltaScript = redis.NewScript(`
local idempotent = ARGV[7] == '1'
if idempotent then
  local prev = redis.call('LRANGE', KEYS[2], 0, -1)
  if #prev > 0 then
    return {'replay', unpack(prev)}
  end
end

local at = ARGV[6]
local exists = redis.call('EXISTS', KEYS[1]) == 1
local before
if exists then
  before = redis.call('HMGET', KEYS[1], 'points', 'experience', 'level', 'games_played', 'created_at', 'updated_at')
else
  before = {'0', '0', '1', '0', at, at}
end

local points = tonumber(before[1])
local dPoints = tonumber(ARGV[2])
if points < tonumber(ARGV[5]) or points + dPoints < 0 then
  return {'insufficient'}
end
if not exists then
  redis.call('HSET', KEYS[1], 'points', 0, 'experience', 0, 'level', 1, 'games_played', 0, 'created_at', at)
end

local experience = redis.call('HINCRBY', KEYS[1], 'experience', tonumber(ARGV[3]))
local newPoints = redis.call('HINCRBY', KEYS[1], 'points', dPoints)
redis.call('HINCRBY', KEYS[1], 'games_played', tonumber(ARGV[4]))

local level = 1
for lvl = #ARGV - 9, 2, -1 do
  if experience >= tonumber(ARGV[9 + lvl]) then
    level = lvl
    break
  end
end
redis.call('HSET', KEYS[1], 'level', level, 'updated_at', at)

local after = redis.call('HMGET', KEYS[1], 'points', 'experience', 'level', 'games_played', 'created_at', 'updated_at')
redis.call('ZADD', KEYS[3], newPoints, ARGV[1])
redis.call('ZADD', KEYS[4], experience, ARGV[1])

local rec = {}
for i = 1, 6 do
  rec[i] = before[i]
  rec[i + 6] = after[i]
end
rec[13] = ARGV[9]
if idempotent then
  redis.call('RPUSH', KEYS[2], unpack(rec))
  local ttl = tonumber(ARGV[8])
  if ttl > 0 then
    redis.call('PEXPIRE', KEYS[2], ttl)
  end
end
return {'ok', unpack(rec)}
`)

// Account operations

func (s *Storage) GetAccount(ctx context.Context, id model.PlayerID) (*model.Account, error) {
	fields, err := s.client.HGetAll(ctx, accountKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, model.ErrAccountNotFound
	}

	values := make([]string, snapshotLen)
	for i, f := range accountFields {
		values[i] = fields[f]
	}
	acct, err := parseSnapshot(id, values)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *Storage) EnsureAccount(ctx context.Context, id model.PlayerID, now time.Time) (*model.Account, bool, error) {
	keys := []string{accountKey(id), leaderboardKey(model.RankByPoints), leaderboardKey(model.RankByExperience)}
	created, err := ensureScript.Run(ctx, s.client, keys, string(id), formatTime(now)).Int()
	if err != nil {
		return nil, false, err
	}

	acct, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return acct, created == 1, nil
}

func (s *Storage) ApplyDelta(ctx context.Context, id model.PlayerID, delta model.Delta) (*model.DeltaResult, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}

	at := delta.At
	if at.IsZero() {
		at = time.Now()
	}

	idempotent := "0"
	if delta.Key != "" {
		idempotent = "1"
	}

	keys := []string{
		accountKey(id),
		appliedKey(id, delta.Key),
		leaderboardKey(model.RankByPoints),
		leaderboardKey(model.RankByExperience),
	}
	args := []interface{}{
		string(id),
		delta.Points,
		delta.Experience,
		delta.GamesPlayed,
		delta.MinBalance,
		formatTime(at),
		idempotent,
		s.cfg.AppliedTTL.Milliseconds(),
		delta.Memo,
	}
	for _, threshold := range model.LevelThresholds() {
		args = append(args, threshold)
	}

	reply, err := deltaScript.Run(ctx, s.client, keys, args...).StringSlice()
	if err != nil {
		return nil, err
	}
	if len(reply) == 0 {
		return nil, fmt.Errorf("empty reply from delta script")
	}

	switch reply[0] {
	case "insufficient":
		return nil, model.ErrInsufficientFunds
	case "ok", "replay":
	default:
		return nil, fmt.Errorf("unexpected delta script status %q", reply[0])
	}

	if len(reply) != 2+2*snapshotLen {
		return nil, fmt.Errorf("malformed delta script reply of length %d", len(reply))
	}
	before, err := parseSnapshot(id, reply[1:1+snapshotLen])
	if err != nil {
		return nil, err
	}
	after, err := parseSnapshot(id, reply[1+snapshotLen:1+2*snapshotLen])
	if err != nil {
		return nil, err
	}

	return &model.DeltaResult{
		Before:  before,
		After:   after,
		Memo:    reply[1+2*snapshotLen],
		Applied: reply[0] == "ok",
	}, nil
}

func (s *Storage) TopAccounts(ctx context.Context, by model.RankBy, limit int) ([]*model.Account, error) {
	key := leaderboardKey(by)

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	entries, err := s.client.ZRevRangeWithScores(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []*model.Account{}, nil
	}

	// Redis orders equal scores by member descending, so pull in everything
	// tied with the cut-off entry before ordering by id
	ids := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		ids[e.Member.(string)] = struct{}{}
	}
	if limit > 0 && len(entries) == limit {
		last := strconv.FormatFloat(entries[len(entries)-1].Score, 'f', -1, 64)
		tied, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: last, Max: last}).Result()
		if err != nil {
			return nil, err
		}
		for _, member := range tied {
			ids[member] = struct{}{}
		}
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	order := make([]model.PlayerID, 0, len(ids))
	for member := range ids {
		order = append(order, model.PlayerID(member))
		cmds = append(cmds, pipe.HGetAll(ctx, accountKey(model.PlayerID(member))))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	accounts := make([]*model.Account, 0, len(cmds))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue // Stale leaderboard entry
		}
		values := make([]string, snapshotLen)
		for j, f := range accountFields {
			values[j] = fields[f]
		}
		acct, err := parseSnapshot(order[i], values)
		if err != nil {
			continue // Skip invalid data
		}
		accounts = append(accounts, &acct)
	}

	sort.Slice(accounts, func(i, j int) bool {
		a, b := rankValue(accounts[i], by), rankValue(accounts[j], by)
		if a != b {
			return a > b
		}
		return accounts[i].ID < accounts[j].ID
	})
	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

func rankValue(a *model.Account, by model.RankBy) int64 {
	if by == model.RankByExperience {
		return a.Experience
	}
	return a.Points
}

// Round operations

func (s *Storage) SaveRound(ctx context.Context, round *model.Round) error {
	data, err := json.Marshal(round)
	if err != nil {
		return err
	}

	rKey := roundKey(round.ID)
	playerIndex := playerRoundsIndexKey(round.PlayerID)
	member := string(round.ID)

	// Use a transaction so the round and its indexes never disagree
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, rKey, data, s.cfg.RoundTTL)
	pipe.ZAdd(ctx, playerIndex, redis.Z{Score: float64(round.StartedAt.UnixMilli()), Member: member})
	if s.cfg.RoundHistoryLimit > 0 {
		pipe.ZRemRangeByRank(ctx, playerIndex, 0, -s.cfg.RoundHistoryLimit-1)
	}
	if s.cfg.RoundTTL > 0 {
		pipe.Expire(ctx, playerIndex, s.cfg.RoundTTL) // Keep index TTL in sync
	}
	if round.State == model.RoundInProgress && !round.Deadline.IsZero() {
		pipe.ZAdd(ctx, activeRoundsIndexKey(), redis.Z{Score: float64(round.Deadline.UnixMilli()), Member: member})
	} else {
		pipe.ZRem(ctx, activeRoundsIndexKey(), member)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRound(ctx context.Context, id model.RoundID) (*model.Round, error) {
	data, err := s.client.Get(ctx, roundKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRoundNotFound
		}
		return nil, err
	}

	var round model.Round
	if err := json.Unmarshal(data, &round); err != nil {
		return nil, err
	}
	return &round, nil
}

func (s *Storage) ListRecentRounds(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.Round, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRevRange(ctx, playerRoundsIndexKey(playerID), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	return s.getRounds(ctx, ids)
}

func (s *Storage) ListExpiredRounds(ctx context.Context, before time.Time, limit int) ([]*model.Round, error) {
	by := &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}
	if limit > 0 {
		by.Count = int64(limit)
	}
	ids, err := s.client.ZRangeByScore(ctx, activeRoundsIndexKey(), by).Result()
	if err != nil {
		return nil, err
	}

	rounds, err := s.getRounds(ctx, ids)
	if err != nil {
		return nil, err
	}

	active := rounds[:0]
	for _, round := range rounds {
		if round.State == model.RoundInProgress {
			active = append(active, round)
		}
	}
	return active, nil
}

// getRounds fetches rounds with MGET, preserving order and skipping expired keys
func (s *Storage) getRounds(ctx context.Context, ids []string) ([]*model.Round, error) {
	if len(ids) == 0 {
		return []*model.Round{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roundKey(model.RoundID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	rounds := make([]*model.Round, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue // Round may have expired
		}
		var round model.Round
		if err := json.Unmarshal([]byte(val.(string)), &round); err != nil {
			continue // Skip invalid data
		}
		rounds = append(rounds, &round)
	}
	return rounds, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseSnapshot builds an account from values in accountFields order
func parseSnapshot(id model.PlayerID, values []string) (model.Account, error) {
	acct := model.Account{ID: id}
	if len(values) != snapshotLen {
		return acct, fmt.Errorf("account snapshot has %d fields", len(values))
	}

	ints := []*int64{&acct.Points, &acct.Experience, nil, &acct.GamesPlayed}
	for i, dst := range ints {
		n, err := strconv.ParseInt(values[i], 10, 64)
		if err != nil {
			return acct, fmt.Errorf("parse %s: %w", accountFields[i], err)
		}
		if dst == nil {
			acct.Level = int(n)
			continue
		}
		*dst = n
	}

	var err error
	if acct.CreatedAt, err = time.Parse(time.RFC3339Nano, values[4]); err != nil {
		return acct, fmt.Errorf("parse created_at: %w", err)
	}
	if acct.UpdatedAt, err = time.Parse(time.RFC3339Nano, values[5]); err != nil {
		return acct, fmt.Errorf("parse updated_at: %w", err)
	}
	return acct, nil
}
