package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/gaminghub/internal/model"
)

// createBotSessionScript stores a session and marks it open unless another is open.
// The open pointer expires with the session so a lost body cannot block the slot.
// KEYS: open pointer, session, sessions index
// ARGV: session id, body, created at ms, ttl ms, index trim bound (empty for none)
var createBotSessionScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
if tonumber(ARGV[4]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[4])
  redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[4])
else
  redis.call('SET', KEYS[1], ARGV[1])
  redis.call('SET', KEYS[2], ARGV[2])
end
if ARGV[5] ~= '' then
  redis.call('ZREMRANGEBYSCORE', KEYS[3], '-inf', ARGV[5])
end
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// closeBotSessionScript replaces the session body if it is still the open one.
// KEYS: open pointer, session
// ARGV: session id, closed body
var closeBotSessionScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
local ttl = redis.call('PTTL', KEYS[2])
if ttl > 0 then
  redis.call('SET', KEYS[2], ARGV[2], 'PX', ttl)
else
  redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

func (s *Storage) CreateBotSession(ctx context.Context, session *model.BotSession) error {
	body, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ttl := s.cfg.BotSessionTTL
	trim := ""
	if ttl > 0 {
		// Index entries outlive their sessions otherwise
		trim = "(" + strconv.FormatInt(session.CreatedAt.Add(-ttl).UnixMilli(), 10)
	}

	keys := []string{openBotSessionKey(), botSessionKey(session.ID), botSessionsIndexKey()}
	created, err := createBotSessionScript.Run(ctx, s.client, keys,
		string(session.ID), body, session.CreatedAt.UnixMilli(), ttl.Milliseconds(), trim).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return model.ErrBotSessionActive
	}
	return nil
}

func (s *Storage) GetBotSession(ctx context.Context, id model.BotSessionID) (*model.BotSession, error) {
	data, err := s.client.Get(ctx, botSessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrBotSessionNotFound
		}
		return nil, err
	}

	var session model.BotSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) GetOpenBotSession(ctx context.Context) (*model.BotSession, error) {
	id, err := s.client.Get(ctx, openBotSessionKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrBotSessionNotFound
		}
		return nil, err
	}
	return s.GetBotSession(ctx, model.BotSessionID(id))
}

func (s *Storage) CloseBotSession(ctx context.Context, closed *model.BotSession) (*model.BotSession, bool, error) {
	body, err := json.Marshal(closed)
	if err != nil {
		return nil, false, err
	}

	keys := []string{openBotSessionKey(), botSessionKey(closed.ID)}
	done, err := closeBotSessionScript.Run(ctx, s.client, keys, string(closed.ID), body).Int()
	if err != nil {
		return nil, false, err
	}

	stored, err := s.GetBotSession(ctx, closed.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, done == 1, nil
}

func (s *Storage) ListBotSessionsSince(ctx context.Context, since time.Time) ([]*model.BotSession, error) {
	ids, err := s.client.ZRangeByScore(ctx, botSessionsIndexKey(), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.BotSession{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = botSessionKey(model.BotSessionID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.BotSession, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue // Session may have expired
		}
		var session model.BotSession
		if err := json.Unmarshal([]byte(val.(string)), &session); err != nil {
			continue
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}
