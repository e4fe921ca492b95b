package botlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"libchat/internal/keylock"
	"libchat/internal/models"
	redisclient "libchat/internal/redis"

	redis "github.com/redis/go-redis/v9"
)

const (
	sessionsKey = "botlog:sessions"

	fieldUserName    = "user_name"
	fieldLastUpdated = "last_updated"
	fieldCount       = "message_count"
	fieldLastMessage = "last_message"
)

// RedisStore keeps the log in redis: a list of JSON messages per user, a hash of session
// metadata per user and a sorted set indexing sessions by last update.
type RedisStore struct {
	client *redis.Client
	locks  *keylock.Map[int64]
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client *redisclient.Client) (*RedisStore, error) {
	raw := client.Raw()
	if raw == nil {
		return nil, errors.New("redis client not initialized")
	}
	return &RedisStore{client: raw, locks: keylock.New[int64]()}, nil
}

func messagesKey(userID int64) string { return fmt.Sprintf("botlog:messages:%d", userID) }
func sessionKey(userID int64) string  { return fmt.Sprintf("botlog:session:%d", userID) }

// Append implements Store. Appends for one user are serialized in-process and written in one MULTI.
func (s *RedisStore) Append(ctx context.Context, userID int64, msg models.ChatMessage) (models.ChatMessage, error) {
	if userID <= 0 {
		return models.ChatMessage{}, ErrInvalidUser
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	var last time.Time
	lastRaw, err := s.client.HGet(ctx, sessionKey(userID), fieldLastUpdated).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return models.ChatMessage{}, fmt.Errorf("read session %d: %w", userID, err)
	default:
		if parsed, perr := time.Parse(time.RFC3339Nano, lastRaw); perr == nil {
			last = parsed
		}
	}

	msg = stamp(msg, last)
	payload, err := json.Marshal(msg)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("encode message: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, messagesKey(userID), payload)
		pipe.HSet(ctx, sessionKey(userID),
			fieldLastUpdated, msg.CreatedAt.Format(time.RFC3339Nano),
			fieldLastMessage, payload,
		)
		pipe.HIncrBy(ctx, sessionKey(userID), fieldCount, 1)
		pipe.ZAdd(ctx, sessionsKey, redis.Z{
			Score:  float64(msg.CreatedAt.UnixMilli()),
			Member: strconv.FormatInt(userID, 10),
		})
		return nil
	})
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("append message for %d: %w", userID, err)
	}
	return msg, nil
}

// Messages implements Store.
func (s *RedisStore) Messages(ctx context.Context, userID int64) ([]models.ChatMessage, error) {
	return s.Recent(ctx, userID, 0)
}

// Recent implements Store; n <= 0 returns the whole log.
func (s *RedisStore) Recent(ctx context.Context, userID int64, n int) ([]models.ChatMessage, error) {
	start := int64(0)
	if n > 0 {
		start = -int64(n)
	}
	raws, err := s.client.LRange(ctx, messagesKey(userID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read messages for %d: %w", userID, err)
	}
	out := make([]models.ChatMessage, 0, len(raws))
	for _, raw := range raws {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("decode message for %d: %w", userID, err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// Sessions implements Store, newest activity first.
func (s *RedisStore) Sessions(ctx context.Context) ([]models.BotSession, error) {
	members, err := s.client.ZRevRange(ctx, sessionsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(members) == 0 {
		return []models.BotSession{}, nil
	}

	ids := make([]int64, 0, len(members))
	cmds := make([]*redis.MapStringStringCmd, 0, len(members))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, member := range members {
			id, perr := strconv.ParseInt(member, 10, 64)
			if perr != nil {
				continue
			}
			ids = append(ids, id)
			cmds = append(cmds, pipe.HGetAll(ctx, sessionKey(id)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	out := make([]models.BotSession, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		summary := models.BotSession{UserID: ids[i], UserName: fields[fieldUserName]}
		summary.LastUpdated, _ = time.Parse(time.RFC3339Nano, fields[fieldLastUpdated])
		summary.MessageCount, _ = strconv.Atoi(fields[fieldCount])
		if raw := fields[fieldLastMessage]; raw != "" {
			var last models.ChatMessage
			if json.Unmarshal([]byte(raw), &last) == nil {
				summary.LastMessage = &last
			}
		}
		out = append(out, summary)
	}
	sortSessions(out)
	return out, nil
}

// SetUserName implements Store.
func (s *RedisStore) SetUserName(ctx context.Context, userID int64, name string) error {
	if userID <= 0 {
		return ErrInvalidUser
	}
	if name == "" {
		return nil
	}
	if err := s.client.HSet(ctx, sessionKey(userID), fieldUserName, name).Err(); err != nil {
		return fmt.Errorf("set user name for %d: %w", userID, err)
	}
	return nil
}
