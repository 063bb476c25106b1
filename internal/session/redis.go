package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"finance-tracker/internal/models"
)

// RedisStore keeps sessions in Redis as JSON documents. Each key expires
// together with its session, so no pruning is needed. A set per user lists
// the tokens issued to that user so they can be revoked together.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a store using rdb. Keys are named "<prefix><token>".
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "fintrack:session:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

func (s *RedisStore) save(ctx context.Context, sess *models.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	// The session being saved always has the latest expiry of the user's
	// sessions, so the index can share its TTL.
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.Token), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.Token)
		pipe.Expire(ctx, s.userKey(sess.UserID), ttl)
		return nil
	})
	return err
}

// CreateSession stores a new session.
func (s *RedisStore) CreateSession(ctx context.Context, sess *models.Session) error {
	return s.save(ctx, sess)
}

// GetSession loads a session by token.
func (s *RedisStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	data, err := s.rdb.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// RenewSession extends a session's expiry and records activity at now.
func (s *RedisStore) RenewSession(ctx context.Context, token string, now, expiresAt time.Time) error {
	sess, err := s.GetSession(ctx, token)
	if err != nil {
		return err
	}
	sess.ExpiresAt = expiresAt
	sess.LastActivity = now.UTC()
	return s.save(ctx, sess)
}

// DeleteSession removes a session. Unknown tokens are ignored.
func (s *RedisStore) DeleteSession(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, s.key(token)).Err()
}

// DeleteUserSessions removes every live session of the user with internal id
// userID and returns how many there were.
func (s *RedisStore) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	tokens, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, err
	}

	keys := make([]string, len(tokens))
	for i, token := range tokens {
		keys[i] = s.key(token)
	}

	var deleted *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, s.userKey(userID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if deleted == nil {
		return 0, nil
	}
	return deleted.Val(), nil
}
