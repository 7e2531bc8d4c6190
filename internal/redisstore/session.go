package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tfinance/tfinance-api/internal/model"
	"github.com/tfinance/tfinance-api/internal/repository"
)

// SessionStore keeps sessions as JSON under session:<id> with a TTL equal
// to the remaining lifetime, and indexes them per user for DeleteByUser.
type SessionStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewSessionStore(client redis.Cmdable) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

func sessionKey(id string) string {
	return "session:" + id
}

func userSessionsKey(userID int64) string {
	return "user_sessions:" + strconv.FormatInt(userID, 10)
}

func (s *SessionStore) Create(ctx context.Context, sess *model.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", sess.ID)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	idx := userSessionsKey(sess.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sess.ID), data, ttl)
		pipe.SAdd(ctx, idx, sess.ID)
		pipe.Expire(ctx, idx, ttl)
		return nil
	})
	return err
}

func (s *SessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, err
	}

	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.SRem(ctx, userSessionsKey(sess.UserID), id)
		return nil
	})
	return err
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID int64) error {
	idx := userSessionsKey(userID)
	ids, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, idx)
	return s.client.Del(ctx, keys...).Err()
}

// DeleteExpired is a no-op: Redis expires session keys on its own.
func (s *SessionStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
