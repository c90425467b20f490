package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/model"
)

const (
	redisKeyPrefix  = "session:"
	redisUserPrefix = "user-sessions:"
)

func userKey(id int64) string { return redisUserPrefix + strconv.FormatInt(id, 10) }

// RedisStore keeps sessions in Redis with a key TTL equal to the session TTL,
// so expiry is enforced by Redis itself.
type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore constructs a store over rdb.
func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

// Create issues a new session and stores it with SET EX. The token is also
// added to the owner's index set, whose TTL is pushed to the newest session's.
func (r *RedisStore) Create(ctx context.Context, id model.Identity) (model.Session, error) {
	s, err := newSession(id, r.now(), r.ttl)
	if err != nil {
		return model.Session{}, err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return model.Session{}, err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisKeyPrefix+s.Token, raw, r.ttl)
		p.SAdd(ctx, userKey(s.UserID), s.Token)
		p.Expire(ctx, userKey(s.UserID), r.ttl)
		return nil
	})
	if err != nil {
		return model.Session{}, err
	}
	return s, nil
}

// Resolve loads the session for token.
func (r *RedisStore) Resolve(ctx context.Context, token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, errs.ErrUnauthorized
	}
	raw, err := r.rdb.Get(ctx, redisKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Session{}, errs.ErrUnauthorized
	}
	if err != nil {
		return model.Session{}, err
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.Session{}, errs.ErrUnauthorized
	}
	if !r.now().Before(s.ExpiresAt) {
		return model.Session{}, errs.ErrUnauthorized
	}
	s.Token = token
	return s, nil
}

// Destroy deletes the session key and its index entry.
func (r *RedisStore) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	raw, err := r.rdb.GetDel(ctx, redisKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	var s model.Session
	if json.Unmarshal(raw, &s) != nil {
		return nil
	}
	return r.rdb.SRem(ctx, userKey(s.UserID), token).Err()
}

// DestroyUser deletes every session indexed under userID.
func (r *RedisStore) DestroyUser(ctx context.Context, userID int64) error {
	toks, err := r.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(toks)+1)
	for _, tok := range toks {
		keys = append(keys, redisKeyPrefix+tok)
	}
	keys = append(keys, userKey(userID))
	return r.rdb.Del(ctx, keys...).Err()
}
