package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"scc-link-go/internal/platform/config"
	"scc-link-go/internal/platform/errors"
)

const defaultSessionPrefix = "scclink:session:"

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a redis-backed session store; session expiry rides
// on key TTLs.
func NewRedisStore(cfg config.RedisStoreConfig) (SessionStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New(errors.KindConfig, "redis", "redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "redis", "redis ping failed", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultSessionPrefix
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) key(id string) string {
	return s.prefix + id
}

func (s *redisStore) Put(ctx context.Context, session LinkSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "put", "encode session", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, session.ID)
	}
	if err := s.client.Set(ctx, s.key(session.ID), data, ttl).Err(); err != nil {
		return errors.Wrap(errors.KindStorage, "put", "store session", err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, id string) (LinkSession, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return LinkSession{}, ErrSessionNotFound
		}
		return LinkSession{}, errors.Wrap(errors.KindStorage, "get", "load session", err)
	}
	var session LinkSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return LinkSession{}, errors.Wrap(errors.KindStorage, "get", "decode session", err)
	}
	if session.expired(time.Now()) {
		_ = s.Delete(ctx, id)
		return LinkSession{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// NewSessionStore selects the session store driver from configuration.
func NewSessionStore(cfg config.StoreConfig) (SessionStore, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.Redis)
	default:
		return nil, errors.New(errors.KindConfig, "store", "unsupported session store driver: "+cfg.Type)
	}
}
