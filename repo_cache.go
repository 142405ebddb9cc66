package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultCredentialCacheTTL    = 5 * time.Minute
	DefaultCredentialCachePrefix = "auth:credentials:"
)

// CredentialCache is notified whenever account data that feeds logins
// changes.
type CredentialCache interface {
	Invalidate(ctx context.Context, usernames ...string) error
	Flush(ctx context.Context) error
}

type noopCredentialCache struct{}

func (noopCredentialCache) Invalidate(context.Context, ...string) error { return nil }
func (noopCredentialCache) Flush(context.Context) error                 { return nil }

// CachedCredentialStore is a read-through redis cache in front of another
// CredentialStore. Misses are not cached. Redis failures degrade to the
// underlying store.
type CachedCredentialStore struct {
	next   CredentialStore
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	logger Logger
}

var (
	_ CredentialStore = (*CachedCredentialStore)(nil)
	_ CredentialCache = (*CachedCredentialStore)(nil)
)

func NewCachedCredentialStore(next CredentialStore, client redis.Cmdable, ttl time.Duration) *CachedCredentialStore {
	if ttl <= 0 {
		ttl = DefaultCredentialCacheTTL
	}
	return &CachedCredentialStore{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: DefaultCredentialCachePrefix,
		logger: defLogger{},
	}
}

func (s *CachedCredentialStore) WithLogger(logger Logger) *CachedCredentialStore {
	s.logger = resolveLogger(logger)
	return s
}

func (s *CachedCredentialStore) WithPrefix(prefix string) *CachedCredentialStore {
	if prefix != "" {
		s.prefix = prefix
	}
	return s
}

func (s *CachedCredentialStore) key(username string) string {
	return s.prefix + username
}

// FindByUsername implements CredentialStore
func (s *CachedCredentialStore) FindByUsername(ctx context.Context, username string) (Credentials, error) {
	key := s.key(username)

	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var creds Credentials
		if jerr := json.Unmarshal(raw, &creds); jerr == nil {
			return creds, nil
		}
		s.logger.Warn("credential cache entry unreadable", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warn("credential cache read failed", "key", key, "error", err)
	}

	creds, err := s.next.FindByUsername(ctx, username)
	if err != nil {
		return Credentials{}, err
	}

	payload, err := json.Marshal(creds)
	if err != nil {
		s.logger.Warn("credential cache encode failed", "key", key, "error", err)
		return creds, nil
	}

	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Warn("credential cache write failed", "key", key, "error", err)
	}

	return creds, nil
}

// Invalidate drops the cached entries for usernames
func (s *CachedCredentialStore) Invalidate(ctx context.Context, usernames ...string) error {
	if len(usernames) == 0 {
		return nil
	}
	keys := make([]string, len(usernames))
	for i, u := range usernames {
		keys[i] = s.key(u)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "failed to invalidate credential cache")
	}
	return nil
}

// Flush drops every entry under the cache prefix
func (s *CachedCredentialStore) Flush(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return errors.Wrap(err, errors.CategoryExternal, "failed to flush credential cache")
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "failed to scan credential cache")
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return errors.Wrap(err, errors.CategoryExternal, "failed to flush credential cache")
		}
	}
	return nil
}
