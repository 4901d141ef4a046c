package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements colly's storage.Storage on Redis so visited
// requests and cookies are shared between processes and runs. Visited
// markers expire after ttl; a zero ttl keeps them forever.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	// colly's storage interface carries no context
	ctx context.Context
}

// NewRedisStorage wraps an existing client
func NewRedisStorage(client *redis.Client, prefix string, ttl time.Duration) *RedisStorage {
	if prefix == "" {
		prefix = "ggcrawl"
	}
	return &RedisStorage{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		ctx:    context.Background(),
	}
}

// DialRedisStorage connects to addr
func DialRedisStorage(addr, prefix string, ttl time.Duration) *RedisStorage {
	return NewRedisStorage(redis.NewClient(&redis.Options{Addr: addr}), prefix, ttl)
}

// Init checks the connection
func (s *RedisStorage) Init() error {
	if err := s.client.Ping(s.ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return nil
}

// Visited refreshes the visited marker of a request id
func (s *RedisStorage) Visited(requestID uint64) error {
	return s.client.Set(s.ctx, s.visitedKey(requestID), "1", s.ttl).Err()
}

// IsVisited claims the request id with SET NX and reports whether it was
// already claimed within ttl. colly always follows a false answer with
// Visited, so claiming here keeps two collectors from fetching the same
// URL between the check and the mark.
func (s *RedisStorage) IsVisited(requestID uint64) (bool, error) {
	claimed, err := s.client.SetNX(s.ctx, s.visitedKey(requestID), "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Cookies returns the stored cookie header for the host of u
func (s *RedisStorage) Cookies(u *url.URL) string {
	cookies, err := s.client.Get(s.ctx, s.cookiesKey(u)).Result()
	if err != nil {
		return ""
	}
	return cookies
}

// SetCookies stores the cookie header for the host of u
func (s *RedisStorage) SetCookies(u *url.URL, cookies string) {
	s.client.Set(s.ctx, s.cookiesKey(u), cookies, 0)
}

// Clear removes every key under the storage prefix, forcing a full recrawl
func (s *RedisStorage) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to delete %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// Close closes the underlying client
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

func (s *RedisStorage) visitedKey(requestID uint64) string {
	return s.prefix + ":visited:" + strconv.FormatUint(requestID, 10)
}

func (s *RedisStorage) cookiesKey(u *url.URL) string {
	return s.prefix + ":cookies:" + u.Host
}
