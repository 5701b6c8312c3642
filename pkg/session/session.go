// Package session keeps login sessions in Redis.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CookieName is the cookie carrying the session id.
const CookieName = "session_id"

// ErrNoSession is returned when a session id is unknown or expired.
var ErrNoSession = errors.New("session not found")

// Store maps session ids to user names.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns a Store whose sessions expire after ttl.
func New(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// TTL is the lifetime of a new session.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create opens a session for user and returns its id.
func (s *Store) Create(ctx context.Context, user string) (string, error) {
	sid := uuid.NewString()
	if err := s.rdb.Set(ctx, key(sid), user, s.ttl).Err(); err != nil {
		return "", err
	}
	return sid, nil
}

// User returns the user owning sid.
func (s *Store) User(ctx context.Context, sid string) (string, error) {
	user, err := s.rdb.Get(ctx, key(sid)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && user == "") {
		return "", ErrNoSession
	}
	return user, err
}

// Delete ends a session. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, sid string) error {
	return s.rdb.Del(ctx, key(sid)).Err()
}

func key(sid string) string { return "session:" + sid }
