// Package redisstore keeps the pending reservation slot in Redis, one hash per
// client plus a plain key for the read-once error marker.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
)

// clearIfCurrent deletes the pending hash only when it still holds the given
// session reference.
// KEYS[1] = pending hash key
// ARGV[1] = session reference
var clearIfCurrent = redis.NewScript(`
if redis.call("HGET", KEYS[1], "ref") == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long an abandoned attempt survives. Zero keeps it forever.
	TTL time.Duration
}

type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", opts.Addr, err)
	}
	log.Printf("[Redis] Connected to %s (db %d)", opts.Addr, opts.DB)
	return &Client{rdb: rdb, ttl: opts.TTL}, nil
}

func (c *Client) Close() error { return c.rdb.Close() }

// Scope returns the slot of one client.
func (c *Client) Scope(clientID string) intent.Store {
	return &Store{
		rdb:        c.rdb,
		ttl:        c.ttl,
		clientID:   clientID,
		pendingKey: fmt.Sprintf("reservation:%s:%s", clientID, intent.SlotPending),
		errorKey:   fmt.Sprintf("reservation:%s:%s", clientID, intent.SlotError),
	}
}

type Store struct {
	rdb        *redis.Client
	ttl        time.Duration
	clientID   string
	pendingKey string
	errorKey   string
}

func (s *Store) Save(ctx context.Context, in intent.Intent) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode reservation intent: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.pendingKey)
		pipe.HSet(ctx, s.pendingKey, "ref", in.SessionReference, "payload", string(payload))
		if s.ttl > 0 {
			pipe.Expire(ctx, s.pendingKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to save pending reservation: %w", intent.ErrStoreUnavailable, err)
	}
	log.Printf("[Redis] Saved pending reservation %s for client %s", in.SessionReference, s.clientID)
	return nil
}

func (s *Store) Load(ctx context.Context) (intent.Intent, bool, error) {
	payload, err := s.rdb.HGet(ctx, s.pendingKey, "payload").Result()
	if errors.Is(err, redis.Nil) {
		return intent.Intent{}, false, nil
	}
	if err != nil {
		return intent.Intent{}, false, fmt.Errorf("%w: failed to load pending reservation: %w", intent.ErrStoreUnavailable, err)
	}
	var in intent.Intent
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return intent.Intent{}, false, fmt.Errorf("failed to decode pending reservation: %w", err)
	}
	return in, true, nil
}

func (s *Store) Clear(ctx context.Context, sessionReference string) error {
	n, err := clearIfCurrent.Run(ctx, s.rdb, []string{s.pendingKey}, sessionReference).Int64()
	if err != nil {
		return fmt.Errorf("%w: failed to clear pending reservation: %w", intent.ErrStoreUnavailable, err)
	}
	if n > 0 {
		log.Printf("[Redis] Cleared pending reservation %s for client %s", sessionReference, s.clientID)
	}
	return nil
}

func (s *Store) RecordError(ctx context.Context, message string) error {
	if err := s.rdb.Set(ctx, s.errorKey, message, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: failed to record reservation error: %w", intent.ErrStoreUnavailable, err)
	}
	return nil
}

// TakeError uses GETDEL so concurrent loads cannot both observe the marker.
func (s *Store) TakeError(ctx context.Context) (string, bool, error) {
	message, err := s.rdb.GetDel(ctx, s.errorKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to take reservation error: %w", intent.ErrStoreUnavailable, err)
	}
	return message, true, nil
}
