package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"eventreg/internal/registration"
	"eventreg/pkg/platform/sentinel"
)

const keyPrefix = "eventreg:session:"

// Redis stores sessions as msgpack blobs with a TTL. Saves are optimistic
// transactions on the session key, so instances sharing the store cannot
// overwrite each other's writes.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis creates a Redis-backed session store.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func key(id string) string {
	return keyPrefix + id
}

func (s *Redis) Get(ctx context.Context, id string) (registration.State, error) {
	raw, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return registration.State{}, sentinel.ErrNotFound
	}
	if err != nil {
		return registration.State{}, fmt.Errorf("get session: %w", err)
	}
	var state registration.State
	if err := msgpack.Unmarshal(raw, &state); err != nil {
		return registration.State{}, fmt.Errorf("decode session: %w", err)
	}
	return state, nil
}

// storedVersion decodes only the version of a stored session.
type storedVersion struct {
	Version int64 `msgpack:"version"`
}

func (s *Redis) Save(ctx context.Context, state registration.State, ttl time.Duration) error {
	raw, err := msgpack.Marshal(&state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	k := key(state.SessionID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Bytes()
		exists := true
		var stored storedVersion
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return fmt.Errorf("read session version: %w", err)
		default:
			if err := msgpack.Unmarshal(current, &stored); err != nil {
				return fmt.Errorf("decode session version: %w", err)
			}
		}
		if err := checkVersion(exists, stored.Version, state.Version); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, raw, ttl)
			return nil
		})
		return err
	}, k)
	switch {
	case errors.Is(err, redis.TxFailedErr):
		return sentinel.ErrConflict
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrNotFound):
		return err
	case err != nil:
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
