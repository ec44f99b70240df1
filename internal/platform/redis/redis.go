package redis

import (
	"context"
	"fmt"
	"time"

	"prelabel/internal/logger"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

// ErrConflict is returned by Swap when the watched key changed between the
// read and the write.
var ErrConflict = redisv8.TxFailedErr

type Options struct {
	Addr     string
	Password string
}

type Service struct {
	client *redisv8.Client
	log    *logger.Logger
}

func New(opts Options) (*Service, error) {
	c := redisv8.NewClient(&redisv8.Options{Addr: opts.Addr, Password: opts.Password})
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Service{client: c, log: logger.New("Redis")}, nil
}

func (s *Service) Close() error { return s.client.Close() }

func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.log.LogErrorf("Redis health check failed: %v", err)
		return fmt.Errorf("redis ping failed: %v", err)
	}

	testKey := "health:test:" + time.Now().Format("20060102150405")
	if err := s.client.Set(ctx, testKey, "ok", 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis write test failed: %v", err)
	}
	val, err := s.client.Get(ctx, testKey).Result()
	if err != nil {
		return fmt.Errorf("redis read test failed: %v", err)
	}
	if val != "ok" {
		return fmt.Errorf("redis value mismatch: got %s, want ok", val)
	}
	_ = s.client.Del(ctx, testKey).Err()
	return nil
}

func (s *Service) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: s.client.Options().Addr, Password: s.client.Options().Password}
}

// Get returns the value under key, or nil when the key does not exist.
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err == redisv8.Nil {
		return nil, nil
	}
	return b, err
}

// Write is the outcome of a Swap callback.
type Write struct {
	Value []byte
	// TTL applies to Value and to every key in Expire. Zero means no expiry.
	TTL    time.Duration
	Expire []string
	Delete []string
}

// Swap replaces the whole value under key in one WATCH/MULTI/EXEC round.
// fn receives the current value (nil when absent) and returns the write to
// apply; returning an error aborts without writing. A concurrent write to
// key makes Swap fail with ErrConflict. Readers only ever see the old or
// the new value, never a partial one.
func (s *Service) Swap(ctx context.Context, key string, fn func(current []byte) (*Write, error)) error {
	return s.client.Watch(ctx, func(tx *redisv8.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redisv8.Nil:
			current = nil
		case err != nil:
			return err
		}
		w, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redisv8.Pipeliner) error {
			pipe.Set(ctx, key, w.Value, w.TTL)
			if len(w.Delete) > 0 {
				pipe.Del(ctx, w.Delete...)
			}
			if w.TTL > 0 {
				for _, k := range w.Expire {
					pipe.Expire(ctx, k, w.TTL)
				}
			}
			return nil
		})
		return err
	}, key)
}

// Append pushes line onto the list under key and returns the new length.
func (s *Service) Append(ctx context.Context, key, line string) (int64, error) {
	return s.client.RPush(ctx, key, line).Result()
}

// Range returns list entries from start to the end of the list.
func (s *Service) Range(ctx context.Context, key string, start int64) ([]string, error) {
	return s.client.LRange(ctx, key, start, -1).Result()
}

// SetFlag stores a marker value under key.
func (s *Service) SetFlag(ctx context.Context, key string) error {
	return s.client.Set(ctx, key, "1", 0).Err()
}

// HasFlag reports whether key exists.
func (s *Service) HasFlag(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	return n > 0, err
}
