package tasks

import (
	"context"
	"time"

	"prelabel/internal/platform/redis"

	"github.com/hibiken/asynq"
)

const (
	TaskTypePrelabel = "prelabel:job"
)

type Client struct{ c *asynq.Client }

func New(r *redis.Service) *Client { return &Client{c: asynq.NewClient(r.AsynqRedisOpt())} }

// Enqueue submits task under a fixed id. Job failures are recorded on the
// job itself, so asynq never retries. timeout replaces asynq's 30 minute
// default and cancels the handler context when it runs out.
func (t *Client) Enqueue(ctx context.Context, task *asynq.Task, id, queue string, timeout time.Duration) error {
	_, err := t.c.EnqueueContext(ctx, task, asynq.TaskID(id), asynq.Queue(queue), asynq.MaxRetry(0), asynq.Timeout(timeout))
	return err
}

func (t *Client) Close() error { return t.c.Close() }
