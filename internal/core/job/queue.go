package job

import (
	"context"
	"encoding/json"
	"time"

	tasks "prelabel/internal/platform/tasks"

	"github.com/cockroachdb/errors"
	"github.com/hibiken/asynq"
)

// Queue hands an accepted spec to the worker pool.
type Queue interface {
	Push(ctx context.Context, spec Spec) error
}

// AsynqQueue pushes specs onto a Redis-backed asynq queue. The job id is
// the task id, so a spec that is still waiting is not queued twice. Each
// task gets a timeout sized to the whole job; llmTimeout is the per-call
// bound used when a spec does not set its own.
type AsynqQueue struct {
	tasks      *tasks.Client
	queue      string
	llmTimeout time.Duration
}

func NewAsynqQueue(tasks *tasks.Client, queue string, llmTimeout time.Duration) *AsynqQueue {
	return &AsynqQueue{tasks: tasks, queue: queue, llmTimeout: llmTimeout}
}

func (q *AsynqQueue) Push(ctx context.Context, spec Spec) error {
	payload, err := json.Marshal(spec)
	if err != nil {
		return errors.Wrap(err, "encode job spec")
	}
	task := asynq.NewTask(tasks.TaskTypePrelabel, payload)
	err = q.tasks.Enqueue(ctx, task, spec.JobID, q.queue, spec.Timeout(q.llmTimeout))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// HandleTask is the asynq handler for tasks.TaskTypePrelabel.
func (r *Runner) HandleTask(ctx context.Context, task *asynq.Task) error {
	var spec Spec
	if err := json.Unmarshal(task.Payload(), &spec); err != nil {
		return errors.Wrap(err, "decode job spec")
	}
	return r.Run(ctx, &spec)
}
