package job

import (
	"context"
	"testing"
	"time"

	rds "prelabel/internal/platform/redis"
	tasks "prelabel/internal/platform/tasks"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type asynqFixture struct {
	store     *Store
	queue     *AsynqQueue
	inspector *asynq.Inspector
}

func newAsynqFixture(t *testing.T) *asynqFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := rds.New(rds.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	client := tasks.New(r)
	inspector := asynq.NewInspector(r.AsynqRedisOpt())
	t.Cleanup(func() {
		_ = inspector.Close()
		_ = client.Close()
		_ = r.Close()
	})
	return &asynqFixture{
		store:     NewStore(r, time.Hour),
		queue:     NewAsynqQueue(client, "prelabel", time.Minute),
		inspector: inspector,
	}
}

func TestSpecTimeout(t *testing.T) {
	spec := validSpec("job-budget", 3)
	spec.Questions = append(spec.Questions, QuestionLabel{Question: "Date of birth?", Label: "DOB"})
	assert.Equal(t, 3*(2*time.Minute+taskOverhead), spec.Timeout(time.Minute))

	spec.LLMTimeoutSeconds = 10
	assert.Equal(t, 3*(20*time.Second+taskOverhead), spec.Timeout(time.Minute))

	assert.Equal(t, time.Minute+taskOverhead, validSpec("job-empty", 0).Timeout(time.Minute))
}

func TestAsynqQueuePush(t *testing.T) {
	f := newAsynqFixture(t)
	ctx := context.Background()
	spec := validSpec("job-aq", 3)

	require.NoError(t, f.queue.Push(ctx, spec))
	// The task id is the job id, so a second push is absorbed.
	require.NoError(t, f.queue.Push(ctx, spec))

	info, err := f.inspector.GetTaskInfo("prelabel", "job-aq")
	require.NoError(t, err)
	assert.Equal(t, "job-aq", info.ID)
	assert.Equal(t, "prelabel", info.Queue)
	assert.Equal(t, tasks.TaskTypePrelabel, info.Type)
	assert.Equal(t, 0, info.MaxRetry)
	assert.Equal(t, asynq.TaskStatePending, info.State)
	assert.Equal(t, 3*(time.Minute+taskOverhead), info.Timeout)

	pending, err := f.inspector.ListPendingTasks("prelabel")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestAsynqTimeoutCoversLongJobs(t *testing.T) {
	f := newAsynqFixture(t)
	spec := validSpec("job-long", 500)
	require.NoError(t, f.queue.Push(context.Background(), spec))

	info, err := f.inspector.GetTaskInfo("prelabel", "job-long")
	require.NoError(t, err)
	assert.Equal(t, 500*(time.Minute+taskOverhead), info.Timeout)
	assert.Greater(t, info.Timeout, 30*time.Minute)
}

func TestHandleTaskRoundTrip(t *testing.T) {
	f := newAsynqFixture(t)
	ctx := context.Background()
	exec := &stubExecutor{}
	runner := NewRunner(f.store, exec).WithBackoff(time.Millisecond, 2)
	svc := NewService(f.store, f.queue)

	id, err := svc.Enqueue(ctx, validSpec("job-rt", 2))
	require.NoError(t, err)

	info, err := f.inspector.GetTaskInfo("prelabel", id)
	require.NoError(t, err)
	require.NoError(t, runner.HandleTask(ctx, asynq.NewTask(info.Type, info.Payload)))

	j, err := svc.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateDone, j.State)
	assert.Equal(t, 2, j.Done)
	assert.Equal(t, []string{"t1", "t2"}, exec.calls())
}

func TestHandleTaskRejectsBadPayload(t *testing.T) {
	f := newAsynqFixture(t)
	runner := NewRunner(f.store, &stubExecutor{})

	err := runner.HandleTask(context.Background(), asynq.NewTask(tasks.TaskTypePrelabel, []byte("{")))
	assert.Error(t, err)
}
