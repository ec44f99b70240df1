package job

import (
	"context"
	"fmt"
	"time"

	"prelabel/internal/logger"

	"github.com/cockroachdb/errors"
	"github.com/sethvargo/go-retry"
)

// TaskExecutor runs one task of a job. A returned error fails the whole job.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, spec *Spec, task Task) (*TaskReport, error)
}

const msgWorkerStopped = "worker stopped"

// Runner is the worker loop. It owns a job from the moment it wins the
// claim until it commits a terminal state.
type Runner struct {
	store    *Store
	exec     TaskExecutor
	log      *logger.Logger
	backoff  time.Duration
	attempts uint64
}

func NewRunner(store *Store, exec TaskExecutor) *Runner {
	return &Runner{store: store, exec: exec, log: logger.New("JobRunner"), backoff: 100 * time.Millisecond, attempts: 4}
}

// WithBackoff sets the persistence retry schedule.
func (r *Runner) WithBackoff(base time.Duration, attempts uint64) *Runner {
	r.backoff = base
	r.attempts = attempts
	return r
}

// Run processes spec. It returns an error only when the job could not be
// claimed because of a store failure; job-level failures end up in the
// job record instead.
func (r *Runner) Run(ctx context.Context, spec *Spec) error {
	// Status writes must land even while the worker is shutting down.
	pctx := context.WithoutCancel(ctx)

	var j *Job
	err := r.retry(pctx, func(ctx context.Context) error {
		var err error
		j, err = r.store.Claim(ctx, spec.JobID)
		return err
	})
	if errors.IsAny(err, ErrNotClaimable, ErrNotFound) {
		r.jobLog(spec.JobID).LogWarnf("dropping delivery: %v", err)
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "claim job %s", spec.JobID)
	}

	total := len(spec.Tasks)
	j.Total = &total
	r.commit(pctx, j)
	r.appendLog(pctx, j.JobID, fmt.Sprintf("started: %d tasks", total))
	r.jobLog(j.JobID).LogInfof("processing %d tasks", total)

	started := time.Now()
	if total == 0 && r.stopAtBoundary(ctx, pctx, j) {
		return nil
	}
	for _, task := range spec.Tasks {
		if r.stopAtBoundary(ctx, pctx, j) {
			return nil
		}

		report, err := r.exec.ExecuteTask(ctx, spec, task)
		if report != nil {
			for _, line := range report.Lines {
				r.appendLog(pctx, j.JobID, line)
			}
		}
		if err != nil {
			msg := err.Error()
			if ctx.Err() != nil {
				msg = msgWorkerStopped
			}
			r.finish(pctx, j, StateError, msg, fmt.Sprintf("error on task %s: %v", task.ID, err))
			return nil
		}

		j.Done++
		r.commit(pctx, j)
		r.appendLog(pctx, j.JobID, fmt.Sprintf("task %s done (%d/%d)", task.ID, j.Done, total))
	}

	elapsed := time.Since(started)
	var avg time.Duration
	if total > 0 {
		avg = elapsed / time.Duration(total)
	}
	r.appendLog(pctx, j.JobID, fmt.Sprintf("[SUMMARY] processed %d/%d tasks in %s (avg %s per task)",
		j.Done, total, elapsed.Round(time.Millisecond), avg.Round(time.Millisecond)))
	r.finish(pctx, j, StateDone, "", "done")
	return nil
}

// Abandon fails a spec that was accepted but will never be run, such as
// one left in the local backlog at shutdown. A job some worker already
// claimed is left to that worker.
func (r *Runner) Abandon(ctx context.Context, spec *Spec) {
	var j *Job
	err := r.retry(ctx, func(ctx context.Context) error {
		var err error
		j, err = r.store.Claim(ctx, spec.JobID)
		return err
	})
	if err != nil {
		r.jobLog(spec.JobID).LogWarnf("not abandoned: %v", err)
		return
	}
	r.finish(ctx, j, StateError, msgWorkerStopped, "worker stopped before the job started")
}

func (r *Runner) jobLog(id string) *logger.Logger { return r.log.With("job_id", id) }

// stopAtBoundary checks the cancel flag and the worker context between
// tasks and commits the matching terminal state when either is set.
func (r *Runner) stopAtBoundary(ctx, pctx context.Context, j *Job) bool {
	if ctx.Err() != nil {
		r.finish(pctx, j, StateError, msgWorkerStopped, "worker stopped before task boundary")
		return true
	}
	cancelled, err := r.store.CancelRequested(pctx, j.JobID)
	if err != nil {
		r.jobLog(j.JobID).LogWarnf("cancel check failed: %v", err)
		return false
	}
	if !cancelled {
		return false
	}
	r.finish(pctx, j, StateCancelled, "cancelled by user", fmt.Sprintf("cancelled after %d tasks", j.Done))
	return true
}

func (r *Runner) finish(ctx context.Context, j *Job, state State, message, line string) {
	r.appendLog(ctx, j.JobID, line)
	j.State = state
	j.Message = message
	r.commit(ctx, j)
	r.jobLog(j.JobID).LogInfof("finished: %s (%d done)", state, j.Done)
}

func (r *Runner) commit(ctx context.Context, j *Job) {
	err := r.retry(ctx, func(ctx context.Context) error { return r.store.Commit(ctx, j) })
	if err != nil {
		r.jobLog(j.JobID).LogErrorf("status write failed: %v", err)
	}
}

func (r *Runner) appendLog(ctx context.Context, id, line string) {
	err := r.retry(ctx, func(ctx context.Context) error { return r.store.AppendLog(ctx, id, line) })
	if err != nil {
		r.jobLog(id).LogErrorf("log write failed: %v", err)
	}
}

// retry runs fn with Fibonacci backoff. Errors that describe the job rather
// than the store are returned at once.
func (r *Runner) retry(ctx context.Context, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(r.attempts, retry.NewFibonacci(r.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || errors.IsAny(err, ErrTerminal, ErrNotFound, ErrNotClaimable, ErrConflict) {
			return err
		}
		return retry.RetryableError(err)
	})
}
