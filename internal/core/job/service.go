package job

import (
	"context"
	"fmt"
	"time"

	"prelabel/internal/logger"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Service is the job API used by the HTTP handlers.
type Service struct {
	store    *Store
	queue    Queue
	validate *validator.Validate
	log      *logger.Logger
}

func NewService(store *Store, queue Queue) *Service {
	return &Service{store: store, queue: queue, validate: validator.New(), log: logger.New("JobService")}
}

// Enqueue validates spec, records the job as QUEUED and pushes it onto the
// queue. An invalid spec creates nothing.
func (s *Service) Enqueue(ctx context.Context, spec Spec) (string, error) {
	if err := s.validate.Struct(spec); err != nil {
		return "", errors.Mark(errors.Wrap(err, "invalid job spec"), ErrValidation)
	}
	if spec.JobID == "" {
		spec.JobID = uuid.New().String()
	}

	fingerprint, err := spec.fingerprint()
	if err != nil {
		return "", errors.Wrap(err, "fingerprint job spec")
	}

	now := time.Now().UTC()
	j := Job{
		JobID:       spec.JobID,
		State:       StateQueued,
		Project:     spec.Project,
		Model:       spec.Model,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, j); err != nil {
		return "", err
	}
	log := s.log.With("job_id", j.JobID)
	if err := s.store.AppendLog(ctx, j.JobID, fmt.Sprintf("queued: %d tasks", len(spec.Tasks))); err != nil {
		log.LogWarnf("%v", err)
	}

	if err := s.queue.Push(ctx, spec); err != nil {
		log.LogErrorf("enqueue failed: %v", err)
		j.State = StateError
		j.Message = "enqueue failed: " + err.Error()
		if cerr := s.store.Commit(ctx, &j); cerr != nil {
			log.LogErrorf("%v", cerr)
		}
		return "", errors.Wrapf(err, "enqueue job %s", j.JobID)
	}
	log.LogInfof("enqueued for project %s with %d tasks", j.Project, len(spec.Tasks))
	return j.JobID, nil
}

// GetStatus returns the last committed snapshot of the job.
func (s *Service) GetStatus(ctx context.Context, jobID string) (*Job, error) {
	return s.store.Get(ctx, jobID)
}

// GetLogsSince returns log lines from cursor on. next is cursor plus the
// number of lines returned; a negative cursor reads from the start.
func (s *Service) GetLogsSince(ctx context.Context, jobID string, cursor int64) (*LogPage, error) {
	if _, err := s.store.Get(ctx, jobID); err != nil {
		return nil, err
	}
	lines, next, err := s.store.LogsSince(ctx, jobID, cursor)
	if err != nil {
		return nil, err
	}
	return &LogPage{JobID: jobID, Lines: lines, Next: next}, nil
}

// RequestCancel flags a live job for cancellation. The worker acts on the
// flag at its next task boundary; a finished job is left as it is.
func (s *Service) RequestCancel(ctx context.Context, jobID string) (*CancelOutcome, error) {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.State.Terminal() {
		return &CancelOutcome{JobID: jobID, Status: CancelAlreadyFinished, State: j.State}, nil
	}
	if err := s.store.RequestCancel(ctx, jobID); err != nil {
		return nil, err
	}
	log := s.log.With("job_id", jobID)
	if err := s.store.AppendLog(ctx, jobID, "cancel requested"); err != nil {
		log.LogWarnf("%v", err)
	}
	log.LogInfof("cancel requested")
	return &CancelOutcome{JobID: jobID, Status: CancelRequested, State: j.State}, nil
}
