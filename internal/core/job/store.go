package job

import (
	"context"
	"encoding/json"
	"time"

	rds "prelabel/internal/platform/redis"

	"github.com/cockroachdb/errors"
)

// Store persists job status, the job log and the cancel flag in Redis.
//
// The status record is a single JSON value that is always replaced whole
// through a compare-and-swap transaction, so a concurrent reader sees
// either the previous or the next record. The log is a Redis list whose
// indexes double as resumable cursors. The cancel flag lives under its own
// key so that requesting cancellation never touches the status record
// owned by the worker.
type Store struct {
	redis     *rds.Service
	retention time.Duration
}

func NewStore(redis *rds.Service, retention time.Duration) *Store {
	return &Store{redis: redis, retention: retention}
}

func statusKey(id string) string { return "prelabel:job:" + id }
func logsKey(id string) string   { return "prelabel:job:" + id + ":logs" }
func cancelKey(id string) string { return "prelabel:job:" + id + ":cancel" }

func decode(b []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, errors.Wrap(err, "decode job record")
	}
	return &j, nil
}

// Create writes a fresh QUEUED record. An existing record is only replaced
// while it is still QUEUED and was queued with the same spec; its log and
// any stale cancel flag are cleared with it.
func (s *Store) Create(ctx context.Context, j Job) error {
	j.refreshProgress()
	return s.redis.Swap(ctx, statusKey(j.JobID), func(current []byte) (*rds.Write, error) {
		if current != nil {
			prev, err := decode(current)
			if err != nil {
				return nil, err
			}
			if prev.State != StateQueued {
				return nil, errors.Wrapf(ErrConflict, "job %s is %s", j.JobID, prev.State)
			}
			if prev.Fingerprint != j.Fingerprint {
				return nil, errors.Wrapf(ErrConflict, "job %s is queued with a different spec", j.JobID)
			}
			j.CreatedAt = prev.CreatedAt
		}
		b, err := json.Marshal(j)
		if err != nil {
			return nil, err
		}
		return &rds.Write{Value: b, Delete: []string{logsKey(j.JobID), cancelKey(j.JobID)}}, nil
	})
}

// Get returns the last committed record.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	b, err := s.redis.Get(ctx, statusKey(id))
	if err != nil {
		return nil, errors.Wrapf(err, "read job %s", id)
	}
	if b == nil {
		return nil, errors.Wrapf(ErrNotFound, "job %s", id)
	}
	return decode(b)
}

// Claim moves a QUEUED job to RUNNING and returns the claimed record. Only
// one caller can win the claim for a given enqueue.
func (s *Store) Claim(ctx context.Context, id string) (*Job, error) {
	var claimed *Job
	err := s.redis.Swap(ctx, statusKey(id), func(current []byte) (*rds.Write, error) {
		if current == nil {
			return nil, errors.Wrapf(ErrNotFound, "job %s", id)
		}
		j, err := decode(current)
		if err != nil {
			return nil, err
		}
		if j.State != StateQueued {
			return nil, errors.Wrapf(ErrNotClaimable, "job %s is %s", id, j.State)
		}
		j.State = StateRunning
		j.UpdatedAt = time.Now().UTC()
		j.refreshProgress()
		b, err := json.Marshal(j)
		if err != nil {
			return nil, err
		}
		claimed = j
		return &rds.Write{Value: b}, nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Commit replaces the record with j. Records in a terminal state are
// immutable; reaching one starts the retention window for the record, its
// log and its cancel flag.
func (s *Store) Commit(ctx context.Context, j *Job) error {
	j.UpdatedAt = time.Now().UTC()
	j.refreshProgress()
	return s.redis.Swap(ctx, statusKey(j.JobID), func(current []byte) (*rds.Write, error) {
		if current == nil {
			return nil, errors.Wrapf(ErrNotFound, "job %s", j.JobID)
		}
		prev, err := decode(current)
		if err != nil {
			return nil, err
		}
		if prev.State.Terminal() {
			return nil, errors.Wrapf(ErrTerminal, "job %s is %s", j.JobID, prev.State)
		}
		b, err := json.Marshal(j)
		if err != nil {
			return nil, err
		}
		w := &rds.Write{Value: b}
		if j.State.Terminal() {
			w.TTL = s.retention
			w.Expire = []string{logsKey(j.JobID), cancelKey(j.JobID)}
		}
		return w, nil
	})
}

// AppendLog adds one line to the job log.
func (s *Store) AppendLog(ctx context.Context, id, line string) error {
	_, err := s.redis.Append(ctx, logsKey(id), line)
	return errors.Wrapf(err, "append log for job %s", id)
}

// LogsSince returns the lines appended at or after cursor and the cursor
// to use next time.
func (s *Store) LogsSince(ctx context.Context, id string, cursor int64) ([]string, int64, error) {
	if cursor < 0 {
		cursor = 0
	}
	lines, err := s.redis.Range(ctx, logsKey(id), cursor)
	if err != nil {
		return nil, cursor, errors.Wrapf(err, "read log for job %s", id)
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, cursor + int64(len(lines)), nil
}

// RequestCancel raises the cancel flag polled by the owning worker.
func (s *Store) RequestCancel(ctx context.Context, id string) error {
	return errors.Wrapf(s.redis.SetFlag(ctx, cancelKey(id)), "flag cancel for job %s", id)
}

// CancelRequested reports whether the cancel flag is raised.
func (s *Store) CancelRequested(ctx context.Context, id string) (bool, error) {
	ok, err := s.redis.HasFlag(ctx, cancelKey(id))
	return ok, errors.Wrapf(err, "read cancel flag for job %s", id)
}
