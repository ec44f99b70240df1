package job

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrValidation marks a malformed spec. No job is created.
	ErrValidation = errors.New("invalid job spec")
	ErrNotFound   = errors.New("job not found")
	// ErrConflict is returned when re-enqueueing a job that already left
	// the queue.
	ErrConflict = errors.New("job already started")
	// ErrTerminal rejects writes to a job in a final state.
	ErrTerminal = errors.New("job already finished")
	// ErrNotClaimable means another worker owns the job or it is no
	// longer queued.
	ErrNotClaimable = errors.New("job not claimable")
)
