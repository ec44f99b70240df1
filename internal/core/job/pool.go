package job

import (
	"context"

	"prelabel/internal/logger"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed is returned by Push after Stop.
var ErrPoolClosed = errors.New("job pool closed")

// Pool is the in-process queue: a FIFO channel drained by a fixed number
// of workers. It serves QUEUE_BACKEND=local and tests.
type Pool struct {
	runner  *Runner
	workers int
	specs   chan Spec
	done    chan struct{}
	eg      *errgroup.Group
	log     *logger.Logger
}

func NewPool(runner *Runner, workers, backlog int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		runner:  runner,
		workers: workers,
		specs:   make(chan Spec, backlog),
		done:    make(chan struct{}),
		log:     logger.New("JobPool"),
	}
}

// Start launches the workers. They exit when ctx is cancelled or Stop is
// called and the backlog has drained.
func (p *Pool) Start(ctx context.Context) {
	eg, ctx := errgroup.WithContext(ctx)
	p.eg = eg
	for i := 0; i < p.workers; i++ {
		eg.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case spec, ok := <-p.specs:
					if !ok {
						return nil
					}
					if err := p.runner.Run(ctx, &spec); err != nil {
						p.log.LogErrorf("job %s: %v", spec.JobID, err)
					}
				}
			}
		})
	}
	p.log.LogInfof("started %d workers", p.workers)
}

// Push hands spec to the workers, blocking while the backlog is full.
func (p *Pool) Push(ctx context.Context, spec Spec) error {
	select {
	case <-p.done:
		return ErrPoolClosed
	default:
	}
	select {
	case p.specs <- spec:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new work and waits for the workers to return. Workers keep
// draining the backlog until the Start context is cancelled; specs still
// waiting after that are failed with "worker stopped" so that no job stays
// QUEUED. Push must not be called concurrently with Stop.
func (p *Pool) Stop() {
	close(p.done)
	close(p.specs)
	if p.eg != nil {
		_ = p.eg.Wait()
	}
	for spec := range p.specs {
		p.runner.Abandon(context.Background(), &spec)
	}
}
