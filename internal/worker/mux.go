package worker

import (
	"context"

	"prelabel/internal/logger"

	"github.com/hibiken/asynq"
)

type Mux struct {
	mux *asynq.ServeMux
	log *logger.Logger
}

func NewMux() *Mux {
	m := &Mux{mux: asynq.NewServeMux(), log: logger.New("Worker")}
	m.mux.Use(m.logTask)
	return m
}

func (m *Mux) HandleFunc(t string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(t, h)
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }

// logTask reports handler failures; asynq archives the task since it is
// never retried.
func (m *Mux) logTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		id, _ := asynq.GetTaskID(ctx)
		m.log.LogDebugf("task %s (%s) started", id, t.Type())
		if err := next.ProcessTask(ctx, t); err != nil {
			m.log.LogErrorf("task %s (%s) failed: %v", id, t.Type(), err)
			return err
		}
		return nil
	})
}
