package annotate

import (
	"context"

	"prelabel/internal/core/match"

	"github.com/cockroachdb/errors"
)

// Delivery is everything produced for one task.
type Delivery struct {
	JobID  string       `json:"job_id"`
	TaskID string       `json:"task_id"`
	Model  string       `json:"model_version"`
	Spans  []match.Span `json:"spans"`
	Meta   Meta         `json:"meta"`
}

// Meta travels with the predictions so annotators can see why a label is
// missing.
type Meta struct {
	Answers      []match.Answer     `json:"raw_llm_answers"`
	SystemPrompt string             `json:"system_prompt"`
	Model        string             `json:"model"`
	Diagnostics  []match.Diagnostic `json:"dom_match_diagnostics"`
	// MatchByLabel is null for labels without a usable answer.
	MatchByLabel map[string]*bool   `json:"dom_match_by_label"`
	JobID        string             `json:"job_id"`
	TimingsMS    map[string]float64 `json:"performance,omitempty"`
}

// Sink stores deliveries. Failures are reported, never retried.
type Sink interface {
	Deliver(ctx context.Context, d Delivery) error
}

// Multi delivers to every sink and joins their errors.
type Multi []Sink

func (m Multi) Deliver(ctx context.Context, d Delivery) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
