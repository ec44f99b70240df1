package prelabel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"prelabel/internal/core/annotate"
	"prelabel/internal/core/job"
	"prelabel/internal/core/match"
	"prelabel/internal/core/render"
	"prelabel/internal/logger"
	"prelabel/internal/platform/eino"
	"prelabel/internal/utils/markdown"

	"github.com/cockroachdb/errors"
)

// ErrRender marks a task whose markup could not be rendered. It fails the
// whole job.
var ErrRender = errors.New("render failed")

// Asker answers one question about one document.
type Asker interface {
	Ask(ctx context.Context, req eino.AskRequest) eino.Reply
}

const (
	TextFormatPlain    = "text"
	TextFormatMarkdown = "markdown"
)

// Service runs the per-task pipeline: render, ask, match, deliver.
type Service struct {
	renderer   render.Renderer
	llm        Asker
	sink       annotate.Sink
	textFormat string
	log        *logger.Logger
}

// NewService wires the pipeline. sink may be nil.
func NewService(renderer render.Renderer, llm Asker, sink annotate.Sink, textFormat string) *Service {
	return &Service{renderer: renderer, llm: llm, sink: sink, textFormat: textFormat, log: logger.New("Prelabel")}
}

func (s *Service) promptText(markup string) string {
	if s.textFormat == TextFormatMarkdown {
		return markdown.ConvertHTMLToMarkdown(markup)
	}
	return markdown.PlainText(markup)
}

// ExecuteTask implements job.TaskExecutor. Only a render failure is
// returned as an error; model and delivery problems are written to the
// report and the task still counts as done.
func (s *Service) ExecuteTask(ctx context.Context, spec *job.Spec, task job.Task) (*job.TaskReport, error) {
	start := time.Now()
	report := &job.TaskReport{TaskID: task.ID}
	logf := func(format string, args ...any) {
		report.Lines = append(report.Lines, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(task.Markup) == "" {
		report.Skipped = true
		logf("[WARN] task %s: no markup, skipped", task.ID)
		return report, nil
	}

	t := time.Now()
	nodes, err := s.renderer.Render(ctx, task.Markup)
	if err != nil {
		logf("[ERROR] task %s: render failed: %v", task.ID, err)
		return report, errors.Mark(errors.Wrapf(err, "render task %s", task.ID), ErrRender)
	}
	blocks := render.Blocks(nodes)
	renderTime := time.Since(t)

	t = time.Now()
	text := s.promptText(task.Markup)
	timeout := time.Duration(spec.LLMTimeoutSeconds) * time.Second
	answers := make([]match.Answer, 0, len(spec.Questions))
	for _, q := range spec.Questions {
		reply := s.llm.Ask(ctx, eino.AskRequest{
			Model:        spec.Model,
			SystemPrompt: spec.SystemPrompt,
			Question:     q.Question,
			Text:         text,
			Timeout:      timeout,
		})
		answers = append(answers, match.Answer{
			Question: q.Question,
			Label:    q.Label,
			Text:     reply.Text,
			Status:   match.AnswerStatus(reply.Status),
			Error:    reply.Error,
		})
		if reply.Status == eino.StatusOK {
			logf("[LLM] task %s %s: ok in %s", task.ID, q.Label, reply.Duration.Round(time.Millisecond))
		} else {
			logf("[LLM] task %s %s: %s after %s: %s", task.ID, q.Label, reply.Status, reply.Duration.Round(time.Millisecond), reply.Error)
		}
	}
	llmTime := time.Since(t)

	t = time.Now()
	spans, diags := match.Match(blocks, answers)
	for _, d := range diags {
		if d.NodeID != "" {
			logf("[DIAG] task %s %s: %s at %s", task.ID, d.Label, d.Reason, d.NodeID)
		} else {
			logf("[DIAG] task %s %s: %s", task.ID, d.Label, d.Reason)
		}
	}
	matchTime := time.Since(t)
	report.Spans = len(spans)
	report.Diagnostics = len(diags)

	t = time.Now()
	if s.sink != nil {
		d := annotate.Delivery{
			JobID:  spec.JobID,
			TaskID: task.ID,
			Model:  spec.Model,
			Spans:  spans,
			Meta: annotate.Meta{
				Answers:      answers,
				SystemPrompt: spec.SystemPrompt,
				Model:        spec.Model,
				Diagnostics:  diags,
				MatchByLabel: matchByLabel(answers, spans),
				JobID:        spec.JobID,
				TimingsMS: map[string]float64{
					"render": millis(renderTime),
					"llm":    millis(llmTime),
					"match":  millis(matchTime),
				},
			},
		}
		if err := s.sink.Deliver(ctx, d); err != nil {
			s.log.LogWarnf("task %s: delivery failed: %v", task.ID, err)
			logf("[WARN] task %s: delivery failed: %v", task.ID, err)
		}
	}
	deliverTime := time.Since(t)

	report.Duration = time.Since(start)
	logf("[TIME] task %s: render=%s llm=%s match=%s deliver=%s total=%s spans=%d diagnostics=%d",
		task.ID, renderTime.Round(time.Millisecond), llmTime.Round(time.Millisecond),
		matchTime.Round(time.Millisecond), deliverTime.Round(time.Millisecond),
		report.Duration.Round(time.Millisecond), report.Spans, report.Diagnostics)
	return report, nil
}

// matchByLabel is nil for labels without a usable answer, otherwise
// whether a span was placed.
func matchByLabel(answers []match.Answer, spans []match.Span) map[string]*bool {
	placed := map[string]bool{}
	for _, s := range spans {
		placed[s.Label] = true
	}
	out := make(map[string]*bool, len(answers))
	for _, a := range answers {
		if !a.Matchable() {
			if _, ok := out[a.Label]; !ok {
				out[a.Label] = nil
			}
			continue
		}
		ok := placed[a.Label]
		out[a.Label] = &ok
	}
	return out
}

func millis(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
