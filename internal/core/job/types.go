package job

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// State of a job. QUEUED → RUNNING → {DONE | ERROR | CANCELLED}.
type State string

const (
	StateQueued    State = "QUEUED"
	StateRunning   State = "RUNNING"
	StateDone      State = "DONE"
	StateError     State = "ERROR"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether s is a final state. Terminal records are
// never written again.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError || s == StateCancelled
}

// Job is the persisted status record. Only the worker that claimed the job
// writes it after Enqueue.
type Job struct {
	JobID    string  `json:"job_id"`
	State    State   `json:"state"`
	Total    *int    `json:"total,omitempty"`
	Done     int     `json:"done"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
	Project  string  `json:"project,omitempty"`
	Model    string  `json:"model,omitempty"`

	// Fingerprint identifies the spec the record was queued with.
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (j *Job) refreshProgress() {
	switch {
	case j.Total == nil:
		j.Progress = 0
	case *j.Total == 0:
		j.Progress = 1
	default:
		j.Progress = float64(j.Done) / float64(*j.Total)
	}
}

// Spec is what callers enqueue.
type Spec struct {
	JobID        string          `json:"job_id,omitempty"`
	Project      string          `json:"project" validate:"required"`
	Model        string          `json:"model" validate:"required"`
	SystemPrompt string          `json:"system_prompt" validate:"required"`
	Questions    []QuestionLabel `json:"questions" validate:"required,min=1,dive"`
	Tasks        []Task          `json:"tasks" validate:"dive"`
	// LLMTimeoutSeconds bounds each model call; zero means the server default.
	LLMTimeoutSeconds int `json:"llm_timeout_seconds,omitempty" validate:"gte=0"`
}

// taskOverhead covers rendering and delivery of one task.
const taskOverhead = 2 * time.Minute

// Timeout bounds a whole run of the spec: every question of every task may
// take the full per-call LLM timeout. defaultLLM applies when the spec does
// not set its own.
func (s Spec) Timeout(defaultLLM time.Duration) time.Duration {
	perCall := defaultLLM
	if s.LLMTimeoutSeconds > 0 {
		perCall = time.Duration(s.LLMTimeoutSeconds) * time.Second
	}
	perTask := time.Duration(len(s.Questions))*perCall + taskOverhead
	if len(s.Tasks) == 0 {
		return perTask
	}
	return time.Duration(len(s.Tasks)) * perTask
}

func (s Spec) fingerprint() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// QuestionLabel pairs a question for the model with the label its answer
// is stored under.
type QuestionLabel struct {
	Question string `json:"question" validate:"required"`
	Label    string `json:"label" validate:"required"`
}

// Task is one document of a job.
type Task struct {
	ID     string `json:"id" validate:"required"`
	Markup string `json:"markup"`
}

// TaskReport is what executing one task produced, for the job log.
type TaskReport struct {
	TaskID      string
	Spans       int
	Diagnostics int
	Skipped     bool
	Duration    time.Duration
	Lines       []string
}

// CancelOutcome is the answer to RequestCancel.
type CancelOutcome struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	State  State  `json:"state,omitempty"`
}

const (
	CancelRequested       = "cancel_requested"
	CancelAlreadyFinished = "already_finished"
)

// LogPage is one GetLogsSince result.
type LogPage struct {
	JobID string   `json:"job_id"`
	Lines []string `json:"lines"`
	Next  int64    `json:"next"`
}
