package eino

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"prelabel/internal/logger"
	"prelabel/prompts"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	gemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"
)

// Config represents the configuration for Eino LLM integration
type Config struct {
	Provider string `json:"provider"` // only "gemini" for now
	APIKey   string `json:"api_key"`
	// Timeout bounds a call when the request does not set one.
	Timeout time.Duration `json:"timeout"`
	// RequestsPerMinute caps calls across all workers; zero disables the cap.
	RequestsPerMinute int `json:"requests_per_minute"`
}

// Status of a single Ask.
const (
	StatusOK          = "ok"
	StatusTimeout     = "timeout"
	StatusError       = "error"
	StatusUnavailable = "unavailable"
)

// AskRequest is one question about one document.
type AskRequest struct {
	Model        string
	SystemPrompt string
	Question     string
	Text         string
	Timeout      time.Duration
}

// Reply is the outcome of Ask. Text is nil when the model gave no answer.
type Reply struct {
	Text     *string
	Status   string
	Error    string
	Duration time.Duration
}

// Service asks questions through Eino chat models. Models are created
// lazily per model name and reused.
type Service struct {
	config   Config
	template prompt.ChatTemplate
	limiter  *rate.Limiter
	log      *logger.Logger

	mu     sync.Mutex
	models map[string]model.BaseChatModel
	build  func(ctx context.Context, name string) (model.BaseChatModel, error)
}

func newService(config Config) *Service {
	s := &Service{
		config:   config,
		template: prompts.Prelabel(),
		log:      logger.New("LLM"),
		models:   map[string]model.BaseChatModel{},
	}
	if config.RequestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)
	}
	return s
}

// NewService creates a new Eino service instance with proper provider initialization.
// Without an API key every Ask reports the model as unavailable.
func NewService(config Config) (*Service, error) {
	s := newService(config)
	if config.APIKey == "" {
		s.log.LogWarnf("no API key for provider %s; answers will be unavailable", config.Provider)
		return s, nil
	}
	switch strings.ToLower(config.Provider) {
	case "gemini":
		client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey:  config.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Gemini client")
		}
		s.build = func(ctx context.Context, name string) (model.BaseChatModel, error) {
			return gemini.NewChatModel(ctx, &gemini.Config{Client: client, Model: name})
		}
	default:
		return nil, fmt.Errorf("unsupported provider: %s. Supported: gemini", config.Provider)
	}
	return s, nil
}

// NewServiceWithModel answers every model name with chatModel.
func NewServiceWithModel(config Config, chatModel model.BaseChatModel) *Service {
	s := newService(config)
	s.build = func(context.Context, string) (model.BaseChatModel, error) { return chatModel, nil }
	return s
}

func (s *Service) chatModel(ctx context.Context, name string) (model.BaseChatModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.models[name]; ok {
		return m, nil
	}
	if s.build == nil || name == "" {
		return nil, errors.New("no model configured")
	}
	m, err := s.build(ctx, name)
	if err != nil {
		return nil, err
	}
	s.models[name] = m
	return m, nil
}

// Warm creates the chat model for name ahead of the first job.
func (s *Service) Warm(ctx context.Context, name string) error {
	_, err := s.chatModel(ctx, name)
	return err
}

// Ask sends one question and never returns an error: every failure is
// folded into the reply status. Calls are not retried.
func (s *Service) Ask(ctx context.Context, req AskRequest) Reply {
	start := time.Now()
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.config.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reply := s.ask(ctx, req)
	reply.Duration = time.Since(start)
	if reply.Status != StatusOK {
		s.log.LogWarnf("model %s: %s (%s)", req.Model, reply.Status, reply.Error)
	}
	return reply
}

func (s *Service) ask(ctx context.Context, req AskRequest) Reply {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return Reply{Status: StatusTimeout, Error: "rate limit wait: " + err.Error()}
		}
	}
	cm, err := s.chatModel(ctx, req.Model)
	if err != nil {
		return Reply{Status: StatusUnavailable, Error: err.Error()}
	}
	messages, err := s.template.Format(ctx, map[string]any{
		"system_prompt": req.SystemPrompt,
		"question":      req.Question,
		"text":          req.Text,
	})
	if err != nil {
		return Reply{Status: StatusError, Error: err.Error()}
	}
	resp, err := cm.Generate(ctx, messages, model.WithTemperature(0))
	if err != nil {
		return classify(ctx, err)
	}
	if resp == nil {
		return Reply{Status: StatusOK}
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return Reply{Status: StatusOK}
	}
	return Reply{Text: &text, Status: StatusOK}
}

func classify(ctx context.Context, err error) Reply {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Reply{Status: StatusTimeout, Error: "timeout"}
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 404 {
		return Reply{Status: StatusUnavailable, Error: apiErr.Message}
	}
	return Reply{Status: StatusError, Error: err.Error()}
}
