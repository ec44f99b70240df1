package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a component-scoped zerolog logger.
type Logger struct {
	zl        zerolog.Logger
	component string
}

var levels = map[string]zerolog.Level{
	"development": zerolog.DebugLevel,
	"test":        zerolog.WarnLevel,
	"staging":     zerolog.InfoLevel,
	"production":  zerolog.InfoLevel,
}

// Config controls output and verbosity.
type Config struct {
	AppEnv string
	Out    io.Writer
}

// New creates a logger for component using APP_ENV from the environment.
func New(component string) *Logger {
	return NewWithConfig(component, Config{AppEnv: os.Getenv("APP_ENV")})
}

// NewWithConfig creates a logger for component with an explicit config.
func NewWithConfig(component string, cfg Config) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	production := cfg.AppEnv == "production"

	writer := zerolog.ConsoleWriter{
		Out:     out,
		NoColor: production,
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("[%s] %v", component, i)
		},
		FormatLevel: formatLevel,
	}

	// No timestamp in production, the platform adds one.
	if !production {
		writer.TimeFormat = "2006-01-02 15:04:05"
	}
	ctx := zerolog.New(writer).Level(levelFor(cfg.AppEnv)).With()
	if !production {
		ctx = ctx.Timestamp()
	}

	return &Logger{zl: ctx.Str("component", component).Logger(), component: component}
}

func formatLevel(i interface{}) string {
	level, ok := i.(string)
	if !ok {
		return "???"
	}
	switch level {
	case "debug":
		return "\033[36m[DEBUG]\033[0m"
	case "info":
		return "\033[34m[INFO]\033[0m"
	case "warn":
		return "\033[33m[WARN]\033[0m"
	case "error":
		return "\033[31m[ERROR]\033[0m"
	case "fatal":
		return "\033[35m[FATAL]\033[0m"
	default:
		return fmt.Sprintf("[%s]", level)
	}
}

func levelFor(env string) zerolog.Level {
	if level, ok := levels[env]; ok {
		return level
	}
	return zerolog.DebugLevel
}

// With returns a child logger carrying an extra string field, e.g. a job id.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger(), component: l.component}
}

func (l *Logger) LogInfo(msg string) { l.zl.Info().Msg(msg) }

func (l *Logger) LogSuccessf(format string, v ...interface{}) {
	l.zl.Info().Str("outcome", "success").Msgf(format, v...)
}

func (l *Logger) LogDebugf(format string, v ...interface{}) { l.zl.Debug().Msgf(format, v...) }
func (l *Logger) LogInfof(format string, v ...interface{})  { l.zl.Info().Msgf(format, v...) }
func (l *Logger) LogWarnf(format string, v ...interface{})  { l.zl.Warn().Msgf(format, v...) }
func (l *Logger) LogErrorf(format string, v ...interface{}) { l.zl.Error().Msgf(format, v...) }
