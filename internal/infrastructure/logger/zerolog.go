package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"barcode-scanner/internal/application"
)

// Config параметры логирования
type Config struct {
	Level      string // trace, debug, info, warn, error
	Format     string // "console" или "json"
	TimeFormat string
}

// DefaultConfig уровень info, вывод для консоли
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.RFC3339,
	}
}

// ZerologLogger реализация application.Logger поверх zerolog
type ZerologLogger struct {
	log zerolog.Logger
}

// New создает логгер, пишущий в stderr
func New(cfg Config) *ZerologLogger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter создает логгер с произвольным выводом
func NewWithWriter(cfg Config, out io.Writer) *ZerologLogger {
	if cfg.Format != "json" {
		timeFormat := cfg.TimeFormat
		if timeFormat == "" {
			timeFormat = time.RFC3339
		}
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	return &ZerologLogger{
		log: zerolog.New(out).
			Level(ParseLevel(cfg.Level)).
			With().
			Timestamp().
			Logger(),
	}
}

// ParseLevel переводит строковый уровень в zerolog; неизвестный уровень - info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithField возвращает дочерний логгер с дополнительным полем
func (l *ZerologLogger) WithField(key, value string) application.Logger {
	return &ZerologLogger{log: l.log.With().Str(key, value).Logger()}
}

// Info логирует информационное сообщение
func (l *ZerologLogger) Info(msg string, args ...interface{}) {
	l.log.Info().Msg(format(msg, args))
}

// Warn логирует предупреждение
func (l *ZerologLogger) Warn(msg string, args ...interface{}) {
	l.log.Warn().Msg(format(msg, args))
}

// Error логирует сообщение об ошибке
func (l *ZerologLogger) Error(msg string, args ...interface{}) {
	l.log.Error().Msg(format(msg, args))
}

// Debug логирует отладочное сообщение
func (l *ZerologLogger) Debug(msg string, args ...interface{}) {
	if l.log.GetLevel() > zerolog.DebugLevel {
		return
	}
	l.log.Debug().Msg(format(msg, args))
}

func format(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
