package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"
)

// StyledLogger wraps slog.Logger with light pterm styling for the few places
// that print operator-facing values (origins, counts) on the terminal. All
// styling is stripped again before records reach the JSON/file handlers.
type StyledLogger struct {
	logger *slog.Logger
}

func NewStyledLogger(logger *slog.Logger) *StyledLogger {
	return &StyledLogger{logger: logger}
}

func (sl *StyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *StyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *StyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *StyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *StyledLogger) InfoWithCount(msg string, count int, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.NewStyle(pterm.FgLightMagenta).Sprint("(", count, ")"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) InfoWithOrigin(msg string, origin string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.NewStyle(pterm.FgCyan).Sprint(origin))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) WarnWithOrigin(msg string, origin string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.NewStyle(pterm.FgCyan).Sprint(origin))
	sl.logger.Warn(styledMsg, args...)
}

func (sl *StyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{logger: sl.logger.With(args...)}
}
