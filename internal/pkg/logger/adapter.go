package logger

import "portfolio_aggregator/internal/app/port"

// slogAdapter implements port.Logger on top of the package-level functions,
// so services never depend on the concrete backend.
type slogAdapter struct {
	args []any
}

// NewSlogAdapter creates a port.Logger backed by the global slog logger.
func NewSlogAdapter(args ...any) port.Logger {
	return &slogAdapter{args: args}
}

func (a *slogAdapter) with(args []any) []any {
	if len(a.args) == 0 {
		return args
	}
	return append(append(make([]any, 0, len(a.args)+len(args)), a.args...), args...)
}

func (a *slogAdapter) Info(msg string, args ...any) {
	Info(msg, a.with(args)...)
}

func (a *slogAdapter) Debug(msg string, args ...any) {
	Debug(msg, a.with(args)...)
}

func (a *slogAdapter) Warn(msg string, args ...any) {
	Warn(msg, a.with(args)...)
}

func (a *slogAdapter) Error(msg string, args ...any) {
	Error(msg, a.with(args)...)
}

// Nop returns a port.Logger that discards everything.
func Nop() port.Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
