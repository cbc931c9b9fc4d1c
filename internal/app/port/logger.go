package port

// Logger is the key-value logging surface consumed by services and stores.
// Arguments alternate keys and values, as with log/slog.
type Logger interface {
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
