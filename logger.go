package rendercache

// Fields carries structured context for a log line. Common keys are "ns",
// "key", "prefix", "op" and "err".
type Fields map[string]any

// Logger receives the cache's diagnostic output. Adapters for zap, logrus,
// slog and apex/log live under log/. A nil Options.Logger discards everything.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger drops every message.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
