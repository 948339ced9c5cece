package obfsrelay

// Logger is the logging capability Proxy needs. Implementations are
// expected to support the fluent Bind* chain the supervisor uses to attach
// context (stream id, ip, dc) before emitting a line, e.g.
// logger.BindStr("ip", ip).BindInt("dc", dc).Info("connected").
//
// No implementation may ever be handed a user secret or key material: the
// supervisor never binds or logs one.
type Logger interface {
	BindStr(key, value string) Logger
	BindInt(key string, value int) Logger

	Debug(msg string)
	Info(msg string)
	Warning(msg string)
	InfoError(msg string, err error)
	WarningError(msg string, err error)
}

// NoopLogger discards everything. It is the default when no Logger is
// configured.
type NoopLogger struct{}

func (n NoopLogger) BindStr(string, string) Logger { return n }
func (n NoopLogger) BindInt(string, int) Logger    { return n }
func (NoopLogger) Debug(string)                    {}
func (NoopLogger) Info(string)                     {}
func (NoopLogger) Warning(string)                  {}
func (NoopLogger) InfoError(string, error)         {}
func (NoopLogger) WarningError(string, error)      {}
