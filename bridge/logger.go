package bridge

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSink allows the host application to receive boundary log entries.
type LogSink interface {
	Log(level string, message string)
}

// TraceLevel sits below zap's Debug so level 4 stays distinguishable.
const TraceLevel = zapcore.DebugLevel - 1

// logLevelFromCode maps the C log level (0=ERROR .. 4=TRACE).
func logLevelFromCode(code int) (zapcore.Level, bool) {
	switch code {
	case 0:
		return zapcore.ErrorLevel, true
	case 1:
		return zapcore.WarnLevel, true
	case 2:
		return zapcore.InfoLevel, true
	case 3:
		return zapcore.DebugLevel, true
	case 4:
		return TraceLevel, true
	}
	return 0, false
}

func levelName(l zapcore.Level) string {
	if l == TraceLevel {
		return "trace"
	}
	return l.String()
}

// newLogger builds the boundary logger. A nil sink writes console-encoded
// lines to stderr.
func newLogger(sink LogSink, level zap.AtomicLevel) *zap.Logger {
	if sink == nil {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(strings.ToUpper(levelName(l)))
		}
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)
		return zap.New(core).Named("nyx.mobile")
	}
	core := &sinkCore{sink: sink, level: level}
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Named("nyx.mobile")
}

type sinkCore struct {
	sink   LogSink
	level  zapcore.LevelEnabler
	fields []zapcore.Field
}

func (c *sinkCore) Enabled(level zapcore.Level) bool {
	return c.level.Enabled(level)
}

func (c *sinkCore) With(fields []zapcore.Field) zapcore.Core {
	base := make([]zapcore.Field, len(c.fields), len(c.fields)+len(fields))
	copy(base, c.fields)
	base = append(base, fields...)
	return &sinkCore{
		sink:   c.sink,
		level:  c.level,
		fields: base,
	}
}

func (c *sinkCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *sinkCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(enc)
	}
	for _, field := range fields {
		field.AddTo(enc)
	}

	payload := strings.TrimSpace(ent.Message)
	if payload == "" {
		payload = levelName(ent.Level)
	}
	if len(enc.Fields) > 0 {
		payload += " " + formatFields(enc.Fields)
	}

	c.sink.Log(levelName(ent.Level), payload)
	return nil
}

func (c *sinkCore) Sync() error { return nil }

func formatFields(values map[string]interface{}) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString("[")
	for i, key := range keys {
		if i > 0 {
			builder.WriteString(" ")
		}
		builder.WriteString(key)
		builder.WriteString("=")
		builder.WriteString(formatValue(values[key]))
	}
	builder.WriteString("]")
	return builder.String()
}

func formatValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
