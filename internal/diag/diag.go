// Package diag routes captured exception messages to observers: a zap
// sink for logs and a websocket broadcaster for live tooling.
package diag

import (
	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/internal/core"
)

// NewLogSink returns a message listener that logs each message at warn
// level with its location and stack.
func NewLogSink(l *zap.Logger) func(*core.Message) {
	return func(m *core.Message) {
		if m == nil {
			return
		}
		fields := []zap.Field{
			zap.String("script", m.ScriptName),
			zap.Int("line", m.Line),
			zap.Int("column", m.Column),
		}
		if m.SourceLine != "" {
			fields = append(fields, zap.String("source", m.SourceLine))
		}
		if len(m.Frames) > 0 {
			fields = append(fields, zap.String("stack", m.StackTrace()))
		}
		l.Warn(m.Text, fields...)
	}
}
