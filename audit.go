package authcore

import (
	"io"

	"github.com/nemoserver/authcore/internal/audit"
	"github.com/sirupsen/logrus"
)

// AuditEvent is one security-relevant occurrence emitted by the Engine.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

type NoOpSink = audit.NoOpSink

type ChannelSink = audit.ChannelSink

type JSONWriterSink = audit.JSONWriterSink

type LogSink = audit.LogSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLogSink logs events through logger: Info on success, Warn on failure.
func NewLogSink(logger logrus.FieldLogger) *LogSink {
	return audit.NewLogSink(logger)
}
