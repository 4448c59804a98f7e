package observability

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/adminkit/pkg/contextkeys"
)

// NewLogger creates a logrus logger. format is "json" or "text"; an
// unknown level falls back to info.
func NewLogger(level, format string, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}

	logger := logrus.New()
	logger.SetOutput(output)

	switch strings.ToLower(format) {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// WithLogger stores a request-scoped entry in the context
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return contextkeys.WithLogger(ctx, entry)
}

// FromContext returns the request-scoped entry stored in ctx, or an entry
// of base carrying the request id, user id and trace ids found in ctx.
func FromContext(ctx context.Context, base *logrus.Logger) *logrus.Entry {
	if entry, ok := ctx.Value(contextkeys.LoggerKey).(*logrus.Entry); ok && entry != nil {
		return withTraceContext(ctx, entry)
	}
	if base == nil {
		base = logrus.StandardLogger()
	}

	fields := logrus.Fields{}
	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	if userID := contextkeys.GetUserID(ctx); userID != "" {
		fields["user_id"] = userID
	}
	if space := contextkeys.GetSpace(ctx); space != "" {
		fields["space"] = space
	}
	return withTraceContext(ctx, base.WithFields(fields))
}

// withTraceContext adds trace and span ids of a recording span
func withTraceContext(ctx context.Context, entry *logrus.Entry) *logrus.Entry {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return entry
	}
	spanCtx := span.SpanContext()
	return entry.WithFields(logrus.Fields{
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	})
}
