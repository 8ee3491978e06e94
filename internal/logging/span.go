package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const spanIDKey ctxKey = "spanID"

// Span represents a logical unit of work within a request, such as a
// multi-file transfer or a deletion cascade.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
}

// StartSpan derives a child span from the provided context, enriching the
// logger with the span metadata. It returns the derived context and the span.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	parentSpanID, _ := ctx.Value(spanIDKey).(string)
	spanID := uuid.NewString()

	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parentSpanID != "" {
		logger = logger.With(slog.String("parent_span_id", parentSpanID))
	}

	ctx = WithLogger(ctx, logger)
	ctx = context.WithValue(ctx, spanIDKey, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// End finalizes the span and emits a completion log entry.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.logger.Info("span completed", slog.Duration("duration", time.Since(s.start)))
}

// Fail finalizes the span recording the error that ended it.
func (s *Span) Fail(err error) {
	if s == nil {
		return
	}
	s.logger.Error("span failed",
		slog.Duration("duration", time.Since(s.start)),
		slog.String("error", err.Error()),
	)
}
