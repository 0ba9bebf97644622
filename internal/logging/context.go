package logging

import "context"

type contextKey struct{}

// WithLogger stores a logger in the context. The orchestrator uses this to
// hand each analysis cycle a logger carrying the cycle's report ID, so every
// line emitted downstream can be correlated back to one report.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored in the context, falling back to the
// default logger when none is set.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
