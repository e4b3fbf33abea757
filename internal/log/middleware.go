package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the request logger, or one wrapping slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: ComponentApp}
}

// Middleware puts logger into every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// RequestIDMiddleware tags the context logger with the request ID, when
// there is one.
func RequestIDMiddleware(requestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := requestID(r); id != "" {
				logger := FromContext(r.Context()).With(FieldRequestID, id)
				r = r.WithContext(NewContext(r.Context(), logger))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StatusLevel is Info for success, Warn for client errors and Error for
// server errors.
func StatusLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Access writes the completion record of one request.
func (l *Logger) Access(ctx context.Context, r *http.Request, status int, elapsed time.Duration, extra Attrs) {
	attrs := RequestAttrs(r).
		Add(FieldStatusCode, status).
		Add(FieldDuration, elapsed.Milliseconds())
	l.Log(ctx, StatusLevel(status), "HTTP request completed", append(attrs, extra...)...)
}

// Failure logs err at error level with any extra attributes.
func (l *Logger) Failure(ctx context.Context, msg string, err error, attrs ...any) {
	l.ErrorContext(ctx, msg, Attrs(attrs).Err(err)...)
}
