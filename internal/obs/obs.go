package obs

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type ctxKey int

const keyRID ctxKey = 0

// SetupLogger builds the process-wide zerolog.Logger at the given level,
// writing structured JSON to stdout with RFC3339Nano timestamps. level is
// one of zerolog's names ("debug", "info", "warn", "error"); an unknown
// value falls back to info rather than failing startup.
func SetupLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

// RequestID returns middleware that generates a request id, adds it to
// the request's logger as req_id and sets it as the X-Request-ID response
// header. An X-Request-ID header on the incoming request is not read.
func RequestID() func(http.Handler) http.Handler {
	return hlog.RequestIDHandler("req_id", "X-Request-ID")
}

// Logger returns middleware that logs one access-log line per HTTP
// request, with method, path, status, size, and duration.
func Logger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return hlog.NewHandler(logger)(
			hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
				hlog.FromRequest(r).Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Int("status", status).
					Int("size", size).
					Dur("dur", duration).
					Msg("req")
			})(
				hlog.UserAgentHandler("ua")(
					hlog.RefererHandler("referer")(
						hlog.RequestIDHandler("req_id", "X-Request-ID")(next),
					),
				),
			),
		)
	}
}

func WithReqID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRID, id)
}

func ReqIDFrom(ctx context.Context) (string, bool) {
	v := ctx.Value(keyRID)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SetupTracing installs a global TracerProvider. When enabled is false it
// installs the no-op provider, which costs nothing per span on the hot
// path (no allocation, no exporter call) — the same "free when off"
// posture spec §9 requires of the top-denied tracker. When enabled it
// installs an SDK provider exporting to stdout, sufficient for local
// inspection without pulling in a collector dependency.
//
// The returned shutdown func flushes and releases exporter resources; call
// it during graceful shutdown.
func SetupTracing(enabled bool) (shutdown func(context.Context) error, err error) {
	if !enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the named tracer from the globally installed provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
