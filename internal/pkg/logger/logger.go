// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var base = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init 初始化全局 Logger，附带服务名字段。
// 每个服务的 main 在启动时调用一次。
func Init(serviceName string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	base = zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回一个与当前链路关联的 Logger。
// 如果 ctx 中存在有效的 Span，会自动附加 trace_id 字段，便于日志与链路互查。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := base
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		l = base.With().Str("trace_id", spanCtx.TraceID().String()).Logger()
	}
	return &l
}
