package middleware

import (
	"runtime/debug"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/types"
)

type RecoveryMiddleware struct {
	logger  types.Logger
	metrics types.MetricsManager
	weight  int
}

func NewRecoveryMiddleware(logger types.Logger, metrics types.MetricsManager, config *types.MiddlewareItemConfig) *RecoveryMiddleware {
	return &RecoveryMiddleware{
		logger:  logger,
		metrics: metrics,
		weight:  config.Weight,
	}
}

func (r *RecoveryMiddleware) Name() string { return "recovery" }
func (r *RecoveryMiddleware) Weight() int  { return r.weight }

func (r *RecoveryMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic in request handler",
				zap.Any("panic", rec),
				zap.String("method", string(ctx.Method())),
				zap.String("path", string(ctx.Path())),
				zap.ByteString("stack", debug.Stack()))

			if r.metrics != nil {
				r.metrics.Counter("http_panics_total", map[string]string{
					"path": string(ctx.Path()),
				}).Inc()
			}

			ctx.Response.Reset()
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"internal server error"}`)
		}
	}()

	next(ctx)
}
