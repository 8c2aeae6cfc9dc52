package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
)

type LoggingMiddleware struct {
	logger  types.Logger
	metrics types.MetricsManager
	weight  int
	params  *LoggingParams
}

type LoggingParams struct {
	LogLevel string `json:"log_level"`
	LogBody  bool   `json:"log_body"`
}

func NewLoggingMiddleware(logger types.Logger, metrics types.MetricsManager, config *types.MiddlewareItemConfig) *LoggingMiddleware {
	params := &LoggingParams{LogLevel: "debug"}

	if config.Params != nil {
		if err := utils.UnmarshalConfig(config.Params, params); err != nil {
			logger.Error("Failed to unmarshal logging middleware params", zap.Error(err))
		}
	}

	return &LoggingMiddleware{
		logger:  logger,
		metrics: metrics,
		weight:  config.Weight,
		params:  params,
	}
}

func (l *LoggingMiddleware) Name() string { return "logging" }
func (l *LoggingMiddleware) Weight() int  { return l.weight }

func (l *LoggingMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	start := time.Now()

	next(ctx)

	duration := time.Since(start)
	status := ctx.Response.StatusCode()

	fields := []zap.Field{
		zap.String("method", string(ctx.Method())),
		zap.String("path", string(ctx.Path())),
		zap.Int("status", status),
		zap.Duration("duration", duration),
		zap.String("remote_addr", remoteAddr(ctx)),
	}

	if len(ctx.QueryArgs().QueryString()) > 0 {
		fields = append(fields, zap.ByteString("query", ctx.QueryArgs().QueryString()))
	}

	if l.params.LogBody && len(ctx.Response.Body()) > 0 {
		body := ctx.Response.Body()
		if len(body) > 1000 {
			fields = append(fields, zap.String("response", string(body[:1000])+"..."))
		} else {
			fields = append(fields, zap.ByteString("response", body))
		}
	}

	switch {
	case status >= 500:
		l.logger.Error("Request completed", fields...)
	case status >= 400:
		l.logger.Warn("Request completed", fields...)
	default:
		l.logWithLevel("Request completed", fields...)
	}

	if l.metrics != nil {
		labels := map[string]string{
			"method": string(ctx.Method()),
			"status": strconv.Itoa(status),
		}
		l.metrics.Counter("http_requests_total", labels).Inc()
		l.metrics.Histogram("http_request_duration_seconds",
			[]float64{0.001, 0.01, 0.1, 0.5, 1, 5},
			labels,
		).Observe(duration.Seconds())
	}
}

func (l *LoggingMiddleware) logWithLevel(msg string, fields ...zap.Field) {
	switch l.params.LogLevel {
	case "info":
		l.logger.Info(msg, fields...)
	case "warn":
		l.logger.Warn(msg, fields...)
	default:
		l.logger.Debug(msg, fields...)
	}
}

func remoteAddr(ctx *fasthttp.RequestCtx) string {
	if forwarded := string(ctx.Request.Header.Peek("X-Forwarded-For")); forwarded != "" {
		if comma := strings.Index(forwarded, ","); comma > 0 {
			return strings.TrimSpace(forwarded[:comma])
		}
		return forwarded
	}
	return ctx.RemoteIP().String()
}
