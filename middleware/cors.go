package middleware

import (
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
)

type CORSMiddleware struct {
	logger types.Logger
	weight int
	params *CORSParams

	allowedMethods string
	allowedHeaders string
	allowAll       bool
}

type CORSParams struct {
	AllowedOrigins []string `json:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers"`
	MaxAge         string   `json:"max_age"`
}

func NewCORSMiddleware(logger types.Logger, config *types.MiddlewareItemConfig) *CORSMiddleware {
	params := &CORSParams{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         "3600",
	}

	if config.Params != nil {
		if err := utils.UnmarshalConfig(config.Params, params); err != nil {
			logger.Error("Failed to unmarshal CORS middleware params", zap.Error(err))
		}
	}

	allowAll := false
	for _, origin := range params.AllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
	}

	return &CORSMiddleware{
		logger:         logger,
		weight:         config.Weight,
		params:         params,
		allowedMethods: strings.Join(params.AllowedMethods, ", "),
		allowedHeaders: strings.Join(params.AllowedHeaders, ", "),
		allowAll:       allowAll,
	}
}

func (c *CORSMiddleware) Name() string { return "cors" }
func (c *CORSMiddleware) Weight() int  { return c.weight }

func (c *CORSMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	origin := string(ctx.Request.Header.Peek("Origin"))

	if origin != "" && c.originAllowed(origin) {
		if c.allowAll {
			ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
		} else {
			ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
			ctx.Response.Header.Set("Vary", "Origin")
		}
		ctx.Response.Header.Set("Access-Control-Allow-Methods", c.allowedMethods)
		ctx.Response.Header.Set("Access-Control-Allow-Headers", c.allowedHeaders)
		ctx.Response.Header.Set("Access-Control-Max-Age", c.params.MaxAge)
	}

	if string(ctx.Method()) == fasthttp.MethodOptions {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}

	next(ctx)
}

func (c *CORSMiddleware) originAllowed(origin string) bool {
	if c.allowAll {
		return true
	}
	for _, allowed := range c.params.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}
