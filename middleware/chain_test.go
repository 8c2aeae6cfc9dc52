package middleware

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/logger"
	"github.com/shorecrew/shorecrew/types"
)

func nopLogger() types.Logger {
	return logger.NewZapWrapper(zap.NewNop())
}

type namedMiddleware struct {
	name   string
	weight int
	trace  *[]string
}

func (m *namedMiddleware) Name() string { return m.name }
func (m *namedMiddleware) Weight() int  { return m.weight }

func (m *namedMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	*m.trace = append(*m.trace, m.name)
	next(ctx)
}

func TestChainExecutesInWeightOrder(t *testing.T) {
	var trace []string

	chain := NewChain()
	require.NoError(t, chain.Register(&namedMiddleware{name: "third", weight: 30, trace: &trace}))
	require.NoError(t, chain.Register(&namedMiddleware{name: "first", weight: 10, trace: &trace}))
	require.NoError(t, chain.Register(&namedMiddleware{name: "second", weight: 20, trace: &trace}))
	chain.Build()

	handler := chain.Wrap(func(ctx *fasthttp.RequestCtx) {
		trace = append(trace, "handler")
	})

	var ctx fasthttp.RequestCtx
	handler(&ctx)

	assert.Equal(t, []string{"first", "second", "third", "handler"}, trace)
	assert.Equal(t, []string{"first", "second", "third"}, chain.Names())
}

func TestChainRejectsDuplicates(t *testing.T) {
	var trace []string

	chain := NewChain()
	require.NoError(t, chain.Register(&namedMiddleware{name: "a", weight: 10, trace: &trace}))

	assert.Error(t, chain.Register(&namedMiddleware{name: "a", weight: 20, trace: &trace}))
	assert.Error(t, chain.Register(&namedMiddleware{name: "b", weight: 10, trace: &trace}))
	assert.Error(t, chain.Register(nil))
}

func TestRecoveryMiddleware(t *testing.T) {
	mw := NewRecoveryMiddleware(nopLogger(), nil, &types.MiddlewareItemConfig{Weight: 10})

	var ctx fasthttp.RequestCtx
	mw.Handle(&ctx, func(ctx *fasthttp.RequestCtx) {
		panic("boom")
	})

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "internal server error")
}

func TestCORSPreflight(t *testing.T) {
	mw := NewCORSMiddleware(nopLogger(), &types.MiddlewareItemConfig{Weight: 30})

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodOptions)
	ctx.Request.Header.Set("Origin", "http://localhost:3000")

	handlerCalled := false
	mw.Handle(&ctx, func(ctx *fasthttp.RequestCtx) {
		handlerCalled = true
	})

	assert.False(t, handlerCalled, "preflight must short-circuit")
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	assert.Equal(t, "*", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
}

func TestCORSRestrictedOrigins(t *testing.T) {
	mw := NewCORSMiddleware(nopLogger(), &types.MiddlewareItemConfig{
		Weight: 30,
		Params: map[string]interface{}{
			"allowed_origins": []interface{}{"http://allowed.example"},
		},
	})

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.Set("Origin", "http://evil.example")
	mw.Handle(&ctx, func(ctx *fasthttp.RequestCtx) {})
	assert.Empty(t, string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))

	var ok fasthttp.RequestCtx
	ok.Request.Header.Set("Origin", "http://allowed.example")
	mw.Handle(&ok, func(ctx *fasthttp.RequestCtx) {})
	assert.Equal(t, "http://allowed.example", string(ok.Response.Header.Peek("Access-Control-Allow-Origin")))
}

func TestCompressionMiddleware(t *testing.T) {
	mw := NewCompressionMiddleware(nopLogger(), &types.MiddlewareItemConfig{Weight: 40})

	payload := strings.Repeat(`{"beach":"north-cove","bags":12}`, 100)

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.Set("Accept-Encoding", "gzip, br")

	mw.Handle(&ctx, func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		ctx.SetBodyString(payload)
	})

	require.Equal(t, "br", string(ctx.Response.Header.ContentEncoding()))

	reader := brotli.NewReader(bytes.NewReader(ctx.Response.Body()))
	decompressed, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, payload, string(decompressed))
}

func TestCompressionSkipsSmallAndUnsupported(t *testing.T) {
	mw := NewCompressionMiddleware(nopLogger(), &types.MiddlewareItemConfig{Weight: 40})

	// Small body stays uncompressed.
	var small fasthttp.RequestCtx
	small.Request.Header.Set("Accept-Encoding", "br")
	mw.Handle(&small, func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		ctx.SetBodyString("{}")
	})
	assert.Empty(t, string(small.Response.Header.ContentEncoding()))

	// No Accept-Encoding, no compression.
	payload := strings.Repeat("x", 4096)
	var plain fasthttp.RequestCtx
	mw.Handle(&plain, func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		ctx.SetBodyString(payload)
	})
	assert.Equal(t, payload, string(plain.Response.Body()))
}

func TestBuildChainFromConfig(t *testing.T) {
	chain, err := BuildChain(nopLogger(), nil, &types.MiddlewaresConfig{
		Enabled:     true,
		Recovery:    &types.MiddlewareItemConfig{Enabled: true, Weight: 10},
		Logging:     &types.MiddlewareItemConfig{Enabled: true, Weight: 20},
		CORS:        &types.MiddlewareItemConfig{Enabled: true, Weight: 30},
		Compression: &types.MiddlewareItemConfig{Enabled: false, Weight: 40},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"recovery", "logging", "cors"}, chain.Names())
}

func TestBuildChainDisabled(t *testing.T) {
	chain, err := BuildChain(nopLogger(), nil, &types.MiddlewaresConfig{Enabled: false})
	require.NoError(t, err)
	assert.Empty(t, chain.Names())
}
