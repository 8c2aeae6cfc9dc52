package middleware

import (
	"bytes"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
)

const (
	defaultCompressionLevel     = 6
	defaultCompressionThreshold = 1024
	minCompressionRatio         = 0.05
)

var encodingBrotli = []byte("br")

// CompressionMiddleware brotli-compresses eligible responses.
type CompressionMiddleware struct {
	logger     types.Logger
	weight     int
	params     *CompressionParams
	writerPool sync.Pool
	bufferPool sync.Pool
}

type CompressionParams struct {
	Level        int      `json:"level"`
	Threshold    int      `json:"threshold"`
	AllowedTypes []string `json:"allowed_types"`
}

func NewCompressionMiddleware(logger types.Logger, config *types.MiddlewareItemConfig) *CompressionMiddleware {
	params := &CompressionParams{
		Level:     defaultCompressionLevel,
		Threshold: defaultCompressionThreshold,
		AllowedTypes: []string{
			"application/json",
			"text/*",
		},
	}

	if config.Params != nil {
		if err := utils.UnmarshalConfig(config.Params, params); err != nil {
			logger.Error("Failed to unmarshal compression middleware params", zap.Error(err))
		}
	}

	if params.Level < brotli.BestSpeed || params.Level > brotli.BestCompression {
		params.Level = defaultCompressionLevel
	}
	if params.Threshold < 0 {
		params.Threshold = defaultCompressionThreshold
	}

	cm := &CompressionMiddleware{
		logger: logger,
		weight: config.Weight,
		params: params,
	}

	cm.writerPool = sync.Pool{
		New: func() interface{} {
			return brotli.NewWriterLevel(nil, params.Level)
		},
	}
	cm.bufferPool = sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 4096))
		},
	}

	return cm
}

func (c *CompressionMiddleware) Name() string { return "compression" }
func (c *CompressionMiddleware) Weight() int  { return c.weight }

func (c *CompressionMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	acceptEncoding := ctx.Request.Header.Peek("Accept-Encoding")

	next(ctx)

	if !bytes.Contains(acceptEncoding, encodingBrotli) {
		return
	}
	if len(ctx.Response.Header.ContentEncoding()) > 0 {
		return
	}
	if !c.shouldCompress(ctx.Response.Header.ContentType()) {
		return
	}

	body := ctx.Response.Body()
	if len(body) < c.params.Threshold {
		return
	}

	compressed, err := c.compress(body)
	if err != nil {
		c.logger.Warn("Compression failed, serving uncompressed", zap.Error(err))
		return
	}

	// Not worth the Content-Encoding header if the gain is negligible.
	if 1.0-float64(len(compressed))/float64(len(body)) < minCompressionRatio {
		return
	}

	ctx.Response.Header.SetContentEncoding("br")
	ctx.Response.Header.Add("Vary", "Accept-Encoding")
	ctx.Response.SetBody(compressed)
}

func (c *CompressionMiddleware) shouldCompress(contentType []byte) bool {
	ct := string(contentType)
	if semicolon := strings.Index(ct, ";"); semicolon != -1 {
		ct = ct[:semicolon]
	}
	ct = strings.TrimSpace(strings.ToLower(ct))

	for _, allowed := range c.params.AllowedTypes {
		if allowed == ct {
			return true
		}
		if strings.HasSuffix(allowed, "*") && strings.HasPrefix(ct, strings.TrimSuffix(allowed, "*")) {
			return true
		}
	}
	return false
}

func (c *CompressionMiddleware) compress(data []byte) ([]byte, error) {
	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	writer := c.writerPool.Get().(*brotli.Writer)
	writer.Reset(buf)
	defer func() {
		writer.Reset(nil)
		c.writerPool.Put(writer)
	}()

	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return append([]byte(nil), buf.Bytes()...), nil
}
