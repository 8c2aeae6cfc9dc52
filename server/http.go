// Package server hosts the HTTP API on fasthttp.
package server

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shorecrew/shorecrew/middleware"
	"github.com/shorecrew/shorecrew/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

type FastHTTPServer struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	httpConfig      *types.HTTPConfig
	chain           *middleware.Chain
	router          *Router
	server          *fasthttp.Server
	listener        net.Listener
	state           atomic.Value
	shutdownTimeout time.Duration
}

func NewFastHTTPServer(ctx context.Context, logger types.Logger, httpConfig *types.HTTPConfig, chain *middleware.Chain, router *Router) *FastHTTPServer {
	serverCtx, cancel := context.WithCancel(ctx)

	shutdownTimeout := 5 * time.Second
	if httpConfig.ShutdownTimeout > 0 {
		shutdownTimeout = time.Duration(httpConfig.ShutdownTimeout) * time.Second
	}

	s := &FastHTTPServer{
		ctx:             serverCtx,
		cancel:          cancel,
		logger:          logger,
		httpConfig:      httpConfig,
		chain:           chain,
		router:          router,
		shutdownTimeout: shutdownTimeout,
	}
	s.state.Store(StateStopped)
	return s
}

func (h *FastHTTPServer) Start() error {
	if !h.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	handler := h.router.Handle
	if h.chain != nil {
		handler = h.chain.Wrap(handler)
	}

	h.server = &fasthttp.Server{
		Handler:                      handler,
		ReadTimeout:                  time.Duration(h.httpConfig.ReadTimeout) * time.Second,
		WriteTimeout:                 time.Duration(h.httpConfig.WriteTimeout) * time.Second,
		IdleTimeout:                  time.Duration(h.httpConfig.IdleTimeout) * time.Second,
		TCPKeepalive:                 true,
		DisablePreParseMultipartForm: true,
		CloseOnShutdown:              true,
	}

	addr := fmt.Sprintf("%s:%d", h.httpConfig.Host, h.httpConfig.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		h.setState(StateStopped)
		return types.WrapError(err, types.ErrServerStartFailed.Error())
	}
	h.listener = listener

	go func() {
		if serveErr := h.server.Serve(listener); serveErr != nil {
			h.logger.Error("HTTP server failed", zap.Error(serveErr))
			h.setState(StateStopped)
		}
	}()

	h.setState(StateRunning)
	h.logger.Info("HTTP server started", zap.String("address", listener.Addr().String()))
	return nil
}

func (h *FastHTTPServer) Stop() error {
	if !h.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		h.setState(StateStopped)
		h.cancel()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return h.server.ShutdownWithContext(gCtx)
	})

	if err := g.Wait(); err != nil {
		h.logger.Warn("HTTP server shutdown timed out", zap.Error(err))
	} else {
		h.logger.Info("HTTP server stopped gracefully")
	}
	return nil
}

func (h *FastHTTPServer) IsRunning() bool {
	return h.getState() == StateRunning
}

// Addr reports the bound listen address.
func (h *FastHTTPServer) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

func (h *FastHTTPServer) getState() State {
	return h.state.Load().(State)
}

func (h *FastHTTPServer) setState(newState State) bool {
	currentState := h.getState()
	return h.state.CompareAndSwap(currentState, newState)
}

func (h *FastHTTPServer) transitionState(from, to State) bool {
	return h.state.CompareAndSwap(from, to)
}
