// Package service assembles and runs the application: config, logging,
// cache, domain services, notifications, scheduler and the HTTP API.
package service

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shorecrew/shorecrew/beach"
	"github.com/shorecrew/shorecrew/cache"
	"github.com/shorecrew/shorecrew/config"
	"github.com/shorecrew/shorecrew/crew"
	"github.com/shorecrew/shorecrew/cron"
	"github.com/shorecrew/shorecrew/logger"
	"github.com/shorecrew/shorecrew/metrics"
	"github.com/shorecrew/shorecrew/middleware"
	"github.com/shorecrew/shorecrew/notify"
	"github.com/shorecrew/shorecrew/server"
	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/weather"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger types.Logger
	config types.ConfigManager

	cacheManager *cache.Manager
	metrics      *metrics.PrometheusManager
	hub          *notify.Hub
	cronManager  *cron.Manager
	httpServer   *server.FastHTTPServer

	weatherSvc *weather.Service
	beachSvc   *beach.Service
	crewSvc    *crew.Service

	state           atomic.Value
	shutdownTimeout time.Duration
}

func NewService(ctx context.Context, configPath string) (*Service, error) {
	serviceCtx, cancel := context.WithCancel(ctx)

	configManager, err := config.NewConfigurationManager(serviceCtx, configPath)
	if err != nil {
		cancel()
		return nil, err
	}
	cfg := configManager.GetConfig()

	log, err := logger.NewDefaultLogger(cfg.Logger)
	if err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to build logger")
	}

	s := &Service{
		ctx:             serviceCtx,
		cancel:          cancel,
		logger:          log,
		config:          configManager,
		shutdownTimeout: 30 * time.Second,
	}
	s.state.Store(StateStopped)

	if err := s.buildComponents(cfg); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Service) buildComponents(cfg *types.ServiceConfig) error {
	var metricsManager types.MetricsManager
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		s.metrics = metrics.NewPrometheusManager(s.logger, cfg.Metrics)
		metricsManager = s.metrics
	}

	knownKeys := cache.KnownKeys(beach.Slugs())

	cacheManager, err := cache.NewManager(s.ctx, s.config, s.logger, metricsManager, knownKeys)
	if err != nil {
		return types.WrapError(err, "failed to build cache")
	}
	s.cacheManager = cacheManager

	c := cacheManager.Cache()

	var notifier types.Notifier
	if cfg.Notify != nil && cfg.Notify.Enabled {
		s.hub = notify.NewHub(s.ctx, s.logger, cfg.Notify)
		notifier = s.hub
	}

	weatherCfg := cfg.Weather
	if weatherCfg == nil {
		weatherCfg = config.NewLoader().Defaults().Weather
	}

	provider := weather.NewClient(s.logger, weatherCfg)
	s.weatherSvc = weather.NewService(provider, c, s.logger, weatherCfg)
	s.beachSvc = beach.NewService(c, s.logger)
	s.crewSvc = crew.NewService(c, s.logger, notifier)

	if cfg.Cron != nil && cfg.Cron.Enabled {
		s.cronManager = cron.NewManager(s.ctx, s.logger, metricsManager, cfg.Cron)
		if weatherCfg.RefreshEnabled {
			if err := cron.RegisterWeatherRefresh(s.cronManager, s.weatherSvc, beach.Catalog, weatherCfg.RefreshSpec); err != nil {
				return types.WrapError(err, "failed to schedule weather refresh")
			}
		}
	}

	chain, err := middleware.BuildChain(s.logger, metricsManager, cfg.Middlewares)
	if err != nil {
		return types.WrapError(err, "failed to build middleware chain")
	}

	var metricsHandler http.Handler
	if s.metrics != nil {
		metricsHandler = s.metrics.Handler()
	}

	router := server.NewRouter()
	api := server.NewAPI(s.ctx, s.logger, s.weatherSvc, s.beachSvc, s.crewSvc,
		cfg.Notify, metricsHandler, cfg.Version)
	if err := api.RegisterRoutes(router); err != nil {
		return types.WrapError(err, "failed to register routes")
	}

	s.httpServer = server.NewFastHTTPServer(s.ctx, s.logger, cfg.Server.HTTP, chain, router)
	return nil
}

// Start brings components up in dependency order. A failure stops what was
// already started.
func (s *Service) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	for _, component := range s.startOrder() {
		if component.lm == nil {
			continue
		}
		if err := component.lm.Start(); err != nil {
			s.logger.Error("Component failed to start",
				zap.String("component", component.name),
				zap.Error(err))
			s.stopComponents()
			s.setState(StateStopped)
			return types.WrapError(err, "failed to start "+component.name)
		}
		s.logger.Debug("Component started", zap.String("component", component.name))
	}

	s.setState(StateRunning)
	s.logger.Info("Service started",
		zap.String("name", s.config.GetConfig().Name),
		zap.String("version", s.config.GetConfig().Version),
		zap.String("address", s.httpServer.Addr()))
	return nil
}

// Run starts the service and blocks until SIGINT/SIGTERM or context
// cancellation.
func (s *Service) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		s.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case <-s.ctx.Done():
		s.logger.Info("Context cancelled, shutting down")
	}

	return s.Stop()
}

func (s *Service) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		s.setState(StateStopped)
		s.cancel()
	}()

	s.stopComponents()
	s.logger.Info("Service stopped")
	return nil
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

type component struct {
	name string
	lm   types.LifecycleManager
}

func (s *Service) startOrder() []component {
	var metricsLM, hubLM, cronLM types.LifecycleManager
	if s.metrics != nil {
		metricsLM = s.metrics
	}
	if s.hub != nil {
		hubLM = s.hub
	}
	if s.cronManager != nil {
		cronLM = s.cronManager
	}

	return []component{
		{"metrics", metricsLM},
		{"cache", s.cacheManager},
		{"notify", hubLM},
		{"cron", cronLM},
		{"http", s.httpServer},
	}
}

// stopComponents shuts down in reverse start order, tolerating components
// that never came up.
func (s *Service) stopComponents() {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		order := s.startOrder()
		for i := len(order) - 1; i >= 0; i-- {
			c := order[i]
			if c.lm == nil || !c.lm.IsRunning() {
				continue
			}
			if err := c.lm.Stop(); err != nil {
				s.logger.Warn("Component stop failed",
					zap.String("component", c.name),
					zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn("Shutdown incomplete", zap.Error(err))
	}
}

func (s *Service) getState() State {
	return s.state.Load().(State)
}

func (s *Service) setState(newState State) bool {
	currentState := s.getState()
	return s.state.CompareAndSwap(currentState, newState)
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}
