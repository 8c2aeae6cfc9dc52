// Package cron schedules background jobs, currently the periodic weather
// refresh.
package cron

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const defaultJobTimeout = 5 * time.Minute

type jobEntry struct {
	id      cron.EntryID
	spec    string
	addedAt time.Time
}

type Manager struct {
	ctx        context.Context
	cancel     context.CancelFunc
	logger     types.Logger
	metrics    types.MetricsManager
	cron       *cron.Cron
	timezone   *time.Location
	jobs       map[string]*jobEntry
	mu         sync.Mutex
	state      atomic.Value
	jobTimeout time.Duration
}

func NewManager(ctx context.Context, logger types.Logger, metrics types.MetricsManager, config *types.CronConfig) *Manager {
	timezone, err := time.LoadLocation(config.Timezone)
	if err != nil {
		logger.Warn("Unknown cron timezone, using UTC", zap.String("timezone", config.Timezone))
		timezone = time.UTC
	}

	managerCtx, cancel := context.WithCancel(ctx)

	cronL := cronLogger{logger: logger}

	m := &Manager{
		ctx:     managerCtx,
		cancel:  cancel,
		logger:  logger,
		metrics: metrics,
		cron: cron.New(
			cron.WithLocation(timezone),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronL)),
		),
		timezone:   timezone,
		jobs:       make(map[string]*jobEntry),
		jobTimeout: defaultJobTimeout,
	}
	m.state.Store(StateStopped)
	return m
}

// Add registers a named job under a six-field cron spec. Jobs can be added
// before or after Start.
func (m *Manager) Add(jobName, spec string, job func(ctx context.Context)) error {
	if jobName == "" {
		return types.ErrCronJobNameIsEmpty
	}
	if job == nil {
		return types.ErrCronJobIsNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[jobName]; exists {
		return types.Errorf(types.ErrCronJobExists, "job: %s", jobName)
	}

	id, err := m.cron.AddFunc(spec, m.wrapJob(jobName, job))
	if err != nil {
		return types.WrapError(err, types.ErrCronExpressionInvalid.Error())
	}

	m.jobs[jobName] = &jobEntry{id: id, spec: spec, addedAt: time.Now()}

	m.logger.Info("Cron job added",
		zap.String("job_name", jobName),
		zap.String("spec", spec))
	return nil
}

func (m *Manager) Start() error {
	if !m.transitionState(StateStopped, StateStarting) {
		return types.ErrCronIsRunning
	}

	m.cron.Start()
	m.setState(StateRunning)

	m.logger.Info("Cron manager started", zap.String("timezone", m.timezone.String()))
	return nil
}

func (m *Manager) Stop() error {
	if !m.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		m.setState(StateStopped)
		m.cancel()
	}()

	stopCtx := m.cron.Stop()

	select {
	case <-stopCtx.Done():
		m.logger.Info("Cron manager stopped")
	case <-time.After(10 * time.Second):
		m.logger.Warn("Cron manager stop timeout, jobs may still be running")
	}
	return nil
}

func (m *Manager) IsRunning() bool {
	return m.getState() == StateRunning
}

func (m *Manager) wrapJob(jobName string, job func(ctx context.Context)) func() {
	return func() {
		startTime := time.Now()

		jobCtx, cancel := context.WithTimeout(m.ctx, m.jobTimeout)
		defer cancel()

		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = types.NewErrorf("job panic: %v", r)
					m.logger.Error("Cron job panicked",
						zap.String("job_name", jobName),
						zap.Any("panic", r))
				}
			}()
			job(jobCtx)
		}()

		duration := time.Since(startTime)

		result := "success"
		if err != nil {
			result = "error"
		} else if jobCtx.Err() != nil {
			result = "timeout"
		}

		if m.metrics != nil {
			m.metrics.Counter("cron_job_executions_total", map[string]string{
				"job_name": jobName,
				"result":   result,
			}).Inc()
			m.metrics.Histogram("cron_job_duration_seconds",
				[]float64{0.1, 1, 10, 60, 300},
				map[string]string{"job_name": jobName},
			).Observe(duration.Seconds())
		}

		m.logger.Debug("Cron job finished",
			zap.String("job_name", jobName),
			zap.String("result", result),
			zap.Duration("duration", duration))
	}
}

func (m *Manager) getState() State {
	return m.state.Load().(State)
}

func (m *Manager) setState(newState State) bool {
	currentState := m.getState()
	return m.state.CompareAndSwap(currentState, newState)
}

func (m *Manager) transitionState(from, to State) bool {
	return m.state.CompareAndSwap(from, to)
}

type cronLogger struct {
	logger types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, toFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(toFields(keysAndValues), zap.Error(err))
	l.logger.Error(msg, fields...)
}

func toFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
