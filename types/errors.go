package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigLoadFailed     = errors.New("config load failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrServerNotRunning     = errors.New("server not running")
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrServerStartFailed    = errors.New("server start failed")
	ErrHandlerIsNil         = errors.New("handler is nil")
	ErrPathNotFound         = errors.New("path not found")
)

var (
	ErrStoreTypeUnknown     = errors.New("store type unknown")
	ErrStoreOpenFailed      = errors.New("store open failed")
	ErrCacheKeyEmpty        = errors.New("cache key empty")
	ErrCacheEntryCorrupt    = errors.New("cache entry corrupt")
	ErrCacheOperationFailed = errors.New("cache operation failed")
)

var (
	ErrWeatherFetchFailed  = errors.New("weather fetch failed")
	ErrWeatherDecodeFailed = errors.New("weather decode failed")
	ErrWeatherOutOfRange   = errors.New("coordinates out of range")
	ErrBeachNotFound       = errors.New("beach not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberInvalid       = errors.New("member invalid")
	ErrCleanupEntryInvalid = errors.New("cleanup entry invalid")
	ErrRosterStoreRejected = errors.New("roster store rejected write")
)

var (
	ErrCronIsRunning         = errors.New("cron is running")
	ErrCronJobNameIsEmpty    = errors.New("cron job name is empty")
	ErrCronJobIsNil          = errors.New("cron job is nil")
	ErrCronJobExists         = errors.New("cron job exists")
	ErrCronExpressionInvalid = errors.New("cron expression invalid")
)

var (
	ErrMetricsTypeUnknown = errors.New("metrics type unknown")
	ErrMetricsIsDisabled  = errors.New("metrics manager is disabled")
)

var (
	ErrNotifierNotRunning = errors.New("notifier not running")
	ErrNotifierQueueFull  = errors.New("notifier queue full")
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidState     = errors.New("invalid state")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
