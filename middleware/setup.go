package middleware

import (
	"github.com/shorecrew/shorecrew/types"
)

// BuildChain assembles the configured middleware chain.
func BuildChain(logger types.Logger, metrics types.MetricsManager, config *types.MiddlewaresConfig) (*Chain, error) {
	chain := NewChain()

	if config == nil || !config.Enabled {
		chain.Build()
		return chain, nil
	}

	if config.Recovery != nil && config.Recovery.Enabled {
		if err := chain.Register(NewRecoveryMiddleware(logger, metrics, config.Recovery)); err != nil {
			return nil, err
		}
	}

	if config.Logging != nil && config.Logging.Enabled {
		if err := chain.Register(NewLoggingMiddleware(logger, metrics, config.Logging)); err != nil {
			return nil, err
		}
	}

	if config.CORS != nil && config.CORS.Enabled {
		if err := chain.Register(NewCORSMiddleware(logger, config.CORS)); err != nil {
			return nil, err
		}
	}

	if config.Compression != nil && config.Compression.Enabled {
		if err := chain.Register(NewCompressionMiddleware(logger, config.Compression)); err != nil {
			return nil, err
		}
	}

	chain.Build()
	return chain, nil
}
