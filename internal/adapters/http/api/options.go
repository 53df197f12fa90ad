package api

import "github.com/okian/paramapi/pkg/logger"

const (
	defaultListLimit   = 10
	defaultMaxLimit    = 100
	defaultMaxBodySize = 1 << 20
)

type serverConfig struct {
	logger           logger.Logger
	defaultListLimit int
	maxListLimit     int
	maxBodyBytes     int64
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		logger:           logger.Nop(),
		defaultListLimit: defaultListLimit,
		maxListLimit:     defaultMaxLimit,
		maxBodyBytes:     defaultMaxBodySize,
	}
}

// Option configures a Server.
type Option func(*serverConfig)

// WithLogger sets the logger used by handlers and middleware.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithListLimits sets the default and maximum page size for GET /users.
func WithListLimits(defaultLimit, maxLimit int) Option {
	return func(c *serverConfig) {
		if maxLimit > 0 {
			c.maxListLimit = maxLimit
		}
		if defaultLimit >= 0 && defaultLimit <= c.maxListLimit {
			c.defaultListLimit = defaultLimit
		}
	}
}

// WithMaxBodyBytes caps request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}
