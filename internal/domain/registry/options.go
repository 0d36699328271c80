package registry

import "log/slog"

type config struct {
	name   string
	logger *slog.Logger
}

func defaultConfig() config {
	return config{
		name:   "events",
		logger: slog.Default(),
	}
}

// Option defines a functional configuration type for the Hub.
type Option func(*config)

// WithName labels the hub in log records.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger sets the logger used to report recovered subscriber panics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
