package v1

import "github.com/charmbracelet/log"

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	dir    string
	logger *log.Logger
}

// WithRepository points the client at the repository enclosing dir instead of
// the working directory. GIT_DIR still takes precedence, as it does for git.
func WithRepository(dir string) Option {
	return func(c *clientConfig) {
		c.dir = dir
	}
}

// WithLogger sets the logger; by default nothing is logged.
func WithLogger(logger *log.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}
