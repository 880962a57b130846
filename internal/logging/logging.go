// Package logging constructs the process-wide structured logger.
package logging

import "go.uber.org/zap"

// New builds the process logger. Production builds use the JSON encoder;
// set dev to true (cmd/gateway's -dev flag) for human-readable console output
// during local development.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
