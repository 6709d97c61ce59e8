// Package logger constructs the zap loggers used across the store.
package logger

import "go.uber.org/zap"

// New builds a production SugaredLogger named after the given service.
// It falls back to a no-op logger if construction fails, so callers never
// need to handle a logging bootstrap error.
func New(service string) *zap.SugaredLogger {
	log, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return log.Named(service).Sugar()
}
