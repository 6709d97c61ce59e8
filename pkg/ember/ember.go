// Package ember provides an embeddable, persistent, single-node key/value
// store. It combines an in-memory index with an append-only log of segment
// files on disk: writes append and update the index, reads perform a single
// positioned read, and accumulated dead records are reclaimed by an online
// compaction that runs concurrently with reads.
//
// Instance is the primary entry point, wrapping the concurrent engine so
// that it is safe for use from many goroutines at once.
package ember

import (
	"context"

	"go.uber.org/zap"

	"github.com/iamNilotpal/ember/internal/engine"
	"github.com/iamNilotpal/ember/pkg/errors"
	"github.com/iamNilotpal/ember/pkg/logger"
	"github.com/iamNilotpal/ember/pkg/options"
)

// Instance represents an open Ember store. It is safe for concurrent use.
type Instance struct {
	engine  *engine.SharedEngine
	options *options.Options
	log     *zap.SugaredLogger
}

// Open creates and initializes an Ember store instance, replaying any
// existing log under the configured data directory.
func Open(ctx context.Context, service string, opts ...options.OptionFunc) (*Instance, error) {
	log := logger.New(service)

	defaultOpts := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	eng, err := engine.OpenShared(ctx, &engine.Config{Logger: log, Options: &defaultOpts})
	if err != nil {
		return nil, err
	}

	return &Instance{engine: eng, options: &defaultOpts, log: log}, nil
}

// Set stores a key-value pair. If the key already exists its value is
// replaced, and the superseded record becomes reclaimable by compaction.
func (i *Instance) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	return i.engine.Set(key, value)
}

// Get retrieves the value associated with key. The second return is false
// when the key is absent.
func (i *Instance) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	return i.engine.Get(key)
}

// Remove deletes a key. Removing an absent key fails with a key-not-found
// error (errors.IsKeyNotFound reports it).
func (i *Instance) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	return i.engine.Remove(key)
}

// Compact forces a compaction run regardless of the dead-byte threshold.
func (i *Instance) Compact(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return i.engine.Compact()
}

// Close shuts the store down and releases its file handles.
func (i *Instance) Close() error {
	return i.engine.Close()
}

func validateKey(key string) error {
	if key == "" {
		return errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "key must be non-empty",
		).WithField("key").WithRule("non-empty")
	}
	return nil
}
