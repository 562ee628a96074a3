// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package worker

import (
	"github.com/joeycumines/logiface"
)

// workerOptions holds configuration options for Worker creation.
type workerOptions struct {
	logger      *logiface.Logger[logiface.Event]
	bufferLimit int
}

// Option configures a Worker instance.
type Option interface {
	applyWorker(*workerOptions) error
}

// workerOptionImpl implements Option.
type workerOptionImpl struct {
	applyWorkerFunc func(*workerOptions) error
}

func (o *workerOptionImpl) applyWorker(opts *workerOptions) error {
	return o.applyWorkerFunc(opts)
}

// WithLogger sets the logger. A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &workerOptionImpl{func(opts *workerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithBufferLimit sets the maximum size of a single shared buffer, in bytes.
// A value <= 0 disables the limit. Defaults to 64 MiB.
func WithBufferLimit(limit int) Option {
	return &workerOptionImpl{func(opts *workerOptions) error {
		opts.bufferLimit = limit
		return nil
	}}
}

// resolveWorkerOptions applies Option instances to workerOptions.
func resolveWorkerOptions(opts []Option) (*workerOptions, error) {
	cfg := &workerOptions{
		bufferLimit: 64 << 20,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyWorker(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
