// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bridge

import (
	"time"

	"github.com/joeycumines/go-workerbridge/protocol"
	"github.com/joeycumines/go-workerbridge/render"
	"github.com/joeycumines/logiface"
)

// bridgeOptions holds configuration for a [Bridge] instance.
type bridgeOptions struct {
	logger        *logiface.Logger[logiface.Event]
	surface       render.Surface
	onFlush       func(n int)
	lifecycle     Lifecycle
	clipboard     Clipboard
	persistence   Persistence
	evaluator     Evaluator
	exporter      Exporter
	drain         protocol.DrainConfig
	frameInterval time.Duration
	hostTimeout   time.Duration
	debug         bool
	latency       bool
}

// Option configures a [Bridge] instance.
type Option interface {
	applyOption(*bridgeOptions) error
}

// bridgeOptionImpl implements [Option] via a closure.
type bridgeOptionImpl struct {
	applyOptionFunc func(*bridgeOptions) error
}

func (o *bridgeOptionImpl) applyOption(opts *bridgeOptions) error {
	return o.applyOptionFunc(opts)
}

// WithLogger sets the logger. A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithDebug enables additional invariant checks, e.g. asserting the mailbox
// is empty before each write. Failed checks are fatal.
func WithDebug(debug bool) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.debug = debug
		return nil
	}}
}

// WithSurface sets the surface that draw operations are applied to. Without
// a surface, draw messages are discarded.
func WithSurface(surface render.Surface) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.surface = surface
		return nil
	}}
}

// WithFrameInterval sets the delay between the first draw operation of a
// frame, and the frame being flushed to the surface. Defaults to 16ms.
func WithFrameInterval(interval time.Duration) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.frameInterval = interval
		return nil
	}}
}

// WithFlushHandler sets a callback, run on the loop after each non-empty
// frame is applied to the surface, e.g. to present it.
func WithFlushHandler(fn func(n int)) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.onFlush = fn
		return nil
	}}
}

func WithLifecycle(lifecycle Lifecycle) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.lifecycle = lifecycle
		return nil
	}}
}

// WithClipboard enables clipboard bridging. Without a clipboard, reads
// report failure to the compute side, and writes are discarded.
func WithClipboard(clipboard Clipboard) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.clipboard = clipboard
		return nil
	}}
}

func WithPersistence(persistence Persistence) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.persistence = persistence
		return nil
	}}
}

func WithEvaluator(evaluator Evaluator) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.evaluator = evaluator
		return nil
	}}
}

func WithExporter(exporter Exporter) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.exporter = exporter
		return nil
	}}
}

// WithDrainConfig configures how messages from the compute side are batched
// onto the loop.
func WithDrainConfig(cfg protocol.DrainConfig) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.drain = cfg
		return nil
	}}
}

// WithHostTimeout bounds each call to a host collaborator. A value <= 0
// disables the timeout. Defaults to 30s.
func WithHostTimeout(timeout time.Duration) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.hostTimeout = timeout
		return nil
	}}
}

// WithLatencyTracking records how long each message from the compute side
// spent in transit, per kind, logged on termination. See Bridge.Latencies.
func WithLatencyTracking(enabled bool) Option {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.latency = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to bridgeOptions.
func resolveOptions(opts []Option) (*bridgeOptions, error) {
	cfg := &bridgeOptions{
		frameInterval: time.Millisecond * 16,
		hostTimeout:   time.Second * 30,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
