package protocol

import (
	"context"
	"io"
	"time"
)

// DrainConfig models optional configuration for the Drain function.
type DrainConfig struct {
	// MaxSize is the maximum number of values received per call. Setting
	// this to a value < 0 disables the constraint.
	//
	// Defaults to 32, if 0.
	MaxSize int

	// MinSize is the number of values to wait for, before taking only what
	// is immediately available.
	//
	// Defaults to 1, if 0.
	MinSize int

	// PartialTimeout bounds the wait for MinSize values, once the first
	// value has been received. Has no effect unless MinSize > 1.
	//
	// Defaults to 0 (disabled).
	PartialTimeout time.Duration
}

// Drain performs a blocking receive on ch, passing each value to handler, in
// order. It waits for the minimum number of values, then receives whatever
// else is immediately available, up to the maximum. Errors from handler are
// returned, stopping the drain.
//
// If ch is closed and empty io.EOF is returned. Providing a nil ctx, ch, or
// handler will cause a panic.
func Drain[T any](ctx context.Context, cfg *DrainConfig, ch <-chan T, handler func(value T) error) error {
	if ctx == nil {
		panic(`protocol: nil context`)
	}
	if ch == nil {
		panic(`protocol: nil channel`)
	}
	if handler == nil {
		panic(`protocol: nil handler`)
	}

	// guard context cancel - avoid receiving if already canceled
	if err := ctx.Err(); err != nil {
		return err
	}

	maxSize := 32
	minSize := 1
	var partialTimeout time.Duration
	if cfg != nil {
		if cfg.MaxSize != 0 {
			maxSize = cfg.MaxSize
		}
		if cfg.MinSize > 0 {
			minSize = cfg.MinSize
		}
		partialTimeout = cfg.PartialTimeout
	}

	var (
		size             int
		partialTimeoutCh <-chan time.Time
	)

	receive := func(value T, ok bool) error {
		if !ok {
			return io.EOF
		}
		size++
		return handler(value)
	}

	// wait for the minimum, or the partial timeout, or cancel
MinSizeLoop:
	for size < minSize && (maxSize < 0 || size < maxSize) {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-partialTimeoutCh:
			break MinSizeLoop

		case value, ok := <-ch:
			if err := receive(value, ok); err != nil {
				return err
			}
			if size == 1 && partialTimeout > 0 && minSize > 1 {
				timer := time.NewTimer(partialTimeout)
				//goland:noinspection GoDeferInLoop
				defer timer.Stop()
				partialTimeoutCh = timer.C
			}
		}
	}

	// take what is immediately available
	for maxSize < 0 || size < maxSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case value, ok := <-ch:
			if err := receive(value, ok); err != nil {
				return err
			}
		default:
			return nil
		}
	}

	return nil
}
