package bridge

import (
	"context"

	"github.com/joeycumines/go-eventloop"
)

// Future is the eventual result of an operation, backed by an
// [eventloop.Promise] that settles on the bridge's loop. Only the first
// resolution has any effect. Futures still pending when the bridge
// terminates are rejected.
type Future[T any] struct {
	promise eventloop.Promise
	settle  chan settlement[T]
}

type settlement[T any] struct {
	value T
	err   error
}

func newFuture[T any](x *Bridge) *Future[T] {
	f := &Future[T]{settle: make(chan settlement[T], 1)}
	f.promise = x.loop.Promisify(context.Background(), func(context.Context) (any, error) {
		select {
		case s := <-f.settle:
			return s.value, s.err
		case <-x.ctx.Done():
		}
		// the settlement may have raced termination
		select {
		case s := <-f.settle:
			return s.value, s.err
		default:
			return nil, x.terminatedErr()
		}
	})
	return f
}

// resolve sets the result, if not already set. It never blocks.
func (x *Future[T]) resolve(value T, err error) {
	select {
	case x.settle <- settlement[T]{value: value, err: err}:
	default:
	}
}

func (x *Future[T]) reject(err error) {
	var zero T
	x.resolve(zero, err)
}

// Promise returns the underlying promise, e.g. to select on ToChannel.
func (x *Future[T]) Promise() eventloop.Promise { return x.promise }

// Wait blocks until the future settles, or ctx is canceled.
func (x *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-x.promise.ToChannel():
		return x.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the result without blocking, or ErrPending.
func (x *Future[T]) Result() (T, error) {
	var zero T
	switch x.promise.State() {
	case eventloop.Pending:
		return zero, ErrPending
	case eventloop.Rejected:
		err, _ := x.promise.Result().(error)
		return zero, err
	}
	value, _ := x.promise.Result().(T)
	return value, nil
}
