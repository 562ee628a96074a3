package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-workerbridge/protocol"
	"github.com/joeycumines/go-workerbridge/render"
)

// dispatch handles a single message from the compute side. Replies to
// oneshot requests are consumed first, everything else is unsolicited.
func (x *Bridge) dispatch(msg protocol.Message) {
	handled, err := x.oneshot.resolve(msg)
	if err != nil {
		x.fail(err)
	}
	x.closeOneshotIfTerminated()
	if handled || x.closed.Load() {
		return
	}

	switch msg := msg.(type) {
	case protocol.Done:
		if err := x.queue.acknowledge(msg.Status); err != nil {
			x.fail(err)
		}

	case protocol.Draw:
		x.draw(msg.Ops)

	case protocol.Started:
		x.logger.Info().Log(`compute side started`)
		x.started.resolve(struct{}{}, nil)
		if x.opts.lifecycle != nil {
			x.opts.lifecycle.OnStart()
		}

	case protocol.Exit:
		x.logger.Info().Int(`status`, msg.Status).Log(`compute side exited`)
		if x.opts.lifecycle != nil {
			x.opts.lifecycle.OnExit(msg.Status)
		}
		x.terminate(nil)

	case protocol.Title:
		if x.opts.lifecycle != nil {
			x.opts.lifecycle.OnTitle(msg.Title)
		}

	case protocol.EvalFunc:
		x.evalFunc(msg)

	case protocol.Eval:
		x.eval(msg)

	case protocol.ReadClipboardRequest:
		x.readClipboard()

	case protocol.WriteClipboard:
		x.writeClipboard(msg.Text)

	case protocol.Export:
		x.export(msg)

	case protocol.WriteFile:
		x.writeFile(msg)

	case protocol.Error:
		x.fail(&RemoteFatalError{Message: msg.Message})

	default:
		x.fail(&ProtocolError{Op: `dispatch`, Reason: fmt.Sprintf(`unexpected message %q`, msg.Kind())})
	}
}

func (x *Bridge) draw(ops []render.Op) {
	if x.batcher == nil {
		return
	}
	if err := x.batcher.Append(ops...); err != nil {
		x.logger.Debug().Err(err).Log(`dropped draw`)
	}
}

func (x *Bridge) evalFunc(msg protocol.EvalFunc) {
	evaluator := x.opts.evaluator
	var result string
	x.callHost(`evalfunc`, func(ctx context.Context) (err error) {
		if evaluator == nil {
			return ErrNotConfigured
		}
		result, err = evaluator.EvalFunc(ctx, msg.Body, msg.ArgsJSON)
		return err
	}, func(err error) {
		switch {
		case err != nil && msg.NotifyOnly:
			x.errorOutput(evalFuncMessage(err), nil)
		case err != nil:
			x.writeBuffer([]byte(`E9999: `+evalFuncMessage(err)), protocol.StatusNotifyEvalFuncRet, func(id int32) []any {
				return []any{true, id}
			}, nil)
		case !msg.NotifyOnly:
			x.writeBuffer([]byte(result), protocol.StatusNotifyEvalFuncRet, func(id int32) []any {
				return []any{false, id}
			}, nil)
		}
	})
}

// evalFuncMessage describes a failed evalfunc, for the compute side.
func evalFuncMessage(err error) string {
	step, message, stack := `Exception was thrown while evaluating function`, err.Error(), ``
	var hostErr *HostError
	if errors.As(err, &hostErr) && hostErr.Err != nil {
		message = hostErr.Err.Error()
	}
	var scriptErr ScriptError
	if errors.As(err, &scriptErr) {
		step, message, stack = scriptErr.ScriptContext(), scriptErr.Error(), scriptErr.ScriptStack()
	}
	if stack == `` {
		return fmt.Sprintf(`%s for jsevalfunc(): %s`, step, message)
	}
	return fmt.Sprintf(`%s for jsevalfunc(): %s: %s`, step, message, stack)
}

func (x *Bridge) eval(msg protocol.Eval) {
	evaluator := x.opts.evaluator
	x.callHost(`eval`, func(ctx context.Context) error {
		if evaluator == nil {
			return ErrNotConfigured
		}
		return evaluator.Eval(ctx, msg.Path, msg.Source)
	}, func(err error) {
		if err != nil {
			x.errorOutput(err.Error(), nil)
		}
	})
}

func (x *Bridge) readClipboard() {
	clipboard := x.opts.clipboard
	cannotSend := func() {
		_ = x.enqueue(&queuedEvent{status: protocol.StatusNotifyClipboardWriteComplete, values: []any{true, 0}})
	}
	if clipboard == nil {
		cannotSend()
		return
	}
	var text string
	x.callHost(`read clipboard`, func(ctx context.Context) (err error) {
		text, err = clipboard.ReadText(ctx)
		return err
	}, func(err error) {
		if err != nil {
			cannotSend()
			return
		}
		x.writeBuffer([]byte(text), protocol.StatusNotifyClipboardWriteComplete, func(id int32) []any {
			return []any{false, id}
		}, nil)
	})
}

func (x *Bridge) writeClipboard(text string) {
	clipboard := x.opts.clipboard
	if clipboard == nil {
		x.logger.Debug().Log(`clipboard not configured, write discarded`)
		return
	}
	x.callHost(`write clipboard`, func(ctx context.Context) error {
		return clipboard.WriteText(ctx, text)
	}, nil)
}

func (x *Bridge) export(msg protocol.Export) {
	exporter := x.opts.exporter
	x.callHost(`export`, func(ctx context.Context) error {
		if exporter == nil {
			return ErrNotConfigured
		}
		return exporter.Export(ctx, msg.Path, msg.Contents)
	}, nil)
}

// writeFile persists writes in the order they were made. Writes are not
// canceled by termination, see Bridge.Done.
func (x *Bridge) writeFile(msg protocol.WriteFile) {
	persistence := x.opts.persistence
	if persistence == nil {
		x.logger.Debug().Str(`filename`, msg.Filename).Log(`persistence not configured, write discarded`)
		return
	}
	ctx := context.WithoutCancel(x.ctx)
	x.writes.Go(func() {
		promise := x.promisifyHost(ctx, func(ctx context.Context) error {
			return persistence.WriteFile(ctx, msg.Filename, msg.Contents)
		})
		<-promise.ToChannel()
		if err := hostError(`writefile`, promise); err != nil {
			x.hostFault(`writefile`, err)
		}
	})
}

// callHost runs fn off-loop. If done is non-nil, it is called on the loop
// with the result, unless the bridge has terminated in the meantime. Errors
// are logged, subject to rate limiting.
func (x *Bridge) callHost(op string, fn func(ctx context.Context) error, done func(err error)) {
	promise := x.promisifyHost(x.ctx, fn)
	go func() {
		<-promise.ToChannel()
		err := hostError(op, promise)
		if x.closed.Load() {
			return
		}
		if err != nil {
			x.hostFault(op, err)
		}
		if done == nil {
			return
		}
		if submitErr := x.loop.Submit(func() {
			if !x.closed.Load() {
				done(err)
			}
		}); submitErr != nil {
			x.logger.Debug().Str(`op`, op).Err(submitErr).Log(`dropped host result`)
		}
	}()
}

// promisifyHost calls fn via Loop.Promisify, bounded by the host timeout.
func (x *Bridge) promisifyHost(ctx context.Context, fn func(ctx context.Context) error) eventloop.Promise {
	timeout := x.opts.hostTimeout
	return x.loop.Promisify(ctx, func(ctx context.Context) (any, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return nil, fn(ctx)
	})
}

// hostError converts the settled promise of a host call to a HostError, or
// nil if it was fulfilled.
func hostError(op string, promise eventloop.Promise) error {
	if promise.State() != eventloop.Rejected {
		return nil
	}
	err, _ := promise.Result().(error)
	return &HostError{Op: op, Err: err}
}

func (x *Bridge) hostFault(op string, err error) {
	if _, ok := x.faults.Allow(op); !ok {
		return
	}
	x.logger.Warning().Str(`op`, op).Err(err).Log(`host call failed`)
}
