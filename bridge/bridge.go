package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-workerbridge/mailbox"
	"github.com/joeycumines/go-workerbridge/protocol"
	"github.com/joeycumines/go-workerbridge/render"
	"github.com/joeycumines/logiface"
)

// Bridge is the control side of the worker protocol. Instances must be
// initialized using New.
type Bridge struct {
	loop    Loop
	mailbox *mailbox.Mailbox
	channel *protocol.Channel
	opts    *bridgeOptions
	logger  *logiface.Logger[logiface.Event]
	faults  *catrate.Limiter
	batcher *render.Batcher
	ctx     context.Context
	cancel  context.CancelFunc
	started *Future[struct{}]
	done    chan struct{}
	writes  serial
	session string

	// confined to the loop
	queue   eventQueue
	oneshot *oneshot
	latency *latencyRecorder

	err        error
	latencies  []MessageLatency
	mu         sync.Mutex
	closed     atomic.Bool
	startedRun atomic.Bool
}

// New initializes a Bridge. The loop must be running (or about to be run)
// for the lifetime of the bridge. The mailbox and channel are shared with a
// single compute side, which must not be started until Bridge.Start.
func New(loop Loop, mb *mailbox.Mailbox, channel *protocol.Channel, opts ...Option) (*Bridge, error) {
	if loop == nil {
		return nil, errors.New(`bridge: nil loop`)
	}
	if mb == nil {
		return nil, errors.New(`bridge: nil mailbox`)
	}
	if channel == nil {
		return nil, errors.New(`bridge: nil channel`)
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	x := &Bridge{
		loop:    loop,
		mailbox: mb,
		channel: channel,
		opts:    cfg,
		logger:  cfg.logger,
		faults: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 3,
			time.Minute: 20,
		}),
		done:    make(chan struct{}),
		session: uuid.NewString(),
		queue:   eventQueue{mailbox: mb, debug: cfg.debug},
		oneshot: newOneshot(),
	}
	x.ctx, x.cancel = context.WithCancel(context.Background())
	x.started = newFuture[struct{}](x)
	if cfg.latency {
		x.latency = newLatencyRecorder()
	}

	if x.logger != nil {
		x.logger = x.logger.Clone().Str(`session`, x.session).Logger()
	}

	if cfg.surface != nil {
		frameInterval := cfg.frameInterval
		x.batcher = render.NewBatcher(cfg.surface, &render.BatcherConfig{
			FrameInterval: frameInterval,
			OnFlush:       cfg.onFlush,
			Scheduler: func(fn func()) {
				time.AfterFunc(frameInterval, func() {
					if err := x.loop.Submit(fn); err != nil {
						x.logger.Debug().Err(err).Log(`dropped frame`)
					}
				})
			},
		})
	}

	return x, nil
}

// Session returns the unique id of this bridge, as logged.
func (x *Bridge) Session() string { return x.session }

// Start sends the start message, then blocks until the compute side reports
// it has started, the bridge terminates, or ctx is canceled. Messages from
// the compute side are processed from the first call, regardless of the
// result.
func (x *Bridge) Start(ctx context.Context, options protocol.StartOptions) error {
	if !x.startedRun.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	options.Debug = options.Debug || x.opts.debug
	options.Clipboard = options.Clipboard || x.opts.clipboard != nil

	go x.pump()
	go func() {
		select {
		case <-x.ctx.Done():
		case <-x.channel.Done():
			x.submitTerminate(protocol.ErrChannelClosed)
		}
	}()

	x.logger.Debug().Bool(`debug`, options.Debug).Log(`starting`)

	if err := x.channel.PostToWorker(ctx, protocol.Start{Options: options}); err != nil {
		return err
	}

	_, err := x.started.Wait(ctx)
	return err
}

// pump receives messages from the compute side, in batches, each batch being
// dispatched by a single loop task.
func (x *Bridge) pump() {
	for {
		var batch []protocol.Envelope
		err := protocol.Drain(x.ctx, &x.opts.drain, x.channel.ControlInbox(), func(env protocol.Envelope) error {
			batch = append(batch, env)
			return nil
		})
		if len(batch) != 0 {
			if submitErr := x.loop.Submit(func() { x.dispatchBatch(batch) }); submitErr != nil {
				// the loop is gone, nothing else will touch the state
				x.terminate(fmt.Errorf(`bridge: loop: %w`, submitErr))
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (x *Bridge) dispatchBatch(batch []protocol.Envelope) {
	for _, env := range batch {
		if x.closed.Load() {
			return
		}
		if x.latency != nil {
			x.latency.record(env)
		}
		x.dispatch(env.Message)
	}
}

// SendKey sends a key event. The future resolves once the compute side has
// processed it.
func (x *Bridge) SendKey(key protocol.KeyEvent) *Future[struct{}] {
	return x.sendEvent(protocol.StatusNotifyKey, key.Values()...)
}

// Resize notifies the compute side of the new size of the drawing area.
func (x *Bridge) Resize(width, height int) *Future[struct{}] {
	return x.sendEvent(protocol.StatusNotifyResize, width, height)
}

// Cmdline runs a command. The future fails with ErrEmptyCommand if cmdline
// is empty, or a RemoteError if the command did not succeed.
func (x *Bridge) Cmdline(cmdline string) *Future[struct{}] {
	f := newFuture[struct{}](x)
	if cmdline == `` {
		f.reject(ErrEmptyCommand)
		return f
	}
	x.submit(f.reject, func() {
		x.request(protocol.KindCmdlineResponse, &oneshotRequest{
			start: func() error {
				return x.enqueue(&queuedEvent{status: protocol.StatusRequestCmdline, values: []any{cmdline}})
			},
			resolve: func(msg protocol.Message) error {
				resp, ok := msg.(protocol.CmdlineResponse)
				if !ok {
					return &ProtocolError{Op: `cmdline`, Reason: fmt.Sprintf(`unexpected reply %T`, msg)}
				}
				if !resp.Success {
					f.reject(&RemoteError{Op: `cmdline`, Message: `command was not executed: ` + cmdline})
					return nil
				}
				f.resolve(struct{}{}, nil)
				return nil
			},
			reject: f.reject,
		})
	})
	return f
}

// DropFile sends a file to the compute side, as if it were dropped onto the
// drawing area. The contents are copied.
func (x *Bridge) DropFile(filename string, contents []byte) *Future[struct{}] {
	f := newFuture[struct{}](x)
	contents = bytes.Clone(contents)
	x.submit(f.reject, func() {
		x.writeBuffer(contents, protocol.StatusNotifyOpenFileBufComplete, func(id int32) []any {
			return []any{filename, id}
		}, ackFuture(f))
	})
	return f
}

// ReportError writes message to the error output of the compute side.
func (x *Bridge) ReportError(message string) *Future[struct{}] {
	f := newFuture[struct{}](x)
	x.submit(f.reject, func() { x.errorOutput(message, ackFuture(f)) })
	return f
}

// Err returns the reason the bridge terminated, which is nil if it has not,
// or the compute side exited normally, or Terminate was called.
func (x *Bridge) Err() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.err
}

// Done is closed once the bridge has terminated, and writes to the
// persistence collaborator made before termination have completed.
func (x *Bridge) Done() <-chan struct{} { return x.done }

// Latencies summarizes the time messages from the compute side spent in
// transit, per kind. It is only available after termination, and only if
// enabled using WithLatencyTracking.
func (x *Bridge) Latencies() []MessageLatency {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.latencies
}

// Terminate stops the bridge, closing the channel, and failing any
// outstanding operations with ErrTerminated. It does not wait.
func (x *Bridge) Terminate() { x.submitTerminate(nil) }

func (x *Bridge) submitTerminate(cause error) {
	if x.closed.Load() {
		return
	}
	if err := x.loop.Submit(func() { x.terminate(cause) }); err != nil {
		x.terminate(cause)
	}
}

// terminate must be called on the loop, unless the loop has stopped.
func (x *Bridge) terminate(cause error) {
	if !x.closed.CompareAndSwap(false, true) {
		return
	}

	x.mu.Lock()
	x.err = cause
	x.mu.Unlock()

	x.cancel()
	x.channel.Close()

	if x.batcher != nil {
		if cause == nil {
			x.batcher.Flush()
		}
		_ = x.batcher.Close()
	}

	err := terminatedError(cause)
	x.oneshot.close(err)
	x.queue.drain(err)
	x.started.reject(err)

	if x.latency != nil {
		x.reportLatencies()
	}

	if cause != nil {
		x.logger.Err().Err(cause).Log(`terminated`)
		if x.opts.lifecycle != nil {
			x.opts.lifecycle.OnError(cause)
		}
	} else {
		x.logger.Info().Log(`terminated`)
	}

	// writes outlive the bridge, but not Done
	go func() {
		x.writes.wait()
		close(x.done)
	}()
}

func (x *Bridge) reportLatencies() {
	report := x.latency.report()
	x.mu.Lock()
	x.latencies = report
	x.mu.Unlock()
	for _, l := range report {
		x.logger.Info().
			Str(`message`, l.Name).
			Int(`count`, l.Count).
			Dur(`mean`, l.Mean).
			Dur(`p50`, l.P50).
			Dur(`p99`, l.P99).
			Dur(`max`, l.Max).
			Log(`message latency`)
	}
}

// fail terminates the bridge due to a protocol violation.
func (x *Bridge) fail(err error) { x.terminate(err) }

func (x *Bridge) terminatedErr() error { return terminatedError(x.Err()) }

// submit runs fn on the loop, or calls reject if that is not possible.
func (x *Bridge) submit(reject func(err error), fn func()) {
	if x.closed.Load() {
		reject(x.terminatedErr())
		return
	}
	if err := x.loop.Submit(fn); err != nil {
		reject(fmt.Errorf(`%w: %w`, ErrTerminated, err))
	}
}

func (x *Bridge) sendEvent(status protocol.Status, values ...any) *Future[struct{}] {
	f := newFuture[struct{}](x)
	x.submit(f.reject, func() {
		_ = x.enqueue(&queuedEvent{status: status, values: values, onAck: ackFuture(f)})
	})
	return f
}

// enqueue adds an event to the queue. On failure, the event's onAck is
// called, and the bridge is terminated, if it was not already.
func (x *Bridge) enqueue(ev *queuedEvent) error {
	var err error
	if x.closed.Load() {
		err = x.terminatedErr()
	} else if err = x.queue.enqueue(ev); err != nil {
		x.fail(err)
		err = terminatedError(err)
	} else {
		return nil
	}
	if ev.onAck != nil {
		ev.onAck(err)
	}
	return err
}

// request registers a oneshot request, failing it immediately if the bridge
// has terminated.
func (x *Bridge) request(tag protocol.Kind, req *oneshotRequest) {
	if x.closed.Load() {
		if req.reject != nil {
			req.reject(x.terminatedErr())
		}
		return
	}
	if err := x.oneshot.request(tag, req); err != nil {
		x.fail(err)
	}
	x.closeOneshotIfTerminated()
}

// closeOneshotIfTerminated rejects requests registered after termination.
func (x *Bridge) closeOneshotIfTerminated() {
	if x.closed.Load() && x.oneshot.outstanding() != 0 {
		x.oneshot.close(x.terminatedErr())
	}
}

// allocateSharedBuffer asks the compute side for a buffer of exactly size
// bytes, calling fill with it. A buffer of any other size is fatal.
func (x *Bridge) allocateSharedBuffer(size int, fill func(id int32, buf []byte) error, reject func(err error)) {
	x.request(protocol.KindSharedBufResponse, &oneshotRequest{
		start: func() error {
			return x.enqueue(&queuedEvent{status: protocol.StatusRequestSharedBuf, values: []any{size}})
		},
		resolve: func(msg protocol.Message) error {
			resp, ok := msg.(protocol.SharedBufResponse)
			if !ok {
				return &ProtocolError{Op: `shared buffer`, Reason: fmt.Sprintf(`unexpected reply %T`, msg)}
			}
			if len(resp.Buffer) != size {
				err := &ProtocolError{Op: `shared buffer`, Reason: fmt.Sprintf(`size mismatch: requested %d, got %d`, size, len(resp.Buffer))}
				if reject != nil {
					reject(terminatedError(err))
				}
				return err
			}
			return fill(resp.ID, resp.Buffer)
		},
		reject: reject,
	})
}

// writeBuffer transfers data via a shared buffer, then sends an event
// referencing it. The onAck callback may be nil.
func (x *Bridge) writeBuffer(data []byte, status protocol.Status, values func(id int32) []any, onAck func(err error)) {
	x.allocateSharedBuffer(len(data), func(id int32, buf []byte) error {
		copy(buf, data)
		_ = x.enqueue(&queuedEvent{status: status, values: values(id), onAck: onAck})
		return nil
	}, onAck)
}

func (x *Bridge) errorOutput(message string, onAck func(err error)) {
	x.writeBuffer([]byte(message), protocol.StatusNotifyErrorOutput, func(id int32) []any {
		return []any{id}
	}, onAck)
}

func ackFuture(f *Future[struct{}]) func(err error) {
	return func(err error) { f.resolve(struct{}{}, err) }
}
