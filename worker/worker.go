package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/go-workerbridge/mailbox"
	"github.com/joeycumines/go-workerbridge/protocol"
	"github.com/joeycumines/logiface"
)

var (
	// ErrAlreadyRunning is returned by Worker.Run if called more than once.
	ErrAlreadyRunning = errors.New(`worker: already running`)

	// ErrUnexpectedMessage is returned if the control side sends anything
	// other than Start.
	ErrUnexpectedMessage = errors.New(`worker: unexpected message`)
)

// UnknownStatusError indicates a mailbox event of an unrecognized kind.
type UnknownStatusError struct {
	Status protocol.Status
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf(`worker: unknown event %s`, e.Status)
}

// DecodeError indicates a malformed event payload.
type DecodeError struct {
	Err    error
	Status protocol.Status
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf(`worker: decode %s: %v`, e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Worker is the compute side. Instances must be initialized using New.
type Worker struct {
	mailbox *mailbox.Mailbox
	channel *protocol.Channel
	engine  Engine
	buffers *Buffers
	logger  *logiface.Logger[logiface.Event]

	mu         sync.Mutex
	running    bool
	exitStatus *int
	debug      bool
}

// New initializes a Worker. The mailbox and channel must be the same ones
// given to the control side.
func New(mb *mailbox.Mailbox, channel *protocol.Channel, engine Engine, opts ...Option) (*Worker, error) {
	if mb == nil || channel == nil || engine == nil {
		return nil, errors.New(`worker: nil mailbox, channel, or engine`)
	}
	cfg, err := resolveWorkerOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Worker{
		mailbox: mb,
		channel: channel,
		engine:  engine,
		buffers: NewBuffers(cfg.bufferLimit),
		logger:  cfg.logger,
	}, nil
}

// Buffers exposes the shared buffer table, e.g. for diagnostics.
func (x *Worker) Buffers() *Buffers { return x.buffers }

// Run waits for the Start message, starts the engine, then processes events
// until the engine exits, ctx is canceled, the channel is closed, or a fatal
// error occurs. Fatal errors are reported to the control side, as an Error
// message, as well as being returned.
//
// A clean exit (Host.Exit, or the control side closing the channel) returns
// nil.
func (x *Worker) Run(ctx context.Context) error {
	x.mu.Lock()
	if x.running {
		x.mu.Unlock()
		return ErrAlreadyRunning
	}
	x.running = true
	x.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// terminating the channel terminates the worker
	go func() {
		select {
		case <-ctx.Done():
		case <-x.channel.Done():
			cancel()
		}
	}()

	x.logger.Debug().Log(`worker started`)
	defer x.logger.Debug().Log(`worker stopped`)

	options, err := x.awaitStart(ctx)
	if err != nil {
		return x.stopped(ctx, err)
	}
	x.debug = options.Debug

	h := &host{ctx: ctx, worker: x}

	if err := x.engine.Start(ctx, h, options); err != nil {
		return x.fatal(ctx, fmt.Errorf(`worker: engine start: %w`, err))
	}
	if err := x.channel.PostToControl(ctx, protocol.Started{}); err != nil {
		return x.stopped(ctx, err)
	}

	for {
		if status, ok := x.exited(); ok {
			x.logger.Info().Int(`status`, status).Log(`engine exited`)
			return x.stopped(ctx, x.channel.PostToControl(ctx, protocol.Exit{Status: status}))
		}

		if _, err := x.mailbox.Wait(ctx); err != nil {
			return x.stopped(ctx, err)
		}

		kind, payload := x.mailbox.Claim()
		status := protocol.Status(kind)

		if x.debug {
			x.logger.Debug().Str(`event`, status.String()).Log(`event claimed`)
		}

		if err := x.handle(ctx, status, payload); err != nil {
			return x.fatal(ctx, err)
		}

		if err := x.channel.PostToControl(ctx, protocol.Done{Status: status}); err != nil {
			return x.stopped(ctx, err)
		}
	}
}

func (x *Worker) awaitStart(ctx context.Context) (protocol.StartOptions, error) {
	select {
	case <-ctx.Done():
		return protocol.StartOptions{}, ctx.Err()
	case msg := <-x.channel.WorkerInbox():
		start, ok := msg.(protocol.Start)
		if !ok {
			return protocol.StartOptions{}, fmt.Errorf(`%w: %s`, ErrUnexpectedMessage, msg.Kind())
		}
		return start.Options, nil
	}
}

func (x *Worker) handle(ctx context.Context, status protocol.Status, payload []int32) error {
	d := mailbox.NewDecoder(payload)

	// decode errors are sticky: only the first is kept
	var decodeErr error
	str := func() string {
		v, err := d.Str()
		if decodeErr == nil {
			decodeErr = err
		}
		return v
	}
	num := func() int {
		v, err := d.Int()
		if decodeErr == nil {
			decodeErr = err
		}
		return v
	}
	flag := func() bool {
		v, err := d.Bool()
		if decodeErr == nil {
			decodeErr = err
		}
		return v
	}
	decoded := func() error {
		if decodeErr != nil {
			return &DecodeError{Status: status, Err: decodeErr}
		}
		return nil
	}

	switch status {
	case protocol.StatusNotifyKey:
		key := protocol.KeyEvent{Key: str(), Code: num(), Ctrl: flag(), Shift: flag(), Alt: flag(), Meta: flag()}
		if err := decoded(); err != nil {
			return err
		}
		return x.engine.Key(ctx, key)

	case protocol.StatusNotifyResize:
		width, height := num(), num()
		if err := decoded(); err != nil {
			return err
		}
		return x.engine.Resize(ctx, width, height)

	case protocol.StatusNotifyOpenFileBufComplete:
		filename, id := str(), num()
		if err := decoded(); err != nil {
			return err
		}
		contents, err := x.buffers.Take(int32(id))
		if err != nil {
			return err
		}
		return x.engine.OpenFile(ctx, filename, contents)

	case protocol.StatusNotifyClipboardWriteComplete:
		cannotSend, id := flag(), num()
		if err := decoded(); err != nil {
			return err
		}
		if cannotSend {
			return x.engine.ClipboardText(ctx, ``, false)
		}
		text, err := x.buffers.Take(int32(id))
		if err != nil {
			return err
		}
		return x.engine.ClipboardText(ctx, string(text), true)

	case protocol.StatusRequestCmdline:
		cmdline := str()
		if err := decoded(); err != nil {
			return err
		}
		success, err := x.engine.Cmdline(ctx, cmdline)
		if err != nil {
			return err
		}
		return x.channel.PostToControl(ctx, protocol.CmdlineResponse{Success: success})

	case protocol.StatusRequestSharedBuf:
		size := num()
		if err := decoded(); err != nil {
			return err
		}
		id, buf, err := x.buffers.Allocate(size)
		if err != nil {
			return err
		}
		return x.channel.PostToControl(ctx, protocol.SharedBufResponse{ID: id, Buffer: buf})

	case protocol.StatusNotifyErrorOutput:
		id := num()
		if err := decoded(); err != nil {
			return err
		}
		message, err := x.buffers.Take(int32(id))
		if err != nil {
			return err
		}
		return x.engine.ErrorOutput(ctx, string(message))

	case protocol.StatusNotifyEvalFuncRet:
		isError, id := flag(), num()
		if err := decoded(); err != nil {
			return err
		}
		result, err := x.buffers.Take(int32(id))
		if err != nil {
			return err
		}
		return x.engine.EvalFuncResult(ctx, string(result), isError)

	default:
		return &UnknownStatusError{Status: status}
	}
}

func (x *Worker) exit(status int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.exitStatus == nil {
		x.exitStatus = &status
	}
}

func (x *Worker) exited() (int, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.exitStatus == nil {
		return 0, false
	}
	return *x.exitStatus, true
}

// fatal reports err to the control side, then returns it.
func (x *Worker) fatal(ctx context.Context, err error) error {
	x.logger.Err().Err(err).Log(`worker failed`)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if postErr := x.channel.PostToControl(ctx, protocol.Error{Message: err.Error()}); postErr != nil {
		x.logger.Warning().Err(postErr).Log(`failed to report worker error`)
	}
	return err
}

// stopped maps errors caused by a requested stop to nil.
func (x *Worker) stopped(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	select {
	case <-x.channel.Done():
		return nil
	default:
	}
	if errors.Is(err, mailbox.ErrClosed) || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		return nil
	}
	return err
}
