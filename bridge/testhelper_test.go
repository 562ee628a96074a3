package bridge

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-workerbridge/mailbox"
	"github.com/joeycumines/go-workerbridge/protocol"
	"github.com/joeycumines/go-workerbridge/render"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

// newTestLoop creates a new event loop, starts it, and registers cleanup.
func newTestLoop(t testing.TB) *eventloop.Loop {
	t.Helper()
	loop, err := eventloop.New()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return loop
}

// onLoop runs fn on the loop, and waits for it to complete.
func onLoop(t testing.TB, loop Loop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, loop.Submit(func() {
		defer close(done)
		fn()
	}))
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal(`timed out waiting for loop`)
	}
}

// fakeWorker plays the compute side, driven directly by the test.
type fakeWorker struct {
	t       testing.TB
	mailbox *mailbox.Mailbox
	channel *protocol.Channel
}

type testEnv struct {
	loop    *eventloop.Loop
	bridge  *Bridge
	worker  *fakeWorker
	mailbox *mailbox.Mailbox
	channel *protocol.Channel
}

func newTestEnv(t testing.TB, opts ...Option) *testEnv {
	t.Helper()
	loop := newTestLoop(t)
	mb, err := mailbox.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mb.Close() })
	ch := protocol.NewChannel(0)
	t.Cleanup(ch.Close)
	b, err := New(loop, mb, ch, opts...)
	require.NoError(t, err)
	t.Cleanup(b.Terminate)
	return &testEnv{
		loop:    loop,
		bridge:  b,
		worker:  &fakeWorker{t: t, mailbox: mb, channel: ch},
		mailbox: mb,
		channel: ch,
	}
}

// start runs Bridge.Start, playing the compute side of the handshake.
func (x *testEnv) start(t testing.TB) protocol.StartOptions {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- x.bridge.Start(context.Background(), protocol.StartOptions{}) }()
	msg := x.worker.recv()
	start, ok := msg.(protocol.Start)
	require.True(t, ok, `%T`, msg)
	x.worker.post(protocol.Started{})
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal(`timed out waiting for start`)
	}
	return start.Options
}

func (x *fakeWorker) recv() protocol.Message {
	x.t.Helper()
	select {
	case msg := <-x.channel.WorkerInbox():
		return msg
	case <-time.After(testTimeout):
		x.t.Fatal(`timed out waiting for message`)
		return nil
	}
}

func (x *fakeWorker) post(msg protocol.Message) {
	x.t.Helper()
	require.NoError(x.t, x.channel.PostToControl(context.Background(), msg))
}

// next waits for and claims the next event.
func (x *fakeWorker) next() (protocol.Status, *mailbox.Decoder) {
	x.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	_, err := x.mailbox.Wait(ctx)
	require.NoError(x.t, err)
	status, payload := x.mailbox.Claim()
	return protocol.Status(status), mailbox.NewDecoder(payload)
}

// expect claims the next event, requiring it be of the given kind.
func (x *fakeWorker) expect(status protocol.Status) *mailbox.Decoder {
	x.t.Helper()
	got, d := x.next()
	require.Equal(x.t, status, got)
	return d
}

func (x *fakeWorker) done(status protocol.Status) {
	x.t.Helper()
	x.post(protocol.Done{Status: status})
}

// sharedBuffer handles a RequestSharedBuf event, returning the buffer.
func (x *fakeWorker) sharedBuffer(id int32) []byte {
	x.t.Helper()
	d := x.expect(protocol.StatusRequestSharedBuf)
	size, err := d.Int()
	require.NoError(x.t, err)
	buf := make([]byte, size)
	x.post(protocol.SharedBufResponse{ID: id, Buffer: buf})
	x.done(protocol.StatusRequestSharedBuf)
	return buf
}

func mustStr(t testing.TB, d *mailbox.Decoder) string {
	t.Helper()
	v, err := d.Str()
	require.NoError(t, err)
	return v
}

func mustInt(t testing.TB, d *mailbox.Decoder) int {
	t.Helper()
	v, err := d.Int()
	require.NoError(t, err)
	return v
}

func mustBool(t testing.TB, d *mailbox.Decoder) bool {
	t.Helper()
	v, err := d.Bool()
	require.NoError(t, err)
	return v
}

func waitFuture[T any](t testing.TB, f *Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	v, err := f.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return v, err
}

func waitDone(t testing.TB, b *Bridge) {
	t.Helper()
	select {
	case <-b.Done():
	case <-time.After(testTimeout):
		t.Fatal(`timed out waiting for termination`)
	}
}

// recordingSurface records operations applied to it, as strings.
type recordingSurface struct {
	mu  sync.Mutex
	ops []string
}

var _ render.Surface = (*recordingSurface)(nil)

func (x *recordingSurface) add(op string) {
	x.mu.Lock()
	x.ops = append(x.ops, op)
	x.mu.Unlock()
}

func (x *recordingSurface) snapshot() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.ops...)
}

func (x *recordingSurface) FillRect(r render.Rect, color string)               { x.add(`fill ` + r.String() + ` ` + color) }
func (x *recordingSurface) DrawText(_, _ int, text string, _ render.TextStyle) { x.add(`text ` + text) }
func (x *recordingSurface) InvertRect(r render.Rect)                           { x.add(`invert ` + r.String()) }
func (x *recordingSurface) CopyRect(src render.Rect, _, _ int)                 { x.add(`copy ` + src.String()) }

type lifecycleRecorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (x *lifecycleRecorder) funcs() LifecycleFuncs {
	add := func(s string) {
		x.mu.Lock()
		x.events = append(x.events, s)
		x.mu.Unlock()
	}
	return LifecycleFuncs{
		Start: func() { add(`start`) },
		Exit:  func(status int) { add(`exit ` + strconv.Itoa(status)) },
		Title: func(title string) { add(`title ` + title) },
		Error: func(err error) {
			x.mu.Lock()
			x.errs = append(x.errs, err)
			x.mu.Unlock()
		},
	}
}

func (x *lifecycleRecorder) snapshot() ([]string, []error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.events...), append([]error(nil), x.errs...)
}
