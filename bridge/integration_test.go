package bridge_test

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-workerbridge/bridge"
	"github.com/joeycumines/go-workerbridge/mailbox"
	"github.com/joeycumines/go-workerbridge/protocol"
	"github.com/joeycumines/go-workerbridge/render"
	"github.com/joeycumines/go-workerbridge/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoEngine draws each key it receives on its own line.
type echoEngine struct {
	host  worker.Host
	mu    sync.Mutex
	files map[string]string
	line  int
}

func (x *echoEngine) Start(_ context.Context, host worker.Host, _ protocol.StartOptions) error {
	x.host = host
	x.files = make(map[string]string)
	return host.SetTitle(`echo`)
}

func (x *echoEngine) Key(_ context.Context, key protocol.KeyEvent) error {
	if key.Key == `q` && key.Ctrl {
		x.host.Exit(0)
		return nil
	}
	x.line++
	return x.host.Draw(
		render.FillRect{Color: `black`, Rect: render.Rect{Y: x.line, W: 80, H: 1}},
		render.DrawText{Text: key.Key, Y: x.line},
	)
}

func (x *echoEngine) Resize(context.Context, int, int) error { return nil }

func (x *echoEngine) OpenFile(_ context.Context, filename string, contents []byte) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.files[filename] = string(contents)
	return x.host.WriteFile(`/persist/`+filename, contents)
}

func (x *echoEngine) ClipboardText(_ context.Context, text string, ok bool) error {
	if !ok {
		return nil
	}
	return x.host.Draw(render.DrawText{Text: `clipboard:` + text})
}

func (x *echoEngine) Cmdline(_ context.Context, cmdline string) (bool, error) {
	switch {
	case cmdline == `paste`:
		return true, x.host.ReadClipboard()
	case strings.HasPrefix(cmdline, `call `):
		return true, x.host.EvalFunc(strings.TrimPrefix(cmdline, `call `), `[]`, false)
	default:
		return cmdline == `redraw`, nil
	}
}

func (x *echoEngine) EvalFuncResult(_ context.Context, result string, isError bool) error {
	if isError {
		return errors.New(result)
	}
	return x.host.Draw(render.DrawText{Text: `result:` + result})
}

func (x *echoEngine) ErrorOutput(context.Context, string) error { return nil }

type textSurface struct {
	mu    sync.Mutex
	texts []string
}

func (x *textSurface) FillRect(render.Rect, string)   {}
func (x *textSurface) InvertRect(render.Rect)         {}
func (x *textSurface) CopyRect(render.Rect, int, int) {}

func (x *textSurface) DrawText(_, _ int, text string, _ render.TextStyle) {
	x.mu.Lock()
	x.texts = append(x.texts, text)
	x.mu.Unlock()
}

func (x *textSurface) contains(text string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, v := range x.texts {
		if v == text {
			return true
		}
	}
	return false
}

type clipboardText string

func (x clipboardText) ReadText(context.Context) (string, error) { return string(x), nil }
func (x clipboardText) WriteText(context.Context, string) error  { return nil }

type evaluatorFunc func(body string) (string, error)

func (f evaluatorFunc) EvalFunc(_ context.Context, body, _ string) (string, error) { return f(body) }
func (f evaluatorFunc) Eval(context.Context, string, string) error                 { return nil }

type memoryPersistence struct {
	mu    sync.Mutex
	files map[string]string
}

func (x *memoryPersistence) WriteFile(_ context.Context, filename string, contents []byte) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.files[filename] = string(contents)
	return nil
}

func (x *memoryPersistence) get(filename string) (string, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	v, ok := x.files[filename]
	return v, ok
}

// checkNumGoroutines returns a func that fails the test if the number of
// goroutines has not returned to the current count within timeout.
func checkNumGoroutines(timeout time.Duration) func(t *testing.T) {
	before := runtime.NumGoroutine()
	return func(t *testing.T) {
		t.Helper()
		deadline := time.Now().Add(timeout)
		for {
			after := runtime.NumGoroutine()
			if after <= before {
				return
			}
			if time.Now().After(deadline) {
				t.Errorf(`goroutines leaked: %d before, %d after`, before, after)
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestBridge_endToEnd(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t) // should always clean up

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	loop, err := eventloop.New()
	require.NoError(t, err)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(ctx)
	}()
	defer func() {
		cancel()
		<-loopDone
	}()

	mb, err := mailbox.New()
	require.NoError(t, err)
	defer mb.Close()
	ch := protocol.NewChannel(0)

	engine := &echoEngine{}
	w, err := worker.New(mb, ch, engine)
	require.NoError(t, err)
	workerDone := make(chan error, 1)
	go func() { workerDone <- w.Run(ctx) }()

	surface := &textSurface{}
	persistence := &memoryPersistence{files: make(map[string]string)}
	titles := make(chan string, 4)
	exits := make(chan int, 1)
	b, err := bridge.New(loop, mb, ch,
		bridge.WithDebug(true),
		bridge.WithSurface(surface),
		bridge.WithFrameInterval(time.Millisecond),
		bridge.WithClipboard(clipboardText(`from host`)),
		bridge.WithEvaluator(evaluatorFunc(func(body string) (string, error) { return `"` + body + `"`, nil })),
		bridge.WithPersistence(persistence),
		bridge.WithLatencyTracking(true),
		bridge.WithLifecycle(bridge.LifecycleFuncs{
			Title: func(title string) { titles <- title },
			Exit:  func(status int) { exits <- status },
		}),
	)
	require.NoError(t, err)

	require.NoError(t, b.Start(ctx, protocol.StartOptions{}))
	assert.Equal(t, `echo`, <-titles)

	// many keys, all queued before the first is acknowledged
	var keys []*bridge.Future[struct{}]
	for _, k := range []string{`h`, `e`, `l`, `l`, `o`} {
		keys = append(keys, b.SendKey(protocol.KeyEvent{Key: k}))
	}
	resize := b.Resize(1024, 768)
	for _, f := range append(keys, resize) {
		_, err := f.Wait(ctx)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return surface.contains(`o`) }, 5*time.Second, time.Millisecond)

	_, err = b.Cmdline(`redraw`).Wait(ctx)
	require.NoError(t, err)
	_, err = b.Cmdline(`nope`).Wait(ctx)
	var remoteErr *bridge.RemoteError
	require.ErrorAs(t, err, &remoteErr)

	_, err = b.DropFile(`notes.txt`, []byte(`some notes`)).Wait(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		v, ok := persistence.get(`/persist/notes.txt`)
		return ok && v == `some notes`
	}, 5*time.Second, time.Millisecond)

	_, err = b.Cmdline(`paste`).Wait(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return surface.contains(`clipboard:from host`) }, 5*time.Second, time.Millisecond)

	_, err = b.Cmdline(`call answer`).Wait(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return surface.contains(`result:"answer"`) }, 5*time.Second, time.Millisecond)

	_, err = b.SendKey(protocol.KeyEvent{Key: `q`, Ctrl: true}).Wait(ctx)
	require.NoError(t, err)

	select {
	case <-b.Done():
	case <-ctx.Done():
		t.Fatal(ctx.Err())
	}
	assert.NoError(t, b.Err())
	assert.Equal(t, 0, <-exits)
	var names []string
	for _, l := range b.Latencies() {
		names = append(names, l.Name)
	}
	assert.Contains(t, names, `done`)
	assert.Contains(t, names, `exit`)
	assert.NoError(t, <-workerDone)
	assert.Zero(t, w.Buffers().Len())
}
