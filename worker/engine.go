package worker

import (
	"context"

	"github.com/joeycumines/go-workerbridge/protocol"
	"github.com/joeycumines/go-workerbridge/render"
)

type (
	// Engine is the stateful application driven by the Worker. All methods
	// are called from the Worker goroutine, one at a time. Returning an
	// error is fatal, and is reported to the control side.
	Engine interface {
		// Start initializes the engine. The host remains valid until Run
		// returns.
		Start(ctx context.Context, host Host, options protocol.StartOptions) error

		Key(ctx context.Context, key protocol.KeyEvent) error

		// Resize is called with the new size of the drawing area, in pixels.
		Resize(ctx context.Context, width, height int) error

		// OpenFile is called with a file dropped onto the control side.
		OpenFile(ctx context.Context, filename string, contents []byte) error

		// ClipboardText answers Host.ReadClipboard, ok being false if the
		// control side could not read its clipboard.
		ClipboardText(ctx context.Context, text string, ok bool) error

		// Cmdline executes a command, reporting whether it succeeded.
		Cmdline(ctx context.Context, cmdline string) (bool, error)

		// EvalFuncResult answers Host.EvalFunc, result being JSON, or an
		// error message if isError.
		EvalFuncResult(ctx context.Context, result string, isError bool) error

		// ErrorOutput is called with error text reported by the control
		// side, e.g. a failed fire-and-forget evaluation.
		ErrorOutput(ctx context.Context, message string) error
	}

	// Host is how an Engine talks to the control side. Methods post
	// messages, and never wait for the control side to act on them.
	Host interface {
		Draw(ops ...render.Op) error
		SetTitle(title string) error
		Export(path string, contents []byte) error
		// WriteFile reports a write to a persistent directory.
		WriteFile(filename string, contents []byte) error
		// ReadClipboard requests the clipboard text, delivered later via
		// Engine.ClipboardText.
		ReadClipboard() error
		WriteClipboard(text string) error
		// EvalFunc asks the host to call a function body. Unless notifyOnly,
		// the result is delivered via Engine.EvalFuncResult.
		EvalFunc(body, argsJSON string, notifyOnly bool) error
		Eval(path, source string) error
		// Exit stops the Worker after the current event is acknowledged.
		Exit(status int)
	}
)

// host implements Host for a running Worker.
type host struct {
	ctx    context.Context
	worker *Worker
}

var _ Host = (*host)(nil)

func (x *host) post(msg protocol.Message) error {
	return x.worker.channel.PostToControl(x.ctx, msg)
}

func (x *host) Draw(ops ...render.Op) error {
	if len(ops) == 0 {
		return nil
	}
	return x.post(protocol.Draw{Ops: ops})
}

func (x *host) SetTitle(title string) error { return x.post(protocol.Title{Title: title}) }

func (x *host) Export(path string, contents []byte) error {
	return x.post(protocol.Export{Path: path, Contents: contents})
}

func (x *host) WriteFile(filename string, contents []byte) error {
	return x.post(protocol.WriteFile{Filename: filename, Contents: contents})
}

func (x *host) ReadClipboard() error { return x.post(protocol.ReadClipboardRequest{}) }

func (x *host) WriteClipboard(text string) error {
	return x.post(protocol.WriteClipboard{Text: text})
}

func (x *host) EvalFunc(body, argsJSON string, notifyOnly bool) error {
	return x.post(protocol.EvalFunc{Body: body, ArgsJSON: argsJSON, NotifyOnly: notifyOnly})
}

func (x *host) Eval(path, source string) error {
	return x.post(protocol.Eval{Path: path, Source: source})
}

func (x *host) Exit(status int) { x.worker.exit(status) }
