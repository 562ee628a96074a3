package bridge

import (
	"context"

	"github.com/joeycumines/go-eventloop"
)

type (
	// Loop is the event loop the bridge runs on. It is implemented by
	// *eventloop.Loop.
	Loop interface {
		// Submit schedules task on the loop goroutine. Tasks run in the
		// order they were submitted.
		Submit(task func()) error
		// Promisify runs fn in a new goroutine, settling the returned
		// promise on the loop. Panics reject with eventloop.PanicError.
		Promisify(ctx context.Context, fn func(ctx context.Context) (any, error)) eventloop.Promise
	}

	// Lifecycle receives notifications about the compute side. Methods are
	// called on the loop goroutine, and must not block.
	Lifecycle interface {
		OnStart()
		OnExit(status int)
		OnTitle(title string)
		// OnError is called once, if the bridge terminates abnormally.
		OnError(err error)
	}

	// Clipboard bridges the host clipboard. Methods are called off-loop.
	Clipboard interface {
		ReadText(ctx context.Context) (string, error)
		WriteText(ctx context.Context, text string) error
	}

	// Persistence stores writes to persistent directories. WriteFile is
	// called off-loop, one call at a time, in the order the writes were
	// made.
	Persistence interface {
		WriteFile(ctx context.Context, filename string, contents []byte) error
	}

	// Evaluator runs host code on behalf of the compute side. Methods are
	// called off-loop.
	Evaluator interface {
		// EvalFunc calls a function with the given body, with arguments
		// decoded from argsJSON (a JSON array), returning the JSON encoded
		// result.
		EvalFunc(ctx context.Context, body, argsJSON string) (string, error)
		// Eval runs a script, path being used for diagnostics.
		Eval(ctx context.Context, path, source string) error
	}

	// ScriptError may be implemented by errors returned by
	// Evaluator.EvalFunc, to describe the failure to the compute side as
	// "<context> for jsevalfunc(): <message>: <stack>".
	ScriptError interface {
		error
		// ScriptContext is the step that failed, e.g. "Could not construct
		// function".
		ScriptContext() string
		// ScriptStack is the stack trace, or empty if there is none.
		ScriptStack() string
	}

	// Exporter receives files exported by the compute side. It is called
	// off-loop.
	Exporter interface {
		Export(ctx context.Context, path string, contents []byte) error
	}

	// LifecycleFuncs implements Lifecycle, nil fields being ignored.
	LifecycleFuncs struct {
		Start func()
		Exit  func(status int)
		Title func(title string)
		Error func(err error)
	}
)

var _ Lifecycle = LifecycleFuncs{}

func (x LifecycleFuncs) OnStart() {
	if x.Start != nil {
		x.Start()
	}
}

func (x LifecycleFuncs) OnExit(status int) {
	if x.Exit != nil {
		x.Exit(status)
	}
}

func (x LifecycleFuncs) OnTitle(title string) {
	if x.Title != nil {
		x.Title(title)
	}
}

func (x LifecycleFuncs) OnError(err error) {
	if x.Error != nil {
		x.Error(err)
	}
}
