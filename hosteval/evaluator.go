// Package hosteval implements bridge.Evaluator using goja, an ECMAScript
// runtime written in Go.
package hosteval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/joeycumines/logiface"
)

// ErrPromisePending is returned if a function returns a promise that is
// still pending once all queued jobs have run. The runtime has no timers or
// other event sources, so it would never settle.
var ErrPromisePending = errors.New(`hosteval: promise pending`)

const (
	stepConstruct = `Could not construct function`
	stepEvaluate  = `Exception was thrown while evaluating function`
	stepSerialize = `Could not serialize return value as JSON from function`
)

type (
	// Evaluator runs host code in a single goja.Runtime, one call at a time.
	// State (globals) persists between calls. Instances must be initialized
	// using New.
	Evaluator struct {
		vm        *goja.Runtime
		stringify goja.Callable
		logger    *logiface.Logger[logiface.Event]
		mu        sync.Mutex
	}

	Option func(*config)

	config struct {
		logger  *logiface.Logger[logiface.Event]
		globals map[string]any
	}
)

// WithLogger routes console.log (and friends) to logger.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(c *config) { c.logger = logger }
}

// WithGlobal sets a global variable, converted using goja.Runtime.ToValue.
func WithGlobal(name string, value any) Option {
	return func(c *config) {
		if c.globals == nil {
			c.globals = make(map[string]any)
		}
		c.globals[name] = value
	}
}

func New(opts ...Option) (*Evaluator, error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper(`json`, true))

	stringify, ok := goja.AssertFunction(vm.Get(`JSON`).ToObject(vm).Get(`stringify`))
	if !ok {
		return nil, errors.New(`hosteval: JSON.stringify unavailable`)
	}

	x := &Evaluator{
		vm:        vm,
		stringify: stringify,
		logger:    c.logger,
	}

	if err := x.installConsole(); err != nil {
		return nil, err
	}
	for name, value := range c.globals {
		if err := vm.Set(name, value); err != nil {
			return nil, fmt.Errorf(`hosteval: global %q: %w`, name, err)
		}
	}

	return x, nil
}

// EvalFunc calls an async function with the given body, with the elements
// of argsJSON (a JSON array) as arguments, so the body may use await. The
// result is returned as JSON, undefined being mapped to null. Failures are
// returned as an ExceptionError, where possible.
func (x *Evaluator) EvalFunc(ctx context.Context, body, argsJSON string) (string, error) {
	var args []any
	if argsJSON != `` {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return ``, fmt.Errorf(`hosteval: invalid arguments: %w`, err)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	defer x.interruptOnDone(ctx)()

	fnValue, err := x.vm.RunScript(`evalfunc`, "(async function () {\n"+body+"\n})")
	if err != nil {
		return ``, withStep(x.convertError(ctx, err), stepConstruct)
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return ``, errors.New(`hosteval: not a function`)
	}

	values := make([]goja.Value, len(args))
	for i, arg := range args {
		values[i] = x.vm.ToValue(arg)
	}

	result, err := fn(goja.Undefined(), values...)
	if err != nil {
		return ``, withStep(x.convertError(ctx, err), stepEvaluate)
	}

	result, err = x.settle(result)
	if err != nil {
		return ``, withStep(err, stepEvaluate)
	}

	if result == nil || goja.IsUndefined(result) {
		return `null`, nil
	}
	encoded, err := x.stringify(goja.Undefined(), result)
	if err != nil {
		return ``, withStep(x.convertError(ctx, err), stepSerialize)
	}
	if goja.IsUndefined(encoded) {
		// e.g. a function
		return `null`, nil
	}
	return encoded.String(), nil
}

// Eval runs source as a script. The path is used in stack traces.
func (x *Evaluator) Eval(ctx context.Context, path, source string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	defer x.interruptOnDone(ctx)()

	result, err := x.vm.RunScript(path, source)
	if err != nil {
		return x.convertError(ctx, err)
	}
	_, err = x.settle(result)
	return err
}

// interruptOnDone interrupts the runtime if ctx is canceled, until the
// returned func is called.
func (x *Evaluator) interruptOnDone(ctx context.Context) func() {
	stop := context.AfterFunc(ctx, func() { x.vm.Interrupt(ctx.Err()) })
	return func() {
		stop()
		x.vm.ClearInterrupt()
	}
}

// settle unwraps promises.
func (x *Evaluator) settle(value goja.Value) (goja.Value, error) {
	if value == nil {
		return nil, nil
	}
	promise, ok := value.Export().(*goja.Promise)
	if !ok {
		return value, nil
	}
	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return promise.Result(), nil
	case goja.PromiseStateRejected:
		reason := promise.Result()
		if stack, ok := errorStack(reason); ok {
			return nil, &ExceptionError{Message: describe(reason), Stack: stack}
		}
		return nil, &RejectionError{Reason: describe(reason)}
	default:
		return nil, ErrPromisePending
	}
}

func (x *Evaluator) convertError(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf(`hosteval: interrupted: %w`, ctxErr)
		}
		return fmt.Errorf(`hosteval: interrupted: %v`, interrupted.Value())
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &ExceptionError{Message: describe(exception.Value()), Stack: exception.String()}
	}
	return err
}

func (x *Evaluator) installConsole() error {
	console := x.vm.NewObject()
	for name, level := range map[string]logiface.Level{
		`log`:   logiface.LevelInformational,
		`info`:  logiface.LevelInformational,
		`debug`: logiface.LevelDebug,
		`warn`:  logiface.LevelWarning,
		`error`: logiface.LevelError,
	} {
		if err := console.Set(name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = describe(arg)
			}
			x.logger.Build(level).Str(`source`, `console`).Log(strings.Join(parts, ` `))
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return x.vm.Set(`console`, console)
}

// errorStack returns the stack property of thrown errors.
func errorStack(value goja.Value) (string, bool) {
	obj, ok := value.(*goja.Object)
	if !ok {
		return ``, false
	}
	stack := obj.Get(`stack`)
	if stack == nil || goja.IsUndefined(stack) || goja.IsNull(stack) {
		return ``, false
	}
	return stack.String(), true
}

// withStep records which step of EvalFunc failed, on an ExceptionError, or
// a SyntaxError from compiling the function.
func withStep(err error, step string) error {
	var exception *ExceptionError
	if errors.As(err, &exception) {
		exception.Context = step
		return err
	}
	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		return &ExceptionError{Context: step, Message: syntax.Error()}
	}
	return err
}

func describe(value goja.Value) string {
	if value == nil {
		return `undefined`
	}
	return value.String()
}

// ExceptionError is a JavaScript exception thrown by host code.
type ExceptionError struct {
	// Context is the step of EvalFunc that failed, if any.
	Context string
	Message string
	// Stack includes the message, and the stack trace, if available.
	Stack string
}

func (e *ExceptionError) Error() string { return e.Message }

// ScriptContext implements bridge.ScriptError.
func (e *ExceptionError) ScriptContext() string { return e.Context }

// ScriptStack implements bridge.ScriptError.
func (e *ExceptionError) ScriptStack() string { return e.Stack }

// RejectionError is a rejected promise returned by host code.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return `promise rejected: ` + e.Reason }
