package hosteval

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/joeycumines/go-workerbridge/bridge"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ bridge.Evaluator = (*Evaluator)(nil)

func TestEvaluator_EvalFunc(t *testing.T) {
	for _, tc := range [...]struct {
		name   string
		body   string
		args   string
		result string
		err    string
	}{
		{name: `sum`, body: `return arguments[0] + arguments[1]`, args: `[1, 2]`, result: `3`},
		{name: `object`, body: `return {a: arguments[0], b: [true, null]}`, args: `["x"]`, result: `{"a":"x","b":[true,null]}`},
		{name: `undefined`, body: `return`, args: `[]`, result: `null`},
		{name: `no args`, body: `return arguments.length`, result: `0`},
		{name: `function`, body: `return function () {}`, args: `[]`, result: `null`},
		{name: `fulfilled promise`, body: `return Promise.resolve(42)`, args: `[]`, result: `42`},
		{name: `async`, body: `return (async () => { await null; return 'done' })()`, args: `[]`, result: `"done"`},
		{name: `await`, body: `const v = await Promise.resolve(arguments[0]); return v + 1;`, args: `[41]`, result: `42`},
		{name: `await rejected`, body: `await Promise.reject(new RangeError('out')); return 1`, args: `[]`, err: `RangeError: out`},
		{name: `await pending`, body: `await new Promise(() => {}); return 1`, args: `[]`, err: ErrPromisePending.Error()},
		{name: `throw`, body: `throw new Error('boom')`, args: `[]`, err: `Error: boom`},
		{name: `rejected promise`, body: `return Promise.reject('nope')`, args: `[]`, err: `promise rejected: nope`},
		{name: `pending promise`, body: `return new Promise(() => {})`, args: `[]`, err: ErrPromisePending.Error()},
		{name: `invalid args`, body: `return 1`, args: `{`, err: `invalid arguments`},
		{name: `syntax`, body: `return )`, args: `[]`, err: `Unexpected token`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e, err := New()
			require.NoError(t, err)
			result, err := e.EvalFunc(context.Background(), tc.body, tc.args)
			if tc.err != `` {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tc.result, result)
		})
	}
}

func TestEvaluator_exception(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	_, err = e.EvalFunc(context.Background(), `throw new TypeError('bad type')`, `[]`)
	var target *ExceptionError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, `TypeError: bad type`, target.Message)
	assert.Contains(t, target.Stack, `evalfunc`)
}

func TestEvaluator_EvalFuncSteps(t *testing.T) {
	for _, tc := range [...]struct {
		name    string
		body    string
		context string
		message string
		stack   bool
	}{
		{name: `syntax`, body: `return )`, context: `Could not construct function`, message: `Unexpected token`},
		{name: `throw`, body: `throw new Error('boom')`, context: `Exception was thrown while evaluating function`, message: `Error: boom`, stack: true},
		{name: `await throw`, body: `await null; throw new Error('late')`, context: `Exception was thrown while evaluating function`, message: `Error: late`, stack: true},
		{name: `serialize`, body: `return 10n`, context: `Could not serialize return value as JSON from function`, message: `BigInt`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e, err := New()
			require.NoError(t, err)
			_, err = e.EvalFunc(context.Background(), tc.body, `[]`)
			var target bridge.ScriptError
			require.ErrorAs(t, err, &target)
			assert.Equal(t, tc.context, target.ScriptContext())
			assert.Contains(t, target.Error(), tc.message)
			if tc.stack {
				assert.Contains(t, target.ScriptStack(), tc.message)
				assert.Contains(t, target.ScriptStack(), `evalfunc`)
			}
		})
	}
}

func TestEvaluator_statePersists(t *testing.T) {
	e, err := New(WithGlobal(`prefix`, `v:`))
	require.NoError(t, err)
	require.NoError(t, e.Eval(context.Background(), `init.js`, `var counter = 10`))
	result, err := e.EvalFunc(context.Background(), `counter++; return prefix + counter`, `[]`)
	require.NoError(t, err)
	assert.Equal(t, `"v:11"`, result)
}

func TestEvaluator_Eval(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	assert.NoError(t, e.Eval(context.Background(), `ok.js`, `1 + 1`))
	err = e.Eval(context.Background(), `bad.js`, `throw 'oops'`)
	var target *ExceptionError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, `oops`, target.Message)
	assert.Contains(t, target.Stack, `bad.js`)
}

func TestEvaluator_interrupt(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.EvalFunc(ctx, `for (;;) {}`, `[]`)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// usable afterwards
	result, err := e.EvalFunc(context.Background(), `return 'alive'`, `[]`)
	require.NoError(t, err)
	assert.Equal(t, `"alive"`, result)
}

func TestEvaluator_console(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
	e, err := New(WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, e.Eval(context.Background(), `log.js`, `console.warn('hello', 1, {})`))
	assert.Contains(t, buf.String(), `"msg":"hello 1 [object Object]"`)
	assert.Contains(t, buf.String(), `"source":"console"`)
}
