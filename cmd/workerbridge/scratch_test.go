package main

import (
	"context"
	"strings"
	"testing"

	"github.com/joeycumines/go-workerbridge/protocol"
	"github.com/joeycumines/go-workerbridge/render"
	"github.com/joeycumines/go-workerbridge/termui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHost applies draws to a termui.Screen, and records the rest.
type recordingHost struct {
	screen    *termui.Screen
	titles    []string
	writes    map[string]string
	exports   map[string]string
	clipboard []string
	evals     []string
	reads     int
	exit      *int
}

func newRecordingHost() *recordingHost {
	return &recordingHost{
		screen:  termui.NewScreen(40, 5, 1, 1),
		writes:  make(map[string]string),
		exports: make(map[string]string),
	}
}

func (x *recordingHost) Draw(ops ...render.Op) error {
	for _, op := range ops {
		op.Apply(x.screen)
	}
	return nil
}

func (x *recordingHost) SetTitle(title string) error {
	x.titles = append(x.titles, title)
	return nil
}

func (x *recordingHost) Export(path string, contents []byte) error {
	x.exports[path] = string(contents)
	return nil
}

func (x *recordingHost) WriteFile(filename string, contents []byte) error {
	x.writes[filename] = string(contents)
	return nil
}

func (x *recordingHost) ReadClipboard() error {
	x.reads++
	return nil
}

func (x *recordingHost) WriteClipboard(text string) error {
	x.clipboard = append(x.clipboard, text)
	return nil
}

func (x *recordingHost) EvalFunc(body, _ string, _ bool) error {
	x.evals = append(x.evals, `call `+body)
	return nil
}

func (x *recordingHost) Eval(_, source string) error {
	x.evals = append(x.evals, `eval `+source)
	return nil
}

func (x *recordingHost) Exit(status int) { x.exit = &status }

func (x *recordingHost) lines() []string {
	return strings.Split(x.screen.Text(), "\n")
}

func startScratch(t *testing.T, options protocol.StartOptions) (*scratch, *recordingHost) {
	t.Helper()
	host := newRecordingHost()
	engine := newScratch(1, 1)
	require.NoError(t, engine.Start(context.Background(), host, options))
	require.NoError(t, engine.Resize(context.Background(), 40, 5))
	return engine, host
}

func typeText(t *testing.T, engine *scratch, text string) {
	t.Helper()
	for _, r := range text {
		key := protocol.KeyEvent{Key: string(r)}
		if r == '\n' {
			key.Key = `Enter`
		}
		require.NoError(t, engine.Key(context.Background(), key))
	}
}

func TestScratch_startLoadsPersistedFile(t *testing.T) {
	_, host := startScratch(t, protocol.StartOptions{
		Files:          map[string][]byte{`/persist/scratch.txt`: []byte("one\ntwo")},
		PersistentDirs: []string{`/persist`},
	})
	assert.Equal(t, []string{`/persist/scratch.txt`}, host.titles)
	lines := host.lines()
	assert.Equal(t, `one`, lines[0])
	assert.Equal(t, `two`, lines[1])
}

func TestScratch_editAndSave(t *testing.T) {
	engine, host := startScratch(t, protocol.StartOptions{PersistentDirs: []string{`/persist`}})
	typeText(t, engine, "helo\nworld")
	require.NoError(t, engine.Key(context.Background(), protocol.KeyEvent{Key: `ArrowUp`}))
	require.NoError(t, engine.Key(context.Background(), protocol.KeyEvent{Key: `Backspace`}))
	typeText(t, engine, "lo")
	require.NoError(t, engine.Key(context.Background(), protocol.KeyEvent{Key: `s`, Ctrl: true}))

	assert.Equal(t, map[string]string{`/persist/scratch.txt`: "hello\nworld"}, host.writes)
	lines := host.lines()
	assert.Equal(t, `hello`, lines[0])
	assert.Equal(t, `world`, lines[1])
	assert.Equal(t, `wrote 11 bytes`, lines[4])
}

func TestScratch_backspaceJoinsLines(t *testing.T) {
	engine, _ := startScratch(t, protocol.StartOptions{})
	typeText(t, engine, "ab\ncd")
	require.NoError(t, engine.Key(context.Background(), protocol.KeyEvent{Key: `Home`}))
	require.NoError(t, engine.Key(context.Background(), protocol.KeyEvent{Key: `Backspace`}))
	assert.Equal(t, `abcd`, string(engine.contents()))
	assert.Equal(t, 2, engine.cx)
}

func TestScratch_saveOutsidePersistentDirs(t *testing.T) {
	engine, host := startScratch(t, protocol.StartOptions{})
	ok, err := engine.Cmdline(context.Background(), `w /tmp/x`)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, host.writes)
	assert.Equal(t, `/tmp/x is not persistent`, host.lines()[4])
}

func TestScratch_clipboard(t *testing.T) {
	engine, host := startScratch(t, protocol.StartOptions{})
	require.NoError(t, engine.Key(context.Background(), protocol.KeyEvent{Key: `v`, Ctrl: true}))
	assert.Equal(t, 1, host.reads)
	require.NoError(t, engine.ClipboardText(context.Background(), "a\nb", true))
	assert.Equal(t, "a\nb", string(engine.contents()))

	require.NoError(t, engine.Key(context.Background(), protocol.KeyEvent{Key: `y`, Ctrl: true}))
	assert.Equal(t, []string{`b`}, host.clipboard)

	require.NoError(t, engine.ClipboardText(context.Background(), ``, false))
	assert.Equal(t, `clipboard unavailable`, host.lines()[4])
}

func TestScratch_evalFunc(t *testing.T) {
	engine, host := startScratch(t, protocol.StartOptions{})
	typeText(t, engine, `return 1 + 1`)
	require.NoError(t, engine.Key(context.Background(), protocol.KeyEvent{Key: `e`, Ctrl: true}))
	assert.Equal(t, []string{`call return 1 + 1`}, host.evals)

	require.NoError(t, engine.Key(context.Background(), protocol.KeyEvent{Key: `Enter`}))
	require.NoError(t, engine.EvalFuncResult(context.Background(), `2`, false))
	assert.Equal(t, "return 1 + 1\n2", string(engine.contents()))

	require.NoError(t, engine.EvalFuncResult(context.Background(), `boom`, true))
	assert.Equal(t, `boom`, host.lines()[4])
}

func TestScratch_Cmdline(t *testing.T) {
	engine, host := startScratch(t, protocol.StartOptions{PersistentDirs: []string{`/persist`}})
	ctx := context.Background()

	for _, tc := range [...]struct {
		Cmdline string
		OK      bool
	}{
		{Cmdline: `title hi`, OK: true},
		{Cmdline: `eval x = 1`, OK: true},
		{Cmdline: `call return x`, OK: true},
		{Cmdline: `export out.txt`, OK: true},
		{Cmdline: `export`, OK: false},
		{Cmdline: `e`, OK: false},
		{Cmdline: `e notes.txt`, OK: true},
		{Cmdline: `bogus`, OK: false},
	} {
		ok, err := engine.Cmdline(ctx, tc.Cmdline)
		require.NoError(t, err, tc.Cmdline)
		assert.Equal(t, tc.OK, ok, tc.Cmdline)
	}

	assert.Equal(t, []string{`/persist/scratch.txt`, `hi`, `/persist/notes.txt`}, host.titles)
	assert.Equal(t, []string{`eval x = 1`, `call return x`}, host.evals)
	assert.Equal(t, map[string]string{`out.txt`: ``}, host.exports)
	assert.Equal(t, `not a command: bogus`, host.lines()[4])

	ok, err := engine.Cmdline(ctx, `cq`)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, host.exit)
	assert.Equal(t, 1, *host.exit)
}

func TestScratch_OpenFile(t *testing.T) {
	engine, host := startScratch(t, protocol.StartOptions{PersistentDirs: []string{`/persist`}})
	require.NoError(t, engine.OpenFile(context.Background(), `dropped.txt`, []byte(`dropped`)))
	assert.Equal(t, `/persist/dropped.txt`, engine.path)
	assert.Equal(t, map[string]string{`/persist/dropped.txt`: `dropped`}, host.writes)
	assert.Equal(t, `dropped`, host.lines()[0])
}

func TestScratch_scrolls(t *testing.T) {
	engine, host := startScratch(t, protocol.StartOptions{})
	typeText(t, engine, "1\n2\n3\n4\n5\n6")
	// 4 rows of text, plus the message row
	assert.Equal(t, 2, engine.top)
	lines := host.lines()
	assert.Equal(t, `3`, lines[0])
	assert.Equal(t, `6`, lines[3])
}

func TestScratch_quit(t *testing.T) {
	engine, host := startScratch(t, protocol.StartOptions{})
	require.NoError(t, engine.Key(context.Background(), protocol.KeyEvent{Key: `q`, Ctrl: true}))
	require.NotNil(t, host.exit)
	assert.Equal(t, 0, *host.exit)
}
