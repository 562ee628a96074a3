package main

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/joeycumines/go-workerbridge/protocol"
	"github.com/joeycumines/go-workerbridge/render"
	"github.com/joeycumines/go-workerbridge/worker"
)

const (
	scratchBackground = `#1c1c1c`
	scratchForeground = `#d0d0d0`
	scratchMessage    = `#ffaf00`
	scratchDefault    = `scratch.txt`
)

// scratch is a minimal line editor, run as the compute side engine.
//
//   - ctrl+s saves, ctrl+q quits
//   - ctrl+v pastes the host clipboard, ctrl+y copies the current line
//   - ctrl+e evaluates the current line as a function body, on the host
//
// Commands (see Cmdline) cover the rest.
type scratch struct {
	host       worker.Host
	files      map[string][]byte
	persistent []string
	path       string
	message    string
	lines      [][]rune
	cellW      int
	cellH      int
	cols       int
	rows       int
	cx, cy     int
	top        int
}

var _ worker.Engine = (*scratch)(nil)

func newScratch(cellW, cellH int) *scratch {
	return &scratch{cellW: cellW, cellH: cellH}
}

func (x *scratch) Start(_ context.Context, host worker.Host, options protocol.StartOptions) error {
	x.host = host
	x.files = make(map[string][]byte, len(options.Files))
	for k, v := range options.Files {
		x.files[k] = v
	}
	x.persistent = options.PersistentDirs

	name := scratchDefault
	if len(options.CmdArgs) != 0 {
		name = options.CmdArgs[0]
	}
	return x.open(x.resolve(name))
}

func (x *scratch) Key(_ context.Context, key protocol.KeyEvent) error {
	if key.Ctrl {
		switch key.Key {
		case `q`:
			x.host.Exit(0)
			return nil
		case `s`:
			return x.save(x.path)
		case `v`:
			return x.host.ReadClipboard()
		case `y`:
			return x.host.WriteClipboard(string(x.lines[x.cy]))
		case `e`:
			return x.host.EvalFunc(string(x.lines[x.cy]), `[]`, false)
		}
		return nil
	}

	switch key.Key {
	case `Enter`:
		x.insert("\n")
	case `Backspace`:
		x.backspace()
	case `ArrowUp`:
		x.move(0, -1)
	case `ArrowDown`:
		x.move(0, 1)
	case `ArrowLeft`:
		x.move(-1, 0)
	case `ArrowRight`:
		x.move(1, 0)
	case `Home`:
		x.cx = 0
	case `End`:
		x.cx = len(x.lines[x.cy])
	default:
		if key.Meta || utf8.RuneCountInString(key.Key) != 1 {
			return nil
		}
		x.insert(key.Key)
	}
	return x.redraw()
}

func (x *scratch) Resize(_ context.Context, width, height int) error {
	x.cols, x.rows = width/x.cellW, height/x.cellH
	return x.redraw()
}

func (x *scratch) OpenFile(_ context.Context, filename string, contents []byte) error {
	filename = x.resolve(path.Base(filename))
	x.files[filename] = contents
	if err := x.open(filename); err != nil {
		return err
	}
	if x.isPersistent(filename) {
		return x.host.WriteFile(filename, contents)
	}
	return nil
}

func (x *scratch) ClipboardText(_ context.Context, text string, ok bool) error {
	if !ok {
		x.message = `clipboard unavailable`
	} else {
		x.insert(text)
	}
	return x.redraw()
}

// Cmdline runs one of:
//
//	w [path]      save
//	e path        open
//	export path   export the buffer to the host
//	title text    set the title
//	eval source   evaluate source on the host
//	call body     evaluate a function body on the host, inserting the result
//	q             quit
//	cq            quit with status 1
func (x *scratch) Cmdline(_ context.Context, cmdline string) (bool, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(cmdline), ` `)
	arg = strings.TrimSpace(arg)
	switch name {
	case `w`:
		target := x.path
		if arg != `` {
			target = x.resolve(arg)
		}
		return true, x.save(target)
	case `e`:
		if arg == `` {
			return false, nil
		}
		return true, x.open(x.resolve(arg))
	case `export`:
		if arg == `` {
			return false, nil
		}
		return true, x.host.Export(arg, x.contents())
	case `title`:
		return true, x.host.SetTitle(arg)
	case `eval`:
		return true, x.host.Eval(`cmdline`, arg)
	case `call`:
		return true, x.host.EvalFunc(arg, `[]`, false)
	case `q`:
		x.host.Exit(0)
		return true, nil
	case `cq`:
		x.host.Exit(1)
		return true, nil
	}
	x.message = fmt.Sprintf(`not a command: %s`, name)
	return false, x.redraw()
}

func (x *scratch) EvalFuncResult(_ context.Context, result string, isError bool) error {
	if isError {
		x.message = result
	} else {
		x.insert(result)
	}
	return x.redraw()
}

func (x *scratch) ErrorOutput(_ context.Context, message string) error {
	x.message = message
	return x.redraw()
}

func (x *scratch) resolve(name string) string {
	if path.IsAbs(name) || len(x.persistent) == 0 {
		return name
	}
	return path.Join(x.persistent[0], name)
}

func (x *scratch) isPersistent(filename string) bool {
	for _, dir := range x.persistent {
		if strings.HasPrefix(filename, strings.TrimSuffix(dir, `/`)+`/`) {
			return true
		}
	}
	return false
}

func (x *scratch) open(filename string) error {
	x.path = filename
	x.lines = nil
	for _, line := range strings.Split(string(x.files[filename]), "\n") {
		x.lines = append(x.lines, []rune(line))
	}
	x.cx, x.cy, x.top = 0, 0, 0
	x.message = ``
	if err := x.host.SetTitle(filename); err != nil {
		return err
	}
	return x.redraw()
}

func (x *scratch) save(filename string) error {
	contents := x.contents()
	x.files[filename] = contents
	x.path = filename
	if !x.isPersistent(filename) {
		x.message = fmt.Sprintf(`%s is not persistent`, filename)
		return x.redraw()
	}
	x.message = fmt.Sprintf(`wrote %d bytes`, len(contents))
	if err := x.host.WriteFile(filename, contents); err != nil {
		return err
	}
	return x.redraw()
}

func (x *scratch) contents() []byte {
	var b bytes.Buffer
	for i, line := range x.lines {
		if i != 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(line))
	}
	return b.Bytes()
}

// insert adds text at the cursor, leaving the cursor after it.
func (x *scratch) insert(text string) {
	line := x.lines[x.cy]
	tail := append([]rune(nil), line[x.cx:]...)
	parts := strings.Split(text, "\n")
	x.lines[x.cy] = append(line[:x.cx:x.cx], []rune(parts[0])...)
	x.cx = len(x.lines[x.cy])
	for _, part := range parts[1:] {
		x.cy++
		x.lines = append(x.lines[:x.cy], append([][]rune{[]rune(part)}, x.lines[x.cy:]...)...)
		x.cx = len(x.lines[x.cy])
	}
	x.lines[x.cy] = append(x.lines[x.cy], tail...)
}

func (x *scratch) backspace() {
	switch {
	case x.cx > 0:
		line := x.lines[x.cy]
		x.lines[x.cy] = append(line[:x.cx-1:x.cx-1], line[x.cx:]...)
		x.cx--
	case x.cy > 0:
		prev := x.lines[x.cy-1]
		x.cx = len(prev)
		x.lines[x.cy-1] = append(prev, x.lines[x.cy]...)
		x.lines = append(x.lines[:x.cy], x.lines[x.cy+1:]...)
		x.cy--
	}
}

func (x *scratch) move(dx, dy int) {
	x.cy = min(max(x.cy+dy, 0), len(x.lines)-1)
	x.cx = min(max(x.cx+dx, 0), len(x.lines[x.cy]))
}

func (x *scratch) redraw() error {
	if x.cols <= 0 || x.rows <= 0 {
		return nil
	}

	// the last row is for messages
	height := max(x.rows-1, 1)
	if x.cy < x.top {
		x.top = x.cy
	} else if x.cy >= x.top+height {
		x.top = x.cy - height + 1
	}

	ops := []render.Op{render.FillRect{
		Color: scratchBackground,
		Rect:  render.Rect{W: x.cols * x.cellW, H: x.rows * x.cellH},
	}}
	style := render.TextStyle{FG: scratchForeground, BG: scratchBackground}
	for row := 0; row < height && x.top+row < len(x.lines); row++ {
		line := x.lines[x.top+row]
		if len(line) == 0 {
			continue
		}
		ops = append(ops, render.DrawText{Text: string(line), Style: style, Y: row * x.cellH})
	}
	if x.message != `` && x.rows > 1 {
		ops = append(ops, render.DrawText{
			Text:  x.message,
			Style: render.TextStyle{FG: scratchMessage, BG: scratchBackground, Bold: true},
			Y:     height * x.cellH,
		})
	}
	ops = append(ops, render.InvertRect{Rect: render.Rect{
		X: x.cx * x.cellW,
		Y: (x.cy - x.top) * x.cellH,
		W: x.cellW,
		H: x.cellH,
	}})
	return x.host.Draw(ops...)
}
