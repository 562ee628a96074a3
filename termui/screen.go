// Package termui presents the compute side in a terminal, using bubbletea.
//
// A [Screen] is a [render.Surface] backed by a grid of character cells,
// and a [Model] is the bubbletea model that displays it, forwarding keys and
// window size changes.
package termui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/joeycumines/go-workerbridge/render"
)

type (
	// Screen is a grid of cells, safe for concurrent use. Coordinates given
	// to the render.Surface methods are divided by the cell size.
	Screen struct {
		cells      []cell
		mu         sync.RWMutex
		cols, rows int
		cellW      int
		cellH      int
		version    uint64
	}

	cell struct {
		style   render.TextStyle
		ch      rune
		reverse bool
	}
)

var _ render.Surface = (*Screen)(nil)

// NewScreen returns a blank screen, each cell representing cellW x cellH
// units of the drawing coordinate space. Sizes < 1 are treated as 1.
func NewScreen(cols, rows, cellW, cellH int) *Screen {
	x := &Screen{cellW: max(cellW, 1), cellH: max(cellH, 1)}
	x.Resize(cols, rows)
	return x
}

// CellSize returns the size of each cell, in drawing units.
func (x *Screen) CellSize() (int, int) { return x.cellW, x.cellH }

// Size returns the number of columns and rows.
func (x *Screen) Size() (int, int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.cols, x.rows
}

// Version increments whenever the screen changes.
func (x *Screen) Version() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.version
}

// Resize changes the dimensions, keeping the content that still fits.
func (x *Screen) Resize(cols, rows int) {
	cols, rows = max(cols, 0), max(rows, 0)
	x.mu.Lock()
	defer x.mu.Unlock()
	cells := make([]cell, cols*rows)
	for i := range cells {
		cells[i].ch = ' '
	}
	for y := 0; y < min(rows, x.rows); y++ {
		copy(cells[y*cols:y*cols+min(cols, x.cols)], x.cells[y*x.cols:])
	}
	x.cells, x.cols, x.rows = cells, cols, rows
	x.version++
}

// FillRect clears r, setting the background.
func (x *Screen) FillRect(r render.Rect, color string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.each(x.cellRect(r), func(c *cell) {
		*c = cell{ch: ' ', style: render.TextStyle{BG: color}}
	})
}

func (x *Screen) DrawText(px, py int, text string, style render.TextStyle) {
	x.mu.Lock()
	defer x.mu.Unlock()
	col, row := px/x.cellW, py/x.cellH
	if row < 0 || row >= x.rows {
		return
	}
	for _, ch := range text {
		if col >= x.cols {
			break
		}
		if col >= 0 {
			x.cells[row*x.cols+col] = cell{ch: ch, style: style}
		}
		col++
	}
	x.version++
}

func (x *Screen) InvertRect(r render.Rect) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.each(x.cellRect(r), func(c *cell) { c.reverse = !c.reverse })
}

func (x *Screen) CopyRect(src render.Rect, dstX, dstY int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	s := x.cellRect(src)
	dx, dy := dstX/x.cellW-s.X, dstY/x.cellH-s.Y
	snapshot := append([]cell(nil), x.cells...)
	for row := s.Y; row < s.Y+s.H; row++ {
		for col := s.X; col < s.X+s.W; col++ {
			if x.in(col, row) && x.in(col+dx, row+dy) {
				x.cells[(row+dy)*x.cols+col+dx] = snapshot[row*x.cols+col]
			}
		}
	}
	x.version++
}

// Text returns the characters on the screen, one line per row, with
// trailing spaces trimmed.
func (x *Screen) Text() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var b strings.Builder
	for row := 0; row < x.rows; row++ {
		line := make([]rune, x.cols)
		for col := range line {
			line[col] = x.cells[row*x.cols+col].ch
		}
		if row != 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.TrimRight(string(line), ` `))
	}
	return b.String()
}

// Render returns the screen, styled using lipgloss.
func (x *Screen) Render() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var b strings.Builder
	for row := 0; row < x.rows; row++ {
		if row != 0 {
			b.WriteByte('\n')
		}
		line := x.cells[row*x.cols : (row+1)*x.cols]
		// runs of the same style are rendered together
		for start := 0; start < len(line); {
			end := start + 1
			for end < len(line) && line[end].style == line[start].style && line[end].reverse == line[start].reverse {
				end++
			}
			text := make([]rune, 0, end-start)
			for _, c := range line[start:end] {
				text = append(text, c.ch)
			}
			b.WriteString(lipglossStyle(line[start]).Render(string(text)))
			start = end
		}
	}
	return b.String()
}

func lipglossStyle(c cell) lipgloss.Style {
	style := lipgloss.NewStyle().
		Bold(c.style.Bold).
		Italic(c.style.Italic).
		Underline(c.style.Underline || c.style.Undercurl).
		Strikethrough(c.style.Strike).
		Reverse(c.reverse)
	if c.style.FG != `` {
		style = style.Foreground(lipgloss.Color(c.style.FG))
	}
	if c.style.BG != `` {
		style = style.Background(lipgloss.Color(c.style.BG))
	}
	return style
}

// cellRect converts r to cells, clipped to the screen.
func (x *Screen) cellRect(r render.Rect) render.Rect {
	x0, y0 := max(r.X/x.cellW, 0), max(r.Y/x.cellH, 0)
	x1 := min(ceilDiv(r.X+r.W, x.cellW), x.cols)
	y1 := min(ceilDiv(r.Y+r.H, x.cellH), x.rows)
	return render.Rect{X: x0, Y: y0, W: max(x1-x0, 0), H: max(y1-y0, 0)}
}

func (x *Screen) each(r render.Rect, fn func(c *cell)) {
	for row := r.Y; row < r.Y+r.H; row++ {
		for col := r.X; col < r.X+r.W; col++ {
			fn(&x.cells[row*x.cols+col])
		}
	}
	x.version++
}

func (x *Screen) in(col, row int) bool {
	return col >= 0 && col < x.cols && row >= 0 && row < x.rows
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
