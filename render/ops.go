package render

import (
	"fmt"
)

type (
	// Surface is the rendering collaborator.
	Surface interface {
		// FillRect paints r with color.
		FillRect(r Rect, color string)
		// DrawText draws a run of text, with the top left cell at x, y.
		DrawText(x, y int, text string, style TextStyle)
		// InvertRect swaps foreground and background within r.
		InvertRect(r Rect)
		// CopyRect copies the contents of src to dstX, dstY.
		CopyRect(src Rect, dstX, dstY int)
	}

	// Op is a single drawing operation.
	Op interface {
		// Name identifies the operation, e.g. for logging.
		Name() string
		// Apply performs the operation against the surface.
		Apply(s Surface)
	}

	Rect struct {
		X, Y, W, H int
	}

	TextStyle struct {
		FG, BG, SP string
		Bold       bool
		Italic     bool
		Underline  bool
		Undercurl  bool
		Strike     bool
	}

	FillRect struct {
		Color string
		Rect
	}

	DrawText struct {
		Text  string
		Style TextStyle
		X, Y  int
	}

	InvertRect struct {
		Rect
	}

	CopyRect struct {
		Src        Rect
		DstX, DstY int
	}
)

var (
	// compile time assertions

	_ Op = FillRect{}
	_ Op = DrawText{}
	_ Op = InvertRect{}
	_ Op = CopyRect{}
)

func (x Rect) String() string {
	return fmt.Sprintf(`%dx%d+%d+%d`, x.W, x.H, x.X, x.Y)
}

// Empty reports whether the rect has no area.
func (x Rect) Empty() bool { return x.W <= 0 || x.H <= 0 }

func (FillRect) Name() string      { return `fillRect` }
func (x FillRect) Apply(s Surface) { s.FillRect(x.Rect, x.Color) }

func (DrawText) Name() string      { return `drawText` }
func (x DrawText) Apply(s Surface) { s.DrawText(x.X, x.Y, x.Text, x.Style) }

func (InvertRect) Name() string      { return `invertRect` }
func (x InvertRect) Apply(s Surface) { s.InvertRect(x.Rect) }

func (CopyRect) Name() string      { return `copyRect` }
func (x CopyRect) Apply(s Surface) { s.CopyRect(x.Src, x.DstX, x.DstY) }
