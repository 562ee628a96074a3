package protocol

import (
	"github.com/joeycumines/go-workerbridge/render"
)

// Kind identifies a Message. Oneshot replies use their Kind as the
// correlation tag.
type Kind string

const (
	KindStart                Kind = `start`
	KindStarted              Kind = `started`
	KindExit                 Kind = `exit`
	KindDraw                 Kind = `draw`
	KindDone                 Kind = `done`
	KindEvalFunc             Kind = `evalfunc`
	KindEval                 Kind = `eval`
	KindTitle                Kind = `title`
	KindReadClipboardRequest Kind = `read-clipboard:request`
	KindWriteClipboard       Kind = `write-clipboard`
	KindExport               Kind = `export`
	KindWriteFile            Kind = `writefile`
	KindError                Kind = `error`
	KindSharedBufResponse    Kind = `shared-buf:response`
	KindCmdlineResponse      Kind = `cmdline:response`
)

type (
	// Message is anything sent over a Channel.
	Message interface {
		Kind() Kind
	}

	// StartOptions configure the compute side, sent once, via Start.
	StartOptions struct {
		// Files are written into the engine's filesystem before it starts.
		Files map[string][]byte
		// CmdArgs are passed to the engine as its command line.
		CmdArgs []string
		// Dirs are created before the engine starts.
		Dirs []string
		// PersistentDirs are directories whose writes are reported via
		// WriteFile, to be persisted by the control side.
		PersistentDirs []string
		// Debug enables extra invariant checking, on both sides.
		Debug bool
		// Clipboard enables clipboard bridging.
		Clipboard bool
	}

	// Start is sent control -> compute, exactly once.
	Start struct {
		Options StartOptions
	}

	// Started notifies that the engine is initialized, and waiting for events.
	Started struct{}

	// Exit notifies that the engine has exited, no further events will be
	// processed.
	Exit struct {
		Status int
	}

	// Draw carries drawing operations, to be batched until the next frame.
	Draw struct {
		Ops []render.Op
	}

	// Done acknowledges the event currently in the mailbox.
	Done struct {
		Status Status
	}

	// EvalFunc asks the host to call a function body with JSON encoded
	// arguments. Unless NotifyOnly, the result is returned via
	// StatusNotifyEvalFuncRet.
	EvalFunc struct {
		Body       string
		ArgsJSON   string
		NotifyOnly bool
	}

	// Eval asks the host to evaluate source, without a reply.
	Eval struct {
		Path   string
		Source string
	}

	Title struct {
		Title string
	}

	// ReadClipboardRequest asks the host for its clipboard text, returned via
	// StatusNotifyClipboardWriteComplete.
	ReadClipboardRequest struct{}

	WriteClipboard struct {
		Text string
	}

	// Export offers a file to the user, e.g. as a download.
	Export struct {
		Path     string
		Contents []byte
	}

	// WriteFile reports a write to a persistent directory.
	WriteFile struct {
		Filename string
		Contents []byte
	}

	// Error is a fatal error on the compute side.
	Error struct {
		Message string
	}

	// SharedBufResponse is the oneshot reply to StatusRequestSharedBuf.
	SharedBufResponse struct {
		Buffer []byte
		ID     int32
	}

	// CmdlineResponse is the oneshot reply to StatusRequestCmdline.
	CmdlineResponse struct {
		Success bool
	}
)

var (
	// compile time assertions

	_ Message = Start{}
	_ Message = Started{}
	_ Message = Exit{}
	_ Message = Draw{}
	_ Message = Done{}
	_ Message = EvalFunc{}
	_ Message = Eval{}
	_ Message = Title{}
	_ Message = ReadClipboardRequest{}
	_ Message = WriteClipboard{}
	_ Message = Export{}
	_ Message = WriteFile{}
	_ Message = Error{}
	_ Message = SharedBufResponse{}
	_ Message = CmdlineResponse{}
)

func (Start) Kind() Kind                { return KindStart }
func (Started) Kind() Kind              { return KindStarted }
func (Exit) Kind() Kind                 { return KindExit }
func (Draw) Kind() Kind                 { return KindDraw }
func (Done) Kind() Kind                 { return KindDone }
func (EvalFunc) Kind() Kind             { return KindEvalFunc }
func (Eval) Kind() Kind                 { return KindEval }
func (Title) Kind() Kind                { return KindTitle }
func (ReadClipboardRequest) Kind() Kind { return KindReadClipboardRequest }
func (WriteClipboard) Kind() Kind       { return KindWriteClipboard }
func (Export) Kind() Kind               { return KindExport }
func (WriteFile) Kind() Kind            { return KindWriteFile }
func (Error) Kind() Kind                { return KindError }
func (SharedBufResponse) Kind() Kind    { return KindSharedBufResponse }
func (CmdlineResponse) Kind() Kind      { return KindCmdlineResponse }
