package termui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joeycumines/go-workerbridge/bridge"
	"github.com/joeycumines/go-workerbridge/protocol"
)

var (
	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 1)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

type (
	// FrameMsg notifies the model that the screen changed.
	FrameMsg struct{}

	TitleMsg struct {
		Title string
	}

	// ExitMsg quits the program, after the compute side exits.
	ExitMsg struct {
		Status int
	}

	// ErrMsg quits the program, after the bridge fails.
	ErrMsg struct {
		Err error
	}

	// Config models the collaborators of a Model.
	Config struct {
		Screen *Screen
		// OnKey is called with each key press. Must not block.
		OnKey func(key protocol.KeyEvent)
		// OnResize is called with the new size of the screen, in drawing
		// units. Must not block.
		OnResize func(width, height int)
		// OnPaste is called with bracketed pastes, which have no key
		// equivalent. Must not block.
		OnPaste func(text string)
		// QuitKey, if set, quits the program without involving the compute
		// side, e.g. "ctrl+\\".
		QuitKey string
	}

	// Model is the bubbletea model displaying a Screen.
	Model struct {
		config Config
		err    error
		title  string
		status *int
		width  int
	}
)

func NewModel(config Config) Model {
	if config.Screen == nil {
		panic(`termui: nil screen`)
	}
	return Model{config: config}
}

// Lifecycle returns a bridge.Lifecycle that forwards to program.
func Lifecycle(program *tea.Program) bridge.Lifecycle {
	return bridge.LifecycleFuncs{
		Title: func(title string) { go program.Send(TitleMsg{Title: title}) },
		Exit:  func(status int) { go program.Send(ExitMsg{Status: status}) },
		Error: func(err error) { go program.Send(ErrMsg{Err: err}) },
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.config.QuitKey != `` && msg.String() == m.config.QuitKey {
			return m, tea.Quit
		}
		if msg.Paste {
			if m.config.OnPaste != nil {
				m.config.OnPaste(string(msg.Runes))
			}
			break
		}
		if key, ok := KeyEvent(msg); ok && m.config.OnKey != nil {
			m.config.OnKey(key)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		// the last row is the status bar
		rows := max(msg.Height-1, 0)
		m.config.Screen.Resize(msg.Width, rows)
		if m.config.OnResize != nil {
			cellW, cellH := m.config.Screen.CellSize()
			m.config.OnResize(msg.Width*cellW, rows*cellH)
		}

	case TitleMsg:
		m.title = msg.Title
		return m, tea.SetWindowTitle(msg.Title)

	case ExitMsg:
		status := msg.Status
		m.status = &status
		return m, tea.Quit

	case ErrMsg:
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) View() string {
	status := m.title
	if m.err != nil {
		status = errorStyle.Render(m.err.Error())
	}
	return m.config.Screen.Render() + "\n" + statusBarStyle.Width(m.width).Render(status)
}

// Err returns the error that quit the program, if any.
func (m Model) Err() error { return m.err }

// ExitStatus returns the exit status of the compute side, if it exited.
func (m Model) ExitStatus() (int, bool) {
	if m.status == nil {
		return 0, false
	}
	return *m.status, true
}
