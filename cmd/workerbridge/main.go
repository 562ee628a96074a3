// Command workerbridge runs a small line editor as a compute side engine,
// displayed in the terminal, with files in persistent directories stored in
// sqlite.
//
// Usage:
//
//	workerbridge [file [args...]]
//
// Configuration is read from $WORKERBRIDGE_CONFIG, or
// ~/.config/workerbridge/config.toml, with WORKERBRIDGE_ env overrides.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-workerbridge/bridge"
	"github.com/joeycumines/go-workerbridge/hosteval"
	"github.com/joeycumines/go-workerbridge/mailbox"
	"github.com/joeycumines/go-workerbridge/persist"
	"github.com/joeycumines/go-workerbridge/protocol"
	"github.com/joeycumines/go-workerbridge/termui"
	"github.com/joeycumines/go-workerbridge/worker"
	"github.com/joeycumines/logiface"
)

func main() {
	status, err := run(context.Background(), os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if status == 0 {
			status = 1
		}
	}
	os.Exit(status)
}

func run(ctx context.Context, args []string) (int, error) {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer cancel()

	cfg, err := LoadConfig()
	if err != nil {
		return 0, fmt.Errorf("config: %w", err)
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return 0, fmt.Errorf("log: %w", err)
	}
	defer closeLog()

	loop, err := eventloop.New()
	if err != nil {
		return 0, fmt.Errorf("event loop: %w", err)
	}
	// the loop outlives the bridge, which needs it to finish writes
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(loopCtx); err != nil && loopCtx.Err() == nil {
			logger.Err().Err(err).Log(`event loop stopped`)
		}
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.Persist.Path), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir persist dir: %w", err)
	}
	store, err := persist.Open(cfg.Persist.Path)
	if err != nil {
		return 0, fmt.Errorf("persist: %w", err)
	}
	defer store.Close()

	files, err := store.Load(ctx, cfg.Persist.Dirs...)
	if err != nil {
		return 0, fmt.Errorf("load persisted files: %w", err)
	}

	evaluator, err := newEvaluator(ctx, cfg.Eval, logger)
	if err != nil {
		return 0, err
	}

	mb, err := mailbox.New()
	if err != nil {
		return 0, fmt.Errorf("mailbox: %w", err)
	}
	defer mb.Close()
	channel := protocol.NewChannel(0)

	w, err := worker.New(mb, channel, newScratch(cfg.Render.CellWidth, cfg.Render.CellHeight),
		worker.WithLogger(logger.Clone().Str(`side`, `compute`).Logger()),
	)
	if err != nil {
		return 0, fmt.Errorf("worker: %w", err)
	}
	workerDone := make(chan error, 1)
	go func() { workerDone <- w.Run(ctx) }()

	screen := termui.NewScreen(0, 0, cfg.Render.CellWidth, cfg.Render.CellHeight)

	var b *bridge.Bridge
	program := tea.NewProgram(termui.NewModel(termui.Config{
		Screen:   screen,
		OnKey:    func(key protocol.KeyEvent) { b.SendKey(key) },
		OnResize: func(width, height int) { b.Resize(width, height) },
		OnPaste:  func(text string) { paste(b, text) },
		QuitKey:  `ctrl+\`,
	}), tea.WithAltScreen(), tea.WithContext(ctx))

	opts := []bridge.Option{
		bridge.WithLogger(logger.Clone().Str(`side`, `control`).Logger()),
		bridge.WithDebug(cfg.Debug),
		bridge.WithSurface(screen),
		bridge.WithFrameInterval(cfg.Render.FrameInterval),
		bridge.WithFlushHandler(func(int) { go program.Send(termui.FrameMsg{}) }),
		bridge.WithLifecycle(termui.Lifecycle(program)),
		bridge.WithPersistence(store),
		bridge.WithEvaluator(evaluator),
		bridge.WithExporter(fileExporter{dir: cfg.Export.Dir}),
		bridge.WithHostTimeout(cfg.Eval.Timeout),
		bridge.WithLatencyTracking(cfg.Perf),
	}
	if cfg.Clipboard {
		opts = append(opts, bridge.WithClipboard(&memoryClipboard{}))
	}
	b, err = bridge.New(loop, mb, channel, opts...)
	if err != nil {
		return 0, fmt.Errorf("bridge: %w", err)
	}
	defer func() {
		b.Terminate()
		select {
		case <-b.Done():
		case <-loopDone:
			// tasks may have been dropped, retry now Submit fails
			b.Terminate()
		}
		channel.Close()
		if err := <-workerDone; err != nil {
			logger.Warning().Err(err).Log(`worker stopped`)
		}
	}()

	if err := b.Start(ctx, protocol.StartOptions{
		Files:          files,
		CmdArgs:        args,
		Dirs:           cfg.Persist.Dirs,
		PersistentDirs: cfg.Persist.Dirs,
		Debug:          cfg.Debug,
	}); err != nil {
		return 0, fmt.Errorf("start: %w", err)
	}

	go runCommands(ctx, b, cfg.Commands, logger)

	final, err := program.Run()
	if err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return 0, fmt.Errorf("ui: %w", err)
	}

	model, _ := final.(termui.Model)
	if status, ok := model.ExitStatus(); ok {
		return status, nil
	}
	if err := model.Err(); err != nil {
		return 0, err
	}
	return 0, b.Err()
}

func newEvaluator(ctx context.Context, cfg EvalConfig, logger *logiface.Logger[logiface.Event]) (*hosteval.Evaluator, error) {
	evaluator, err := hosteval.New(hosteval.WithLogger(logger.Clone().Str(`side`, `eval`).Logger()))
	if err != nil {
		return nil, fmt.Errorf("evaluator: %w", err)
	}
	if cfg.Init == `` {
		return evaluator, nil
	}
	source, err := os.ReadFile(cfg.Init)
	if err != nil {
		return nil, fmt.Errorf("read eval init: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := evaluator.Eval(ctx, cfg.Init, string(source)); err != nil {
		return nil, fmt.Errorf("eval init: %w", err)
	}
	return evaluator, nil
}

// runCommands runs each command in turn, reporting failures to the compute
// side, where they are displayed.
func runCommands(ctx context.Context, b *bridge.Bridge, commands []string, logger *logiface.Logger[logiface.Event]) {
	for _, command := range commands {
		_, err := b.Cmdline(command).Wait(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, bridge.ErrTerminated) || ctx.Err() != nil {
			return
		}
		logger.Warning().Str(`command`, command).Err(err).Log(`command failed`)
		b.ReportError(fmt.Sprintf(`%s: %v`, command, err))
	}
}
