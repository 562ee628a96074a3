package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joeycumines/go-workerbridge/bridge"
	"github.com/joeycumines/go-workerbridge/protocol"
)

// memoryClipboard is a process local clipboard.
type memoryClipboard struct {
	mu   sync.Mutex
	text string
}

var _ bridge.Clipboard = (*memoryClipboard)(nil)

func (x *memoryClipboard) ReadText(context.Context) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.text, nil
}

func (x *memoryClipboard) WriteText(_ context.Context, text string) error {
	x.mu.Lock()
	x.text = text
	x.mu.Unlock()
	return nil
}

// fileExporter writes exports into a directory, by base name.
type fileExporter struct {
	dir string
}

var _ bridge.Exporter = fileExporter{}

func (x fileExporter) Export(_ context.Context, name string, contents []byte) error {
	base := filepath.Base(filepath.FromSlash(name))
	if base == `.` || base == string(filepath.Separator) {
		return fmt.Errorf("invalid export path: %q", name)
	}
	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir export dir: %w", err)
	}
	return os.WriteFile(filepath.Join(x.dir, base), contents, 0o644)
}

// paste drops the file at text, if it names one (terminals paste the path of
// dragged files), otherwise types text.
func paste(b *bridge.Bridge, text string) {
	name := strings.TrimSpace(text)
	if info, err := os.Stat(name); err == nil && info.Mode().IsRegular() {
		go func() {
			contents, err := os.ReadFile(name)
			if err != nil {
				b.ReportError(err.Error())
				return
			}
			b.DropFile(filepath.Base(name), contents)
		}()
		return
	}
	for _, r := range text {
		key := protocol.KeyEvent{Key: string(r)}
		if r == '\n' || r == '\r' {
			key = protocol.KeyEvent{Key: `Enter`, Code: 13}
		}
		b.SendKey(key)
	}
}
