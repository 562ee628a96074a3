package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// levels maps the names accepted by log.level, including the short forms
// used in the lvl field.
var levels = map[string]logiface.Level{
	`disabled`:  logiface.LevelDisabled,
	`emerg`:     logiface.LevelEmergency,
	`emergency`: logiface.LevelEmergency,
	`alert`:     logiface.LevelAlert,
	`crit`:      logiface.LevelCritical,
	`critical`:  logiface.LevelCritical,
	`err`:       logiface.LevelError,
	`error`:     logiface.LevelError,
	`warn`:      logiface.LevelWarning,
	`warning`:   logiface.LevelWarning,
	`notice`:    logiface.LevelNotice,
	`info`:      logiface.LevelInformational,
	`debug`:     logiface.LevelDebug,
	`trace`:     logiface.LevelTrace,
}

func parseLevel(s string) (logiface.Level, error) {
	if level, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return level, nil
	}
	return 0, fmt.Errorf("unknown log level: %q", s)
}

// newLogger builds the JSON logger, and a func to close the underlying
// file. The terminal belongs to the UI, so logs only ever go to a file.
func newLogger(config LogConfig) (*logiface.Logger[logiface.Event], func() error, error) {
	level, err := parseLevel(config.Level)
	if err != nil {
		return nil, nil, err
	}
	if config.File == `` || level == logiface.LevelDisabled {
		return nil, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(config.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir log dir: %w", err)
	}
	file, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	return buildLogger(file, level), file.Close, nil
}

func buildLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}
