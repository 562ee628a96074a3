package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, tc := range [...]struct {
		Name  string
		Input string
		Level logiface.Level
		Err   bool
	}{
		{Name: `info`, Input: `info`, Level: logiface.LevelInformational},
		{Name: `short error`, Input: `err`, Level: logiface.LevelError},
		{Name: `long error`, Input: `error`, Level: logiface.LevelError},
		{Name: `case and space`, Input: ` WARN `, Level: logiface.LevelWarning},
		{Name: `trace`, Input: `trace`, Level: logiface.LevelTrace},
		{Name: `disabled`, Input: `disabled`, Level: logiface.LevelDisabled},
		{Name: `unknown`, Input: `loud`, Err: true},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			level, err := parseLevel(tc.Input)
			if tc.Err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Level, level)
		})
	}
}

func TestBuildLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(&buf, logiface.LevelInformational)
	logger.Debug().Log(`hidden`)
	logger.Info().Str(`side`, `control`).Log(`shown`)
	assert.NotContains(t, buf.String(), `hidden`)
	assert.Contains(t, buf.String(), `"side":"control"`)
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestNewLogger_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), `logs`, `wb.log`)
	logger, closeLog, err := newLogger(LogConfig{Level: `debug`, File: path})
	require.NoError(t, err)
	logger.Debug().Log(`to file`)
	require.NoError(t, closeLog())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"to file"`)
}

func TestNewLogger_noFile(t *testing.T) {
	logger, closeLog, err := newLogger(LogConfig{Level: `info`})
	require.NoError(t, err)
	assert.Nil(t, logger)
	assert.NoError(t, closeLog())

	_, _, err = newLogger(LogConfig{Level: `nope`, File: `x`})
	assert.Error(t, err)
}
