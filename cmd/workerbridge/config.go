package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	// Config holds application configuration.
	Config struct {
		Log       LogConfig     `mapstructure:"log"`
		Render    RenderConfig  `mapstructure:"render"`
		Persist   PersistConfig `mapstructure:"persist"`
		Eval      EvalConfig    `mapstructure:"eval"`
		Export    ExportConfig  `mapstructure:"export"`
		Debug     bool          `mapstructure:"debug"`
		Clipboard bool          `mapstructure:"clipboard"`
		// Perf logs message latencies per kind, on exit.
		Perf bool `mapstructure:"perf"`
		// Commands are run, in order, once the compute side has started.
		Commands []string `mapstructure:"commands"`
	}

	LogConfig struct {
		Level string `mapstructure:"level"`
		// File is appended to, logging is disabled if empty.
		File string `mapstructure:"file"`
	}

	RenderConfig struct {
		FrameInterval time.Duration `mapstructure:"frame_interval"`
		CellWidth     int           `mapstructure:"cell_width"`
		CellHeight    int           `mapstructure:"cell_height"`
	}

	// PersistConfig holds sqlite settings, for files written to the
	// persistent directories.
	PersistConfig struct {
		Path string   `mapstructure:"path"`
		Dirs []string `mapstructure:"dirs"`
	}

	ExportConfig struct {
		Dir string `mapstructure:"dir"`
	}

	EvalConfig struct {
		// Init is a script path, evaluated before the compute side starts.
		Init    string        `mapstructure:"init"`
		Timeout time.Duration `mapstructure:"timeout"`
	}
)

// LoadConfig reads configuration from file and env. Env var overrides use
// prefix WORKERBRIDGE_.
func LoadConfig() (Config, error) {
	v := viper.New()

	home := os.Getenv("HOME")

	// default values
	v.SetDefault("debug", false)
	v.SetDefault("clipboard", true)
	v.SetDefault("perf", false)
	v.SetDefault("commands", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("render.frame_interval", 16*time.Millisecond)
	v.SetDefault("render.cell_width", 8)
	v.SetDefault("render.cell_height", 16)
	v.SetDefault("persist.path", filepath.Join(home, ".local", "share", "workerbridge", "files.db"))
	v.SetDefault("persist.dirs", []string{"/persist"})
	v.SetDefault("eval.init", "")
	v.SetDefault("eval.timeout", 30*time.Second)
	v.SetDefault("export.dir", ".")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("WORKERBRIDGE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "workerbridge"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("WORKERBRIDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine, unless it was asked for
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Render.CellWidth <= 0 || c.Render.CellHeight <= 0 {
		return Config{}, fmt.Errorf("invalid cell size: %dx%d", c.Render.CellWidth, c.Render.CellHeight)
	}
	if c.Render.FrameInterval <= 0 {
		return Config{}, fmt.Errorf("invalid frame interval: %s", c.Render.FrameInterval)
	}
	return c, nil
}
