// Package config loads bfc.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/MarcinKonowalczyk/bfc/emit"
)

const Filename = "bfc.toml"

type Config struct {
	Compile Compile `toml:"compile"`
	Tape    Tape    `toml:"tape"`
	Shell   Shell   `toml:"shell"`
	Log     Log     `toml:"log"`

	// Path is the file the configuration was read from, empty for defaults
	Path string `toml:"-"`
}

type Compile struct {
	Target     string   `toml:"target"`
	CC         string   `toml:"cc"`
	CFlags     []string `toml:"cflags"`
	Go         string   `toml:"go"`
	Collapse   bool     `toml:"collapse"`
	KeepSource bool     `toml:"keep_source"`
}

type Tape struct {
	// MaxCells bounds tape growth. Zero means unbounded.
	MaxCells int `toml:"max_cells"`
}

type Shell struct {
	Prompt  string `toml:"prompt"`
	History string `toml:"history"`
}

type Log struct {
	Level string `toml:"level"`
}

func Default() *Config {
	build := emit.DefaultBuildOptions()
	return &Config{
		Compile: Compile{
			Target:   string(build.Target),
			CC:       build.CC,
			CFlags:   build.CFlags,
			Go:       build.GoTool,
			Collapse: build.Collapse,
		},
		Shell: Shell{Prompt: "$"},
		Log:   Log{Level: "info"},
	}
}

// Load reads the configuration at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}
	c.Path = path

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad loads bfc.toml from dir. A missing file yields the defaults.
func FindAndLoad(dir string) (*Config, error) {
	path := filepath.Join(dir, Filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return Load(path)
}

func (c *Config) Validate() error {
	if c.Tape.MaxCells < 0 {
		return fmt.Errorf("tape.max_cells must not be negative, got %d", c.Tape.MaxCells)
	}
	for _, t := range emit.Targets() {
		if string(t) == c.Compile.Target {
			return nil
		}
	}
	return fmt.Errorf("unknown compile.target %q", c.Compile.Target)
}

// BuildOptions returns the compile section as emitter options.
func (c *Config) BuildOptions() emit.BuildOptions {
	opts := emit.DefaultBuildOptions()
	opts.Target = emit.Target(c.Compile.Target)
	opts.Collapse = c.Compile.Collapse
	opts.CC = c.Compile.CC
	opts.CFlags = c.Compile.CFlags
	opts.GoTool = c.Compile.Go
	opts.KeepSource = c.Compile.KeepSource
	return opts
}
