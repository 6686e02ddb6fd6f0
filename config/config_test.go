package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MarcinKonowalczyk/bfc/config"
	"github.com/MarcinKonowalczyk/bfc/emit"
	"github.com/MarcinKonowalczyk/bfc/utils"
)

func write(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, config.Filename)
	utils.AssertNoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFindAndLoad_Missing(t *testing.T) {
	c, err := config.FindAndLoad(t.TempDir())
	utils.AssertNoError(t, err)
	utils.AssertDiff(t, config.Default(), c)
	utils.AssertEqual(t, c.Compile.Target, "c")
	utils.Assert(t, c.Compile.Collapse, "collapse should default to on")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, `
[compile]
target = "go"
cflags = ["-O2", "-g"]
keep_source = true

[tape]
max_cells = 1024

[shell]
prompt = "bf>"
`)
	c, err := config.FindAndLoad(dir)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, c.Compile.Target, "go")
	utils.AssertDiff(t, []string{"-O2", "-g"}, c.Compile.CFlags)
	utils.AssertEqual(t, c.Tape.MaxCells, 1024)
	utils.AssertEqual(t, c.Shell.Prompt, "bf>")
	// untouched keys keep their defaults
	utils.AssertEqual(t, c.Compile.CC, "cc")
	utils.AssertEqual(t, c.Log.Level, "info")
	utils.AssertEqual(t, c.Path, filepath.Join(dir, config.Filename))

	opts := c.BuildOptions()
	utils.AssertEqual(t, opts.Target, emit.TargetGo)
	utils.Assert(t, opts.KeepSource, "keep_source was set")
	utils.Assert(t, opts.Collapse, "collapse should stay on")
}

func TestLoad_UnknownKey(t *testing.T) {
	path := write(t, t.TempDir(), "[compile]\noptimise = true\n")
	_, err := config.Load(path)
	utils.AssertError(t, err)
	utils.AssertContains(t, err.Error(), "compile.optimise")
}

func TestLoad_BadTarget(t *testing.T) {
	path := write(t, t.TempDir(), "[compile]\ntarget = \"rust\"\n")
	_, err := config.Load(path)
	utils.AssertError(t, err)
}

func TestLoad_NegativeTape(t *testing.T) {
	path := write(t, t.TempDir(), "[tape]\nmax_cells = -1\n")
	_, err := config.Load(path)
	utils.AssertError(t, err)
}

func TestLoad_Syntax(t *testing.T) {
	path := write(t, t.TempDir(), "[compile\n")
	_, err := config.Load(path)
	utils.AssertError(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	utils.AssertErrorIs(t, err, os.ErrNotExist)
}
