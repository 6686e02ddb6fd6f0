package emit

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/google/uuid"

	"github.com/MarcinKonowalczyk/bfc/bf"
)

// ErrBuildFailed is returned when the native toolchain could not produce
// an executable.
var ErrBuildFailed = fmt.Errorf("build failed: %w", errdefs.ErrUnavailable)

const goMod = "module bfprogram\n\ngo 1.21\n"

type BuildOptions struct {
	Options

	// Output is the path of the executable to produce
	Output string
	// CC and CFlags drive the c target
	CC     string
	CFlags []string
	// GoTool is the go command used by the go target
	GoTool string
	// KeepSource leaves a copy of the generated source next to Output
	KeepSource bool

	// Toolchain output. Defaults to os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		Options: DefaultOptions(),
		CC:      "cc",
		CFlags:  []string{"-O3"},
		GoTool:  "go",
	}
}

// Build translates program and compiles it into an executable at
// opts.Output. The generated source is written to an intermediate file
// which is removed afterwards.
func Build(ctx context.Context, program bf.Program, opts BuildOptions) error {
	if opts.Output == "" {
		return fmt.Errorf("compilation requires an executable name: %w", errdefs.ErrInvalidArgument)
	}
	b, err := lookup(opts.Target)
	if err != nil {
		return err
	}
	source, err := Translate(program, opts.Options)
	if err != nil {
		return err
	}
	output, err := filepath.Abs(opts.Output)
	if err != nil {
		return fmt.Errorf("resolving output path: %w", err)
	}

	if opts.KeepSource {
		kept := strings.TrimSuffix(output, filepath.Ext(output)) + b.Ext()
		if kept == output {
			return fmt.Errorf("executable %s would overwrite the kept source: %w", opts.Output, errdefs.ErrInvalidArgument)
		}
		if err := os.WriteFile(kept, source, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", kept, err)
		}
		log.G(ctx).Debugf("kept generated source at %s", kept)
	}

	dir, err := os.MkdirTemp("", "bfc-*")
	if err != nil {
		return fmt.Errorf("creating build directory: %w", err)
	}
	defer os.RemoveAll(dir)

	var cmd *exec.Cmd
	switch opts.Target {
	case TargetGo:
		cmd, err = goCommand(ctx, dir, source, output, opts)
	default:
		cmd, err = cCommand(ctx, dir, source, output, opts)
	}
	if err != nil {
		return err
	}

	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stderr
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	log.G(ctx).WithField("target", string(opts.Target)).Debugf("running %s", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBuildFailed, cmd.Args[0], err)
	}
	return nil
}

func intermediate(dir, ext string) string {
	return filepath.Join(dir, "bfinterm_"+uuid.NewString()+ext)
}

func cCommand(ctx context.Context, dir string, source []byte, output string, opts BuildOptions) (*exec.Cmd, error) {
	path := intermediate(dir, ".c")
	if err := os.WriteFile(path, source, 0644); err != nil {
		return nil, fmt.Errorf("writing intermediate file: %w", err)
	}
	cc := opts.CC
	if cc == "" {
		cc = "cc"
	}
	args := []string{"-x", "c"}
	args = append(args, opts.CFlags...)
	args = append(args, "-o", output, path)
	return exec.CommandContext(ctx, cc, args...), nil
}

func goCommand(ctx context.Context, dir string, source []byte, output string, opts BuildOptions) (*exec.Cmd, error) {
	if err := os.WriteFile(intermediate(dir, ".go"), source, 0644); err != nil {
		return nil, fmt.Errorf("writing intermediate file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), 0644); err != nil {
		return nil, fmt.Errorf("writing go.mod: %w", err)
	}
	tool := opts.GoTool
	if tool == "" {
		tool = "go"
	}
	cmd := exec.CommandContext(ctx, tool, "build", "-o", output, ".")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOFLAGS=-mod=mod", "GOWORK=off")
	return cmd, nil
}
