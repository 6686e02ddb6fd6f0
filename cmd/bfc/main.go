package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/containerd/log"

	"github.com/MarcinKonowalczyk/bfc/bf"
	"github.com/MarcinKonowalczyk/bfc/config"
	"github.com/MarcinKonowalczyk/bfc/emit"
	"github.com/MarcinKonowalczyk/bfc/shell"
)

const version = "0.2.0"

// comptime override for debug flag
// set with `-ldflags="-X 'main.debug=true'"`
var debug string

var (
	compileTo   string
	emitSource  bool
	target      string
	noCollapse  bool
	keepSource  bool
	configPath  string
	debugLog    bool
	showVersion bool
)

func init() {
	flag.StringVar(&compileTo, "c", "", "compile the program to the specified executable")
	flag.StringVar(&compileTo, "compile", "", "compile the program to the specified executable")
	flag.BoolVar(&emitSource, "emit", false, "print the translated source instead of running")
	flag.StringVar(&target, "target", "", "compilation target (c or go)")
	flag.BoolVar(&noCollapse, "no-collapse", false, "do not merge repeated instructions when compiling")
	flag.BoolVar(&keepSource, "keep-source", false, "keep the generated source next to the executable")
	flag.StringVar(&configPath, "config", "", "configuration file (default ./"+config.Filename+")")
	flag.BoolVar(&debugLog, "debug", false, "enable debug logging to stderr")
	flag.BoolVar(&showVersion, "version", false, "display the version number")
	flag.Usage = usage
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Usage: bfc [options] [program ...]")
	fmt.Fprintln(out, "Each program argument is a source file, or inline code if no such file exists.")
	fmt.Fprintln(out, "If no program is specified, an interactive shell will be started.")
	fmt.Fprintln(out, "Options:")
	flag.PrintDefaults()
}

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, flag.Args())
	cancel()
	os.Exit(code)
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}

	if target != "" {
		cfg.Compile.Target = target
	}
	if noCollapse {
		cfg.Compile.Collapse = false
	}
	if keepSource {
		cfg.Compile.KeepSource = true
	}
	if debugLog || debug != "" {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

func isSourceFile(path string) bool {
	switch filepath.Ext(path) {
	case ".bf", ".b", ".brainfuck":
		return true
	}
	return false
}

// fileError reports whether a failed read of arg means arg names a file the
// user meant to run, rather than inline code.
func fileError(arg string, err error) bool {
	return isSourceFile(arg) || errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EISDIR)
}

// loadProgram concatenates the arguments. An argument naming a readable
// file contributes its contents, anything that cannot be opened is taken
// as inline code.
func loadProgram(args []string) ([]byte, error) {
	var source []byte
	for _, arg := range args {
		data, err := os.ReadFile(arg)
		switch {
		case err == nil:
			source = append(source, data...)
		case fileError(arg, err):
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		default:
			source = append(source, arg...)
		}
	}
	return source, nil
}

func run(ctx context.Context, args []string) int {
	console := bf.NewConsole(os.Stdin, os.Stdout)

	fail := func(err error) int {
		_ = console.Message("Error: " + err.Error() + "\n")
		_ = console.Close()
		return 1
	}

	if showVersion {
		fmt.Printf("version %s\n", version)
		return 0
	}

	cfg, err := loadConfig()
	if err != nil {
		return fail(err)
	}
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		return fail(err)
	}
	if cfg.Path != "" {
		log.G(ctx).Debugf("loaded configuration from %s", cfg.Path)
	}

	if len(args) == 0 {
		if compileTo != "" || emitSource {
			return fail(errors.New("no program to compile"))
		}
		return runShell(ctx, cfg)
	}

	source, err := loadProgram(args)
	if err != nil {
		return fail(err)
	}
	program := bf.LexBytes(source)
	log.G(ctx).Debugf("loaded %d instructions", len(program))

	switch {
	case emitSource:
		opts := cfg.BuildOptions()
		out, err := emit.Translate(program, opts.Options)
		if err != nil {
			return fail(err)
		}
		if _, err := os.Stdout.Write(out); err != nil {
			return fail(err)
		}
		return 0
	case compileTo != "":
		opts := cfg.BuildOptions()
		opts.Output = compileTo
		if err := emit.Build(ctx, program, opts); err != nil {
			return fail(err)
		}
		return 0
	}

	err = bf.RunConsole(ctx, source, console, cfg.Tape.MaxCells)
	if code := bf.ExitStatus(err); code != 0 {
		return fail(err)
	}
	return 0
}

func runShell(ctx context.Context, cfg *config.Config) int {
	var console *bf.Console
	if shell.IsTerminal(os.Stdin) {
		terminal := shell.OpenTerminal(cfg.Shell.History)
		defer terminal.Close()
		console = bf.NewPromptConsole(terminal, os.Stdout)
	} else {
		console = bf.NewConsole(os.Stdin, os.Stdout)
	}

	sh := shell.New(console, bf.NewTape(cfg.Tape.MaxCells), cfg.Shell.Prompt)
	if err := sh.Run(ctx); err != nil {
		_ = console.Message("Error: " + err.Error() + "\n")
		_ = console.Close()
		return 1
	}
	if err := console.Close(); err != nil {
		return 1
	}
	return 0
}
